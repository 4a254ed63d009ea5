package vm

// LowerFunc is a statement or reporter block's compile-time lowering logic:
// it emits bytecode into the compiler's current script via ctx (§4.2).
type LowerFunc func(ctx *CompileContext)

// RuntimeFunc is a builtin's runtime callback, invoked by OpCallBuiltin
// (§4.2, §4.6). It may mutate the task's operand stack and call back into
// the Program (dispatch events, read/write variables) but — per §5's
// shared-resource rule — must not invoke another builtin synchronously.
type RuntimeFunc func(rc *RuntimeContext)

// BlockSpec is one block-library registration (§4.2): an opcode mapped to
// optional lowering and/or runtime logic, an optional canonical input
// order, and whether it is a reporter (expression) or statement block.
type BlockSpec struct {
	Opcode      string
	Lower       LowerFunc
	Runtime     RuntimeFunc
	InputsOrder []string
	IsReporter  bool
}

type blockEntry struct {
	BlockSpec
	ID int // builtin_id: assigned at registration, embedded in bytecode
}

// BlockLibrary is the mutable-during-build, frozen-after-build registry
// mapping opcode names to compile-time lowering logic and/or runtime
// callbacks (§4.2). Statement and reporter lookups are separate: an opcode
// registered as one may not also be registered as the other.
type BlockLibrary struct {
	statements map[string]*blockEntry
	reporters  map[string]*blockEntry
	nextID     int
}

func NewBlockLibrary() *BlockLibrary {
	return &BlockLibrary{
		statements: map[string]*blockEntry{},
		reporters:  map[string]*blockEntry{},
	}
}

// Register adds a block-library entry, returning its assigned builtin_id.
// It panics on a duplicate opcode registration, including an opcode already
// registered as the other kind (a programmer error — this
// only ever happens while assembling the library at program-build time,
// never during a running program).
func (l *BlockLibrary) Register(spec BlockSpec) int {
	target := l.statements
	if spec.IsReporter {
		target = l.reporters
	}
	if _, exists := l.statements[spec.Opcode]; exists {
		panic("vm: block opcode " + spec.Opcode + " already registered as " + kindName(false))
	}
	if _, exists := l.reporters[spec.Opcode]; exists {
		panic("vm: block opcode " + spec.Opcode + " already registered as " + kindName(true))
	}
	id := l.nextID
	l.nextID++
	target[spec.Opcode] = &blockEntry{BlockSpec: spec, ID: id}
	return id
}

func kindName(isReporter bool) string {
	if isReporter {
		return "reporter"
	}
	return "block"
}

// Split freezes the library into a TypeLibrary (consulted by the compiler)
// and a RuntimeLibrary (consulted by the running VM), per §4.2's two-phase
// design: the TypeLibrary is safe to share across parallel script
// compilation since it is never mutated again; the RuntimeLibrary is a
// dense vector owned single-threaded by the Program.
func (l *BlockLibrary) Split() (*TypeLibrary, *RuntimeLibrary) {
	typeLib := &TypeLibrary{
		statements: make(map[string]BlockType, len(l.statements)),
		reporters:  make(map[string]BlockType, len(l.reporters)),
	}
	runtime := make([]RuntimeFunc, l.nextID)

	add := func(entries map[string]*blockEntry, dst map[string]BlockType) {
		for opcode, e := range entries {
			dst[opcode] = BlockType{
				Opcode:      opcode,
				ID:          e.ID,
				Lower:       e.Lower,
				IsReporter:  e.IsReporter,
				InputsOrder: e.InputsOrder,
			}
			if e.Runtime != nil {
				runtime[e.ID] = e.Runtime
			}
		}
	}
	add(l.statements, typeLib.statements)
	add(l.reporters, typeLib.reporters)

	return typeLib, &RuntimeLibrary{funcs: runtime}
}

// BlockType is a TypeLibrary entry: everything the compiler needs to lower
// a use of this opcode (§4.2).
type BlockType struct {
	Opcode      string
	ID          int
	Lower       LowerFunc
	IsReporter  bool
	InputsOrder []string
}

// TypeLibrary is the frozen, read-only half of a split BlockLibrary,
// consulted only by the compiler (§4.2).
type TypeLibrary struct {
	statements map[string]BlockType
	reporters  map[string]BlockType
}

func (t *TypeLibrary) Statement(opcode string) (BlockType, bool) {
	bt, ok := t.statements[opcode]
	return bt, ok
}

func (t *TypeLibrary) Reporter(opcode string) (BlockType, bool) {
	bt, ok := t.reporters[opcode]
	return bt, ok
}

// RuntimeLibrary is the frozen, dense-indexed half of a split BlockLibrary,
// owned by the Program and consulted by OpCallBuiltin (§4.2, §4.4).
type RuntimeLibrary struct {
	funcs []RuntimeFunc
}

func (r *RuntimeLibrary) Get(id int) (RuntimeFunc, bool) {
	if id < 0 || id >= len(r.funcs) || r.funcs[id] == nil {
		return nil, false
	}
	return r.funcs[id], true
}

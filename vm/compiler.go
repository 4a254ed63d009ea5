package vm

import (
	"math"
	"sync"

	"github.com/lfmoo/scratchvm/ast"
	"github.com/lfmoo/scratchvm/types"
)

// Label is a concrete bytecode offset, used directly as a jump target for
// backward jumps (§4.3 "ConcreteLabel").
type Label int

// PlaceholderLabel collects pending patch sites — immediate-slot positions
// that must be overwritten with a concrete offset once the label's target
// location is known (§4.3). The patch-site list is kept on the label itself;
// ScriptCompiler.FinalizeHere patches every recorded site. Referencing a
// PlaceholderLabel after it has been finalized is a programmer error.
type PlaceholderLabel struct {
	sites    []int
	resolved bool
}

func NewPlaceholderLabel() *PlaceholderLabel {
	return &PlaceholderLabel{}
}

// ScriptCompiler lowers one script's blocks into a u32[] instruction
// buffer, claiming/releasing local slots and consulting the TypeLibrary for
// per-opcode lowering logic (§4.3).
type ScriptCompiler struct {
	Target     *TargetContext
	TypeLib    *TypeLibrary
	code       []uint32
	locals     []LocalSlot
	localFree  []bool
	paramCount int
	argIndex   map[string]int // procedure argument name -> local index (params only)
	warp       bool
	procName   string
}

// NewScriptCompiler starts a compiler for a script with paramNames as its
// ordered procedure-call parameters (empty for a FlagClicked/BroadcastReceived
// script). The parameters occupy locals 0..len(paramNames)-1 in reverse
// declaration order: callers push arguments in declaration order and
// CallProcedure installs the last-pushed one as local 0 (§4.5 calling
// convention), so parameter i of n lives in local n-1-i. Each is addressable
// (via ArgLocal) by its declared name, so an argument_reporter_string_number
// block inside the body can resolve itself.
func NewScriptCompiler(target *TargetContext, typeLib *TypeLibrary, paramNames []string, warp bool, procName string) *ScriptCompiler {
	c := &ScriptCompiler{
		Target:     target,
		TypeLib:    typeLib,
		paramCount: len(paramNames),
		argIndex:   make(map[string]int, len(paramNames)),
		warp:       warp,
		procName:   procName,
	}
	n := len(paramNames)
	for i, name := range paramNames {
		c.locals = append(c.locals, LocalSlot{Name: paramNames[n-1-i]})
		c.localFree = append(c.localFree, false)
		c.argIndex[name] = n - 1 - i
	}
	return c
}

// ArgLocal resolves a procedure argument's declared name to its local index
// (§4.2(a) argument_reporter_string_number contract).
func (c *ScriptCompiler) ArgLocal(name string) (int, bool) {
	idx, ok := c.argIndex[name]
	return idx, ok
}

// ClaimLocal returns the lowest-indexed free slot beyond the reserved
// parameters, or appends a new one (§4.3 Locals).
func (c *ScriptCompiler) ClaimLocal() int {
	for i := c.paramCount; i < len(c.localFree); i++ {
		if c.localFree[i] {
			c.localFree[i] = false
			return i
		}
	}
	idx := len(c.locals)
	c.locals = append(c.locals, LocalSlot{})
	c.localFree = append(c.localFree, false)
	return idx
}

// ReleaseLocal marks idx free for reuse by a later ClaimLocal.
func (c *ScriptCompiler) ReleaseLocal(idx int) {
	c.localFree[idx] = true
}

// Warp reports whether this procedure suppresses all yield points (§4.3,
// GLOSSARY Warp).
func (c *ScriptCompiler) Warp() bool { return c.warp }

func (c *ScriptCompiler) Here() Label { return Label(len(c.code)) }

// Code returns the finished instruction buffer. Call only after lowering
// completes.
func (c *ScriptCompiler) Code() []uint32 { return c.code }

// Locals returns the finished local-descriptor list (params first).
func (c *ScriptCompiler) Locals() []LocalSlot { return c.locals }

func (c *ScriptCompiler) ParamCount() int { return c.paramCount }

func (c *ScriptCompiler) WriteOp(op OpCode) { c.code = append(c.code, uint32(op)) }

func (c *ScriptCompiler) WriteImm(imm uint32) { c.code = append(c.code, imm) }

// WriteJumpTo emits op followed by a concrete backward-jump target.
func (c *ScriptCompiler) WriteJumpTo(op OpCode, target Label) {
	c.WriteOp(op)
	c.WriteImm(uint32(target))
}

// WriteJumpPlaceholder emits op followed by a placeholder immediate,
// recording the site so label.FinalizeHere can patch it later.
func (c *ScriptCompiler) WriteJumpPlaceholder(op OpCode, label *PlaceholderLabel) {
	if label.resolved {
		panic("vm: PlaceholderLabel referenced after finalization")
	}
	c.WriteOp(op)
	label.sites = append(label.sites, len(c.code))
	c.code = append(c.code, 0)
}

// FinalizeHere patches every pending site in label to the current offset.
func (c *ScriptCompiler) FinalizeHere(label *PlaceholderLabel) {
	target := uint32(len(c.code))
	for _, site := range label.sites {
		c.code[site] = target
	}
	label.resolved = true
}

// EmitYield emits a Yield unless this procedure runs warp (§4.3: "Inside a
// procedure with warp enabled, yields are suppressed").
func (c *ScriptCompiler) EmitYield() {
	if c.warp {
		return
	}
	c.WriteOp(OpYield)
}

// CompileSubstack lowers an ordered sequence of statement blocks. An empty
// substack emits a single Yield to avoid a busy loop around an empty body
// (§4.3).
func (c *ScriptCompiler) CompileSubstack(blocks []*ast.Block) error {
	if len(blocks) == 0 {
		c.WriteOp(OpYield)
		return nil
	}
	for _, b := range blocks {
		if err := c.CompileBlock(b); err != nil {
			return err
		}
	}
	return nil
}

// CompileBlock lowers a single statement block (§4.3).
func (c *ScriptCompiler) CompileBlock(b *ast.Block) error {
	bt, ok := c.TypeLib.Statement(b.Opcode)
	if !ok {
		return errUnknownOpcode(b.Opcode)
	}
	if bt.Lower != nil {
		return c.runLower(bt, b)
	}
	return c.compileRuntimeOnlyDefault(bt, b)
}

func (c *ScriptCompiler) runLower(bt BlockType, b *ast.Block) (err error) {
	ctx := &CompileContext{Compiler: c, Block: b}
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()
	bt.Lower(ctx)
	return nil
}

// compileRuntimeOnlyDefault implements §4.2's default pattern: push each
// input (in InputsOrder, or sorted lexicographically if none), then emit
// CallBuiltin. Fields are not permitted on runtime-only blocks.
func (c *ScriptCompiler) compileRuntimeOnlyDefault(bt BlockType, b *ast.Block) error {
	if len(b.Fields) > 0 {
		return errFieldsOnRuntimeOnly(b.Opcode)
	}
	order := bt.InputsOrder
	if len(order) == 0 {
		order = sortedKeys(b.Inputs)
	}
	for _, name := range order {
		in, ok := b.Inputs[name]
		if !ok {
			return errMissingInput(b.Opcode, name)
		}
		if err := c.PushValue(in); err != nil {
			return err
		}
	}
	c.WriteOp(OpCallBuiltin)
	c.WriteImm(uint32(bt.ID))
	return nil
}

// PushValue lowers an Input used as a value: a primitive pushes directly, a
// non-primitive single block is looked up as a reporter. An input holding a
// sub-stack (>1 block) is invalid as a value (§4.3).
func (c *ScriptCompiler) PushValue(in *ast.Input) error {
	if in == nil || len(in.Blocks) == 0 {
		return errMissingInput("", "<value>")
	}
	if !in.IsSingleValue() {
		return errMultiBlockValue(in.Blocks[0].Opcode)
	}
	b := in.Blocks[0]
	if prim, ok := b.TryAsPrimitive(); ok {
		return c.PushPrimitive(b.Opcode, prim)
	}
	bt, ok := c.TypeLib.Reporter(b.Opcode)
	if !ok {
		return errUnknownOpcode(b.Opcode)
	}
	if bt.Lower != nil {
		return c.runLower(bt, b)
	}
	return c.compileRuntimeOnlyDefault(bt, b)
}

// PushPrimitive inflates a classified Primitive to a direct stack push
// (§3 Primitive).
func (c *ScriptCompiler) PushPrimitive(opcode string, p ast.Primitive) error {
	switch p.Kind {
	case ast.PrimitiveText:
		c.WriteOp(OpPushConstant)
		c.WriteImm(c.Target.Text(p.Text))
		return nil
	case ast.PrimitiveNumber, ast.PrimitiveInteger, ast.PrimitiveWholeNumber, ast.PrimitivePositiveNumber, ast.PrimitiveAngle:
		if !p.ParseOK {
			return errInvalidNumericLiteral(opcode, p.Raw)
		}
		c.PushNumber(p.Num)
		return nil
	case ast.PrimitiveVariable:
		handle, ok := c.Target.Var(p.RefID)
		if !ok {
			return errMissingField(opcode, "VARIABLE")
		}
		c.WriteOp(OpPushVar)
		c.WriteImm(handle)
		return nil
	case ast.PrimitiveBroadcast:
		return errFieldsOnRuntimeOnly(opcode) // broadcasts cannot be pushed as values (§4 design notes: events cannot be pushed to the stack)
	default:
		return errUnknownOpcode(opcode)
	}
}

// PushNumber emits PushZero for 0 (a common case worth a dedicated opcode)
// or PushNumber with the f64's little-endian bit pattern split across two
// immediate words otherwise.
func (c *ScriptCompiler) PushNumber(n float64) {
	if n == 0 {
		c.WriteOp(OpPushZero)
		return
	}
	bits := math.Float64bits(n)
	c.WriteOp(OpPushNumber)
	c.WriteImm(uint32(bits))
	c.WriteImm(uint32(bits >> 32))
}

func sortedKeys(m map[string]*ast.Input) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// insertion sort is fine: block input maps are tiny (almost always <5)
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// CompileContext gives a block-library lowering function access to the
// compiler and the AST block being lowered (§4.2 CompileContext).
type CompileContext struct {
	Compiler *ScriptCompiler
	Block    *ast.Block
}

// VarField resolves a field expected to carry a variable reference (id +
// display name), e.g. data_setvariableto's VARIABLE field.
func (ctx *CompileContext) VarField(name string) (ast.Field, error) {
	f, ok := ctx.Block.Fields[name]
	if !ok {
		return ast.Field{}, errMissingField(ctx.Block.Opcode, name)
	}
	return f, nil
}

// Input resolves a required input by name.
func (ctx *CompileContext) Input(name string) (*ast.Input, error) {
	in, ok := ctx.Block.Inputs[name]
	if !ok {
		return nil, errMissingInput(ctx.Block.Opcode, name)
	}
	return in, nil
}

// scriptJob is one script's compilation unit: fully self-contained, so
// jobs may run on independent goroutines with no shared mutable state
// besides the read-only TypeLibrary and each script's own *Procedure (§5
// build-time parallelism).
type scriptJob struct {
	targetIdx int
	target    *ast.Target
	targetCtx *TargetContext
	script    *ast.Script
	proc      *Procedure
}

// collectTextConstants walks every Block tree in proj, in deterministic
// target/script/tree order, interning every text primitive's literal before
// any script is lowered (§4.3 text-constant prepass).
func collectTextConstants(proj *ast.Project, pool *ConstantPool) {
	var walkBlock func(b *ast.Block)
	walkBlock = func(b *ast.Block) {
		if b == nil {
			return
		}
		if prim, ok := b.TryAsPrimitive(); ok && prim.Kind == ast.PrimitiveText {
			pool.Insert(prim.Text)
		}
		for _, name := range sortedKeys(b.Inputs) {
			for _, child := range b.Inputs[name].Blocks {
				walkBlock(child)
			}
		}
	}
	for _, target := range proj.Targets {
		for _, script := range target.Scripts {
			for _, b := range script.Blocks {
				walkBlock(b)
			}
		}
	}
}

func variableIDs(vars []ast.Variable) []string {
	ids := make([]string, len(vars))
	for i, v := range vars {
		ids[i] = v.ID
	}
	return ids
}

// CompileProject lowers every Script in proj to bytecode and assembles a
// Program (§4.3, §4.7(a)). Compilation is all-or-nothing: the first
// CompileError aborts the whole build. When workers > 1, per-script
// lowering runs on a worker pool; the result is byte-identical regardless
// of worker count (§5, §8 scenario 5) because constant/variable handles are
// all assigned up front and each job owns a private ScriptCompiler.
func CompileProject(proj *ast.Project, library *BlockLibrary, workers int) (*Program, error) {
	typeLib, runtimeLib := library.Split()

	pool := NewConstantPool()
	collectTextConstants(proj, pool)

	eventIDs := make([]string, len(proj.Events))
	eventNames := make([]string, len(proj.Events))
	for i, e := range proj.Events {
		eventIDs[i] = e.ID
		eventNames[i] = e.Name
	}

	globalIDs := variableIDs(proj.Variables)
	globalInitial := make([]types.Value, len(proj.Variables))
	for i, v := range proj.Variables {
		globalInitial[i] = v.Initial
	}

	projCtx := NewProjectContext(globalIDs, eventIDs, pool)

	targetCtxs := make([]*TargetContext, len(proj.Targets))
	targetInitial := make([][]types.Value, len(proj.Targets))
	for i, target := range proj.Targets {
		localIDs := variableIDs(target.Variables)
		targetCtxs[i] = NewTargetContext(projCtx, i, localIDs)
		initial := make([]types.Value, len(target.Variables))
		for j, v := range target.Variables {
			initial[j] = v.Initial
		}
		targetInitial[i] = initial
	}

	prog := NewProgram(pool.Values(), eventNames, globalInitial, targetInitial, runtimeLib)

	// Pre-register every script as a Procedure stub, in deterministic
	// (target, script) order, so ProcedureCalled lookups resolve forward
	// and recursive references before any body is lowered (§4.3(a)).
	var jobs []*scriptJob
	for ti, target := range proj.Targets {
		for _, script := range target.Scripts {
			paramCount := 0
			warp := false
			name := ""
			if script.Start.Kind == ast.ProcedureCalled {
				proto := script.Start.Prototype
				paramCount = len(proto.Args)
				warp = proto.Warp
				name = proto.ProcCode
			}
			proc := &Procedure{
				Name:       name,
				TargetID:   ti,
				ParamCount: paramCount,
				Warp:       warp,
			}
			procID := prog.Register(proc)
			if script.Start.Kind == ast.ProcedureCalled {
				targetCtxs[ti].RegisterProcedure(script.Start.Prototype.ProcCode, procID.Int())
			}
			jobs = append(jobs, &scriptJob{targetIdx: ti, target: target, targetCtx: targetCtxs[ti], script: script, proc: proc})
		}
	}

	if err := runScriptJobs(jobs, typeLib, workers); err != nil {
		return nil, err
	}

	for _, job := range jobs {
		start := job.script.Start
		switch start.Kind {
		case ast.FlagClicked:
			prog.AddTrigger(StartTrigger(), job.proc.ID())
		case ast.BroadcastReceived:
			handle, ok := job.targetCtx.Event(start.EventID)
			if !ok {
				return nil, &CompileError{Reason: "broadcast receiver references unknown event id " + start.EventID}
			}
			prog.AddTrigger(EventTrigger(types.NewID[types.Event](int(handle))), job.proc.ID())
		case ast.ProcedureCalled:
			// resolved via the target's proc table, not the triggers map
		}
	}

	return prog, nil
}

func runScriptJobs(jobs []*scriptJob, typeLib *TypeLibrary, workers int) error {
	if workers <= 1 || len(jobs) <= 1 {
		for _, job := range jobs {
			if err := compileOneScript(job, typeLib); err != nil {
				return err
			}
		}
		return nil
	}

	type result struct {
		idx int
		err error
	}
	jobCh := make(chan int)
	resultCh := make(chan result, len(jobs))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobCh {
				resultCh <- result{idx: idx, err: compileOneScript(jobs[idx], typeLib)}
			}
		}()
	}
	go func() {
		for i := range jobs {
			jobCh <- i
		}
		close(jobCh)
	}()
	wg.Wait()
	close(resultCh)

	for r := range resultCh {
		if r.err != nil {
			return r.err
		}
	}
	return nil
}

func compileOneScript(job *scriptJob, typeLib *TypeLibrary) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()

	var paramNames []string
	if job.script.Start.Kind == ast.ProcedureCalled {
		proto := job.script.Start.Prototype
		paramNames = make([]string, len(proto.Args))
		for i, a := range proto.Args {
			paramNames[i] = a.Name
		}
	}
	sc := NewScriptCompiler(job.targetCtx, typeLib, paramNames, job.proc.Warp, job.proc.Name)
	if err := sc.CompileSubstack(job.script.Blocks); err != nil {
		return err
	}
	sc.WriteOp(OpReturn)

	job.proc.Code = sc.Code()
	job.proc.Locals = sc.Locals()
	return nil
}

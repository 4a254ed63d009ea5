package vm

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/lfmoo/scratchvm/types"
)

// LocalSlot is a compiled procedure's local descriptor list entry (§3
// Procedure). Only the count matters at runtime (every local that is not a
// bound parameter starts as the empty string); the name is carried for
// trace/debug output.
type LocalSlot struct {
	Name string
}

// Procedure is a compiled unit of bytecode (§3 Procedure): every script
// becomes one, custom blocks become callable ones. Its Id is assigned
// exactly once, on registration with a Program (§9 design note: write-once
// procedure identity) — Register panics if called twice on the same
// *Procedure.
type Procedure struct {
	id         *types.Id[types.Procedure]
	Name       string
	TargetID   int
	ParamCount int
	Locals     []LocalSlot
	Code       []uint32
	Warp       bool
}

func (p *Procedure) ID() types.Id[types.Procedure] {
	if p.id == nil {
		panic("vm: Procedure.ID() called before Register")
	}
	return *p.id
}

// Trigger is a keyed event source bound to one or more procedures (§4.7): a
// green-flag start, or a specific broadcast event.
type Trigger struct {
	OnStart bool
	EventID types.Id[types.Event]
}

func StartTrigger() Trigger { return Trigger{OnStart: true} }

func EventTrigger(id types.Id[types.Event]) Trigger { return Trigger{EventID: id} }

// varState is a runtime variable cell (§3 Variable -> VarState).
type varState struct {
	name string
	mu   sync.Mutex // scheduler is single-threaded; guards re-entrancy bugs in with_var, not concurrency
	val  types.Value
}

// targetVars is one target's local-variable vector.
type targetVars struct {
	vars []*varState
}

// Program is immutable-after-build except for VarState contents, the
// scheduler queues, and the runtime library's per-builtin mutable closures
// (§4.4). Register/AddTrigger are pre-run-only operations; Dispatch,
// ReadVar/SetVar/WithVar run throughout execution.
type Program struct {
	Constants []string
	Events    []string // Id[Event] -> display name

	globals []*varState
	targets []*targetVars

	procedures []*Procedure
	triggers   map[Trigger][]types.Id[types.Procedure]

	Runtime *RuntimeLibrary

	// Output is where looks_say and other I/O builtins write (§6 output
	// sink, ADDED); defaults to os.Stdout.
	Output io.Writer
}

// NewProgram assembles an (initially empty-of-procedures) Program from the
// compiler's frozen pools. globalInitial/targetInitial supply each
// VarState's starting Value in declaration order.
func NewProgram(constants []string, events []string, globalInitial []types.Value, targetInitial [][]types.Value, runtime *RuntimeLibrary) *Program {
	globals := make([]*varState, len(globalInitial))
	for i, v := range globalInitial {
		globals[i] = &varState{val: v}
	}
	targets := make([]*targetVars, len(targetInitial))
	for i, vs := range targetInitial {
		tv := &targetVars{vars: make([]*varState, len(vs))}
		for j, v := range vs {
			tv.vars[j] = &varState{val: v}
		}
		targets[i] = tv
	}
	return &Program{
		Constants: constants,
		Events:    events,
		globals:   globals,
		targets:   targets,
		triggers:  map[Trigger][]types.Id[types.Procedure]{},
		Runtime:   runtime,
		Output:    os.Stdout,
	}
}

// Register assigns proc an Id<Procedure> and appends it to the registered
// procedures vector. Calling Register twice on the same *Procedure is a
// programmer error (§9 design note: write-once cell).
func (p *Program) Register(proc *Procedure) types.Id[types.Procedure] {
	if proc.id != nil {
		panic("vm: Procedure registered twice")
	}
	id := types.NewID[types.Procedure](len(p.procedures))
	proc.id = &id
	p.procedures = append(p.procedures, proc)
	return id
}

func (p *Program) Procedure(id types.Id[types.Procedure]) *Procedure {
	return p.procedures[id.Int()]
}

// AddTrigger binds handle to trigger (pre-run only; §4.4).
func (p *Program) AddTrigger(trigger Trigger, handle types.Id[types.Procedure]) {
	p.triggers[trigger] = append(p.triggers[trigger], handle)
}

// Dispatch returns the procedure handles bound to trigger, in registration
// order (§4.4, §4.7): the caller (scheduler) enqueues one Task per handle.
func (p *Program) Dispatch(trigger Trigger) []types.Id[types.Procedure] {
	return p.triggers[trigger]
}

func (p *Program) varCell(targetID int, varID uint32) (*varState, error) {
	n := len(p.globals)
	if int(varID) < n {
		return p.globals[varID], nil
	}
	if targetID < 0 || targetID >= len(p.targets) {
		return nil, fmt.Errorf("vm: out-of-range target id %d", targetID)
	}
	local := int(varID) - n
	tv := p.targets[targetID]
	if local < 0 || local >= len(tv.vars) {
		return nil, fmt.Errorf("vm: out-of-range var handle %d", varID)
	}
	return tv.vars[local], nil
}

// ReadVar resolves varID ≥ globals.len() into targets[targetID].vars at
// varID - globals.len() (§4.4).
func (p *Program) ReadVar(targetID int, varID uint32) (types.Value, error) {
	cell, err := p.varCell(targetID, varID)
	if err != nil {
		return nil, err
	}
	cell.mu.Lock()
	defer cell.mu.Unlock()
	return cell.val, nil
}

func (p *Program) SetVar(targetID int, varID uint32, v types.Value) error {
	cell, err := p.varCell(targetID, varID)
	if err != nil {
		return err
	}
	cell.mu.Lock()
	defer cell.mu.Unlock()
	cell.val = v
	return nil
}

// WithVar applies fn to the current value and stores its result. The
// callback must not re-enter the same variable's cell (§5 shared resources);
// the built-in lowerings never do.
func (p *Program) WithVar(targetID int, varID uint32, fn func(types.Value) types.Value) error {
	cell, err := p.varCell(targetID, varID)
	if err != nil {
		return err
	}
	cell.mu.Lock()
	defer cell.mu.Unlock()
	cell.val = fn(cell.val)
	return nil
}

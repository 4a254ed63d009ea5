package vm

import (
	"time"

	"github.com/lfmoo/scratchvm/types"
)

// Task is a single execution of a Procedure with its own call stack and
// operand stack (§3 Task, §4.5). The scheduler owns WakeTime; the
// interpreter owns everything else.
type Task struct {
	Proc     types.Id[types.Procedure]
	Location int
	Scopes   [][]types.Value // one local-array per active call frame
	Stack    []types.Value   // operand stack
	Complete bool
	WakeTime time.Time

	// TargetID is fixed at Task creation: every frame of a Task's call
	// stack runs on behalf of the same target (procedures are looked up
	// by proc_code within a single target's context at compile time).
	TargetID int
}

// NewTask starts a fresh Task at proc's entry point, with one scope sized to
// its local count (§4.5).
func NewTask(targetID int, proc *Procedure, procID types.Id[types.Procedure]) *Task {
	locals := make([]types.Value, len(proc.Locals))
	for i := range locals {
		locals[i] = types.Empty()
	}
	return &Task{
		Proc:     procID,
		Location: 0,
		Scopes:   [][]types.Value{locals},
		TargetID: targetID,
	}
}

func (t *Task) currentLocals() []types.Value { return t.Scopes[len(t.Scopes)-1] }

func (t *Task) Push(v types.Value) { t.Stack = append(t.Stack, v) }

// Pop removes and returns the top of the operand stack. Underflow is a
// fatal VM error (§4.5).
func (t *Task) Pop() (types.Value, error) {
	if len(t.Stack) == 0 {
		return nil, &VMError{Reason: "operand stack underflow"}
	}
	n := len(t.Stack) - 1
	v := t.Stack[n]
	t.Stack = t.Stack[:n]
	return v, nil
}

// PopValues pops n raw Values, in push order (first popped is the last
// returned, i.e. result[0] was pushed first).
func (t *Task) PopValues(n int) ([]types.Value, error) {
	out := make([]types.Value, n)
	for i := n - 1; i >= 0; i-- {
		v, err := t.Pop()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// PopNumbers pops n values and coerces each to a number (§4.1 to_number).
func (t *Task) PopNumbers(n int) ([]float64, error) {
	vals, err := t.PopValues(n)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i, v := range vals {
		f, err := types.ToNumber(v)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// PopStrings pops n values and coerces each to a string (§4.1 to_string).
func (t *Task) PopStrings(n int) ([]string, error) {
	vals, err := t.PopValues(n)
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i, v := range vals {
		s, err := types.ToString(v)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// callProcedure implements §4.5's calling convention: pop param_count
// values, install them as locals 0..param_count in pop order (last-pushed
// argument becomes local 0 — the documented source behavior), push a frame
// marker, and transfer control.
func (t *Task) callProcedure(prog *Program, procID types.Id[types.Procedure]) error {
	proc := prog.Procedure(procID)
	locals := make([]types.Value, len(proc.Locals))
	for i := 0; i < proc.ParamCount; i++ {
		v, err := t.Pop()
		if err != nil {
			return err
		}
		locals[i] = v
	}
	for i := proc.ParamCount; i < len(locals); i++ {
		locals[i] = types.Empty()
	}

	t.Push(types.NewReturnLocation(t.Location))
	t.Push(types.NewProcedureValue(t.Proc))

	t.Proc = procID
	t.Location = 0
	t.Scopes = append(t.Scopes, locals)
	return nil
}

// doReturn implements §4.5 Return: an empty operand stack completes the
// Task; otherwise it restores the caller's frame marker.
func (t *Task) doReturn() error {
	if len(t.Stack) == 0 {
		t.Complete = true
		return nil
	}
	procVal, err := t.Pop()
	if err != nil {
		return err
	}
	pv, ok := procVal.(types.ProcedureValue)
	if !ok {
		return &VMError{Reason: "Return found non-procedure frame marker"}
	}
	locVal, err := t.Pop()
	if err != nil {
		return err
	}
	lv, ok := locVal.(types.ReturnLocationValue)
	if !ok {
		return &VMError{Reason: "Return found non-location frame marker"}
	}

	t.Scopes = t.Scopes[:len(t.Scopes)-1]
	t.Proc = pv.ID
	t.Location = lv.Location
	return nil
}

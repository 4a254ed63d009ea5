package vm

import (
	"testing"

	"github.com/lfmoo/scratchvm/types"
)

func TestPopValuesPreservesPushOrder(t *testing.T) {
	task := &Task{}
	task.Push(types.NewString("first"))
	task.Push(types.NewString("second"))
	task.Push(types.NewString("third"))

	vals, err := task.PopValues(3)
	if err != nil {
		t.Fatalf("PopValues: %v", err)
	}
	want := []string{"first", "second", "third"}
	for i, v := range vals {
		s, _ := types.ToString(v)
		if s != want[i] {
			t.Fatalf("vals[%d] = %q, want %q", i, s, want[i])
		}
	}
	if len(task.Stack) != 0 {
		t.Fatalf("expected stack drained, got %d left", len(task.Stack))
	}
}

func TestPopUnderflowIsVMError(t *testing.T) {
	task := &Task{}
	_, err := task.Pop()
	if err == nil {
		t.Fatal("expected error popping empty stack")
	}
	if _, ok := err.(*VMError); !ok {
		t.Fatalf("expected *VMError, got %T: %v", err, err)
	}
}

// callProcedureFixture builds a one-parameter, two-local callee (param t,
// local scratch) and a caller Task with t's argument already on the stack,
// to exercise §4.5's calling convention (last-pushed argument becomes
// local 0 for a single-argument call).
func callProcedureFixture(argValue types.Value) (*Program, *Task, types.Id[types.Procedure]) {
	callee := &Procedure{
		Name:       "callee",
		ParamCount: 1,
		Locals:     []LocalSlot{{Name: "t"}, {Name: "scratch"}},
		Code:       []uint32{uint32(OpReturn)},
	}
	caller := &Procedure{
		Name:   "caller",
		Locals: nil,
		Code:   []uint32{uint32(OpReturn)},
	}
	prog := NewProgram(nil, nil, nil, nil, &RuntimeLibrary{})
	callerID := prog.Register(caller)
	calleeID := prog.Register(callee)

	task := NewTask(0, caller, callerID)
	task.Push(argValue)
	return prog, task, calleeID
}

func TestCallProcedureBindsArgumentToLocalZero(t *testing.T) {
	prog, task, calleeID := callProcedureFixture(types.NewString("abc"))

	if err := task.callProcedure(prog, calleeID); err != nil {
		t.Fatalf("callProcedure: %v", err)
	}
	if task.Proc != calleeID {
		t.Fatalf("task did not transfer to callee")
	}
	locals := task.currentLocals()
	if len(locals) != 2 {
		t.Fatalf("expected 2 locals, got %d", len(locals))
	}
	s, err := types.ToString(locals[0])
	if err != nil || s != "abc" {
		t.Fatalf("local 0 = %v, want \"abc\"", locals[0])
	}
	if locals[1] != types.Empty() {
		t.Fatalf("local 1 (unbound) should default to empty, got %v", locals[1])
	}
	// the argument is popped, then the frame marker (return location +
	// calling proc id) is pushed in its place
	if len(task.Stack) != 2 {
		t.Fatalf("expected 2-value frame marker on the stack, got %d", len(task.Stack))
	}
}

func TestReturnRestoresCallerFrame(t *testing.T) {
	prog, task, calleeID := callProcedureFixture(types.NewNumber(1))
	if err := task.callProcedure(prog, calleeID); err != nil {
		t.Fatalf("callProcedure: %v", err)
	}
	callerID := types.NewID[types.Procedure](0)

	if err := task.doReturn(); err != nil {
		t.Fatalf("doReturn: %v", err)
	}
	if task.Complete {
		t.Fatal("task should not be complete: caller frame remains")
	}
	if task.Proc != callerID {
		t.Fatalf("expected control back on caller proc, got %v", task.Proc)
	}
}

func TestReturnWithEmptyStackCompletesTask(t *testing.T) {
	proc := &Procedure{Name: "solo", Code: []uint32{uint32(OpReturn)}}
	prog := NewProgram(nil, nil, nil, nil, &RuntimeLibrary{})
	id := prog.Register(proc)
	task := NewTask(0, proc, id)

	if err := task.doReturn(); err != nil {
		t.Fatalf("doReturn: %v", err)
	}
	if !task.Complete {
		t.Fatal("expected task to complete when the operand stack is empty on Return")
	}
}

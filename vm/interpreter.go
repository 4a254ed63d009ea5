package vm

import (
	"math"
	"time"

	"github.com/lfmoo/scratchvm/trace"
	"github.com/lfmoo/scratchvm/types"
)

// Outcome reports why RunUntilYield returned: exactly one of Complete,
// SleepFor, or Dispatched applies (Yield and CallBuiltin suspend with none
// of the three set — the task is simply ready again next frame).
type Outcome struct {
	Complete   bool
	SleepFor   time.Duration // valid only if Slept is true
	Slept      bool
	Dispatched []types.Id[types.Procedure] // handles newly enqueued by DispatchEvent
}

// RuntimeContext is what a RuntimeFunc sees when CallBuiltin invokes it
// (§4.2): the task's operand stack and the owning Program, for output and
// (non-reentrant) event dispatch. Per §5's shared-resource rule a builtin
// must not invoke another builtin synchronously; this type does not enforce
// that (Program.Runtime is reachable through it).
type RuntimeContext struct {
	Task    *Task
	Program *Program
}

func (rc *RuntimeContext) Push(v types.Value) { rc.Task.Push(v) }
func (rc *RuntimeContext) Pop() (types.Value, error) { return rc.Task.Pop() }
func (rc *RuntimeContext) PopStrings(n int) ([]string, error) { return rc.Task.PopStrings(n) }
func (rc *RuntimeContext) PopNumbers(n int) ([]float64, error) { return rc.Task.PopNumbers(n) }
func (rc *RuntimeContext) PopValues(n int) ([]types.Value, error) { return rc.Task.PopValues(n) }

// RunUntilYield runs t to its next suspension point: Yield, Sleep,
// DispatchEvent, CallBuiltin, or a Return that completes the task (§5
// suspension points). It returns the first fatal VMError encountered, if
// any; the caller (scheduler) is responsible for discarding the Task on
// error.
func RunUntilYield(prog *Program, t *Task) (Outcome, error) {
	for {
		proc := prog.Procedure(t.Proc)
		if t.Location >= len(proc.Code) {
			return Outcome{}, &VMError{Reason: "read past end of bytecode without Return", ProcName: proc.Name, Offset: t.Location}
		}
		op := OpCode(proc.Code[t.Location])
		n := Arity(op)
		if n < 0 {
			return Outcome{}, &VMError{Reason: "unknown opcode", Opcode: op, ProcName: proc.Name, Offset: t.Location}
		}
		if t.Location+1+n > len(proc.Code) {
			return Outcome{}, &VMError{Reason: "truncated instruction", Opcode: op, ProcName: proc.Name, Offset: t.Location}
		}
		imm := proc.Code[t.Location+1 : t.Location+1+n]
		if trace.IsEnabled() {
			trace.Opcode(proc.Name, t.Location, op.String(), t.Stack...)
		}
		t.Location += 1 + n

		done, outcome, err := step(prog, t, proc, op, imm)
		if err != nil {
			return Outcome{}, err
		}
		if done {
			return outcome, nil
		}
	}
}

// step executes one instruction, returning done=true if the task should
// yield back to the scheduler (either suspended or completed).
func step(prog *Program, t *Task, proc *Procedure, op OpCode, imm []uint32) (bool, Outcome, error) {
	fail := func(err error) (bool, Outcome, error) { return false, Outcome{}, err }
	vmErr := func(reason string) (bool, Outcome, error) {
		return false, Outcome{}, &VMError{Reason: reason, Opcode: op, ProcName: proc.Name, Offset: t.Location}
	}

	switch op {
	case OpPushZero:
		t.Push(types.NewNumber(0))
	case OpPushConstant:
		idx := int(imm[0])
		if idx < 0 || idx >= len(prog.Constants) {
			return vmErr("constant handle out of range")
		}
		t.Push(types.NewString(prog.Constants[idx]))
	case OpPushUInt32:
		t.Push(types.NewNumber(float64(imm[0])))
	case OpPushNumber:
		bits := uint64(imm[0]) | uint64(imm[1])<<32
		t.Push(types.NewNumber(math.Float64frombits(bits)))
	case OpPushVar:
		v, err := prog.ReadVar(t.TargetID, imm[0])
		if err != nil {
			return vmErr(err.Error())
		}
		t.Push(v)
	case OpPushLocal:
		locals := t.currentLocals()
		idx := int(imm[0])
		if idx < 0 || idx >= len(locals) {
			return vmErr("local index out of range")
		}
		t.Push(locals[idx])

	case OpSetVar:
		v, err := t.Pop()
		if err != nil {
			return fail(err)
		}
		if err := prog.SetVar(t.TargetID, imm[0], v); err != nil {
			return vmErr(err.Error())
		}
	case OpChangeVar:
		delta, err := t.PopNumbers(1)
		if err != nil {
			return fail(err)
		}
		err = prog.WithVar(t.TargetID, imm[0], func(cur types.Value) types.Value {
			n, cerr := types.ToNumber(cur)
			if cerr != nil {
				n = 0
			}
			return types.NewNumber(n + delta[0])
		})
		if err != nil {
			return vmErr(err.Error())
		}
	case OpZeroVar:
		if err := prog.SetVar(t.TargetID, imm[0], types.NewNumber(0)); err != nil {
			return vmErr(err.Error())
		}
	case OpClearVar:
		if err := prog.SetVar(t.TargetID, imm[0], types.Empty()); err != nil {
			return vmErr(err.Error())
		}

	case OpSetLocal:
		v, err := t.Pop()
		if err != nil {
			return fail(err)
		}
		locals := t.currentLocals()
		if int(imm[0]) >= len(locals) {
			return vmErr("local index out of range")
		}
		locals[imm[0]] = v
	case OpDecLocal:
		locals := t.currentLocals()
		idx := imm[0]
		if int(idx) >= len(locals) {
			return vmErr("local index out of range")
		}
		n, err := types.ToNumber(locals[idx])
		if err != nil {
			return fail(err)
		}
		locals[idx] = types.NewNumber(n - 1)
	case OpZeroLocal:
		locals := t.currentLocals()
		if int(imm[0]) >= len(locals) {
			return vmErr("local index out of range")
		}
		locals[imm[0]] = types.NewNumber(0)
	case OpClearLocal:
		locals := t.currentLocals()
		if int(imm[0]) >= len(locals) {
			return vmErr("local index out of range")
		}
		locals[imm[0]] = types.Empty()

	case OpAdd:
		nums, err := t.PopNumbers(2)
		if err != nil {
			return fail(err)
		}
		t.Push(types.NewNumber(nums[0] + nums[1]))
	case OpGreaterThan:
		nums, err := t.PopNumbers(2)
		if err != nil {
			return fail(err)
		}
		t.Push(types.NewBoolean(nums[0] > nums[1]))

	case OpJump:
		t.Location = int(imm[0])
	case OpJumpIfTrue:
		v, err := t.Pop()
		if err != nil {
			return fail(err)
		}
		b, err := types.ToBoolean(v)
		if err != nil {
			return fail(err)
		}
		if b {
			t.Location = int(imm[0])
		}
	case OpJumpIfFalse:
		v, err := t.Pop()
		if err != nil {
			return fail(err)
		}
		b, err := types.ToBoolean(v)
		if err != nil {
			return fail(err)
		}
		if !b {
			t.Location = int(imm[0])
		}
	case OpReturn:
		if err := t.doReturn(); err != nil {
			return fail(err)
		}
		return t.Complete, Outcome{Complete: t.Complete}, nil
	case OpYield:
		return true, Outcome{}, nil
	case OpSleep:
		secs, err := t.PopNumbers(1)
		if err != nil {
			return fail(err)
		}
		if secs[0] < 0 {
			secs[0] = 0
		}
		trace.Sleep(proc.Name, secs[0])
		return true, Outcome{Slept: true, SleepFor: time.Duration(secs[0] * float64(time.Second))}, nil
	case OpDispatchEvent:
		trace.Dispatch(proc.Name, int(imm[0]))
		handles := prog.Dispatch(EventTrigger(types.NewID[types.Event](int(imm[0]))))
		return true, Outcome{Dispatched: handles}, nil
	case OpCallBuiltin:
		fn, ok := prog.Runtime.Get(int(imm[0]))
		if !ok {
			return fail(&UnknownBuiltinError{ID: int(imm[0])})
		}
		fn(&RuntimeContext{Task: t, Program: prog})
		return true, Outcome{}, nil
	case OpCallProcedure:
		procID := types.NewID[types.Procedure](int(imm[0]))
		if err := t.callProcedure(prog, procID); err != nil {
			return fail(err)
		}
	default:
		return vmErr("unhandled opcode")
	}
	return false, Outcome{}, nil
}

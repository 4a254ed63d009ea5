package vm

import (
	"math"
	"testing"

	"github.com/lfmoo/scratchvm/ast"
	"github.com/lfmoo/scratchvm/types"
)

func runProc(t *testing.T, prog *Program, proc *Procedure, id types.Id[types.Procedure]) (Outcome, *Task) {
	t.Helper()
	task := NewTask(0, proc, id)
	outcome, err := RunUntilYield(prog, task)
	if err != nil {
		t.Fatalf("RunUntilYield: %v", err)
	}
	return outcome, task
}

func TestPushUInt32AndAdd(t *testing.T) {
	proc := &Procedure{
		Name: "add",
		Code: []uint32{
			uint32(OpPushUInt32), 2,
			uint32(OpPushUInt32), 3,
			uint32(OpAdd),
			uint32(OpSetLocal), 0,
			uint32(OpReturn),
		},
		Locals: []LocalSlot{{}},
	}
	prog := NewProgram(nil, nil, nil, nil, &RuntimeLibrary{})
	id := prog.Register(proc)
	task := NewTask(0, proc, id)

	outcome, err := RunUntilYield(prog, task)
	if err != nil {
		t.Fatalf("RunUntilYield: %v", err)
	}
	if !outcome.Complete {
		t.Fatalf("expected task to complete, got %+v", outcome)
	}
	n, err := types.ToNumber(task.Scopes[0][0])
	if err != nil || n != 5 {
		t.Fatalf("expected local 0 == 5, got %v (err=%v)", task.Scopes[0][0], err)
	}
}

func TestSleepZeroYieldsImmediately(t *testing.T) {
	proc := &Procedure{
		Name: "sleeper",
		Code: []uint32{
			uint32(OpPushZero),
			uint32(OpSleep),
		},
	}
	prog := NewProgram(nil, nil, nil, nil, &RuntimeLibrary{})
	id := prog.Register(proc)

	outcome, _ := runProc(t, prog, proc, id)
	if !outcome.Slept {
		t.Fatal("expected Outcome.Slept")
	}
	if outcome.SleepFor != 0 {
		t.Fatalf("expected SleepFor 0, got %v", outcome.SleepFor)
	}
}

func TestSleepNegativeClampsToZero(t *testing.T) {
	bits := float64Bits(-1)
	proc := &Procedure{
		Name: "sleeper",
		Code: []uint32{
			uint32(OpPushNumber), bits[0], bits[1],
			uint32(OpSleep),
		},
	}
	prog := NewProgram(nil, nil, nil, nil, &RuntimeLibrary{})
	id := prog.Register(proc)
	outcome, _ := runProc(t, prog, proc, id)
	if outcome.SleepFor < 0 {
		t.Fatalf("expected SleepFor clamped to >= 0, got %v", outcome.SleepFor)
	}
}

func float64Bits(f float64) [2]uint32 {
	bits := math.Float64bits(f)
	return [2]uint32{uint32(bits), uint32(bits >> 32)}
}

func TestReadPastEndOfBytecodeIsVMError(t *testing.T) {
	proc := &Procedure{Name: "truncated", Code: []uint32{}}
	prog := NewProgram(nil, nil, nil, nil, &RuntimeLibrary{})
	id := prog.Register(proc)
	task := NewTask(0, proc, id)

	_, err := RunUntilYield(prog, task)
	if err == nil {
		t.Fatal("expected error reading past end of bytecode")
	}
}

// TestControlRepeatZeroTimesSkipsBody exercises spec.md §8's boundary
// behavior: control_repeat with TIMES = 0 executes SUBSTACK zero times and
// leaves the operand stack unchanged.
func TestControlRepeatZeroTimesSkipsBody(t *testing.T) {
	body := []*ast.Block{setVarBlock("v1", numberBlock("99"))}
	repeat := ast.NewBlock("control_repeat").
		WithInput("TIMES", ast.SingleInput(numberBlock("0"))).
		WithInput("SUBSTACK", ast.SubstackInput(body))

	proj := &ast.Project{
		Targets: []*ast.Target{
			{
				Name:      "Sprite1",
				Variables: []ast.Variable{{ID: "v1", Name: "v", Initial: types.NewNumber(7)}},
				Scripts: []*ast.Script{
					{Start: ast.StartCondition{Kind: ast.FlagClicked}, Blocks: []*ast.Block{repeat}},
				},
			},
		},
	}

	lib := NewBlockLibrary()
	RegisterSeed(lib)
	prog, err := CompileProject(proj, lib, 1)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	handles := prog.Dispatch(StartTrigger())
	if len(handles) != 1 {
		t.Fatalf("expected 1 dispatched procedure, got %d", len(handles))
	}
	proc := prog.Procedure(handles[0])
	task := NewTask(0, proc, handles[0])
	for !task.Complete {
		outcome, err := RunUntilYield(prog, task)
		if err != nil {
			t.Fatalf("RunUntilYield: %v", err)
		}
		if outcome.Slept {
			t.Fatal("unexpected sleep")
		}
	}

	if len(task.Stack) != 0 {
		t.Fatalf("expected empty operand stack after TIMES=0, got %d values", len(task.Stack))
	}
	v, err := prog.ReadVar(0, 0)
	if err != nil {
		t.Fatalf("ReadVar: %v", err)
	}
	n, _ := types.ToNumber(v)
	if n != 7 {
		t.Fatalf("expected v to remain 7 (body never ran), got %v", n)
	}
}

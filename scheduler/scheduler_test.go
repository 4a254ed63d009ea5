package scheduler

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/lfmoo/scratchvm/ast"
	"github.com/lfmoo/scratchvm/builtins"
	"github.com/lfmoo/scratchvm/types"
	"github.com/lfmoo/scratchvm/vm"
)

func textBlock(s string) *ast.Block {
	return ast.NewBlock(ast.OpcodeText).WithField("TEXT", ast.NewField(s))
}

func numberBlock(n string) *ast.Block {
	return ast.NewBlock(ast.OpcodeMathNumber).WithField("NUM", ast.NewField(n))
}

func waitThenSayScript(seconds, label string) *ast.Script {
	wait := ast.NewBlock("control_wait").WithInput("DURATION", ast.SingleInput(numberBlock(seconds)))
	say := ast.NewBlock("looks_say").WithInput("MESSAGE", ast.SingleInput(textBlock(label)))
	return &ast.Script{Start: ast.StartCondition{Kind: ast.FlagClicked}, Blocks: []*ast.Block{wait, say}}
}

// TestSleepOrdering exercises spec.md §8 end-to-end scenario 6: Task A
// sleeps 0.05s, Task B sleeps 0.01s, both started in the same frame. B must
// resume (and say its label) before A, and the clock must have advanced by
// at least 0.05s in total by the time both complete.
func TestSleepOrdering(t *testing.T) {
	proj := &ast.Project{
		Targets: []*ast.Target{
			{Name: "Sprite1", Scripts: []*ast.Script{
				waitThenSayScript("0.05", "A"),
				waitThenSayScript("0.01", "B"),
			}},
		},
	}

	lib := vm.NewBlockLibrary()
	vm.RegisterSeed(lib)
	builtins.RegisterSeed(lib)
	prog, err := vm.CompileProject(proj, lib, 1)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	var out bytes.Buffer
	prog.Output = &out

	clock := NewFakeClock(time.Unix(0, 0))
	sched := New(prog, clock)
	sched.Dispatch(vm.StartTrigger())
	sched.Run()

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 output lines, got %v", lines)
	}
	if lines[0] != "B" || lines[1] != "A" {
		t.Fatalf("expected B before A, got %v", lines)
	}

	elapsed := clock.Now().Sub(time.Unix(0, 0))
	if elapsed < 50*time.Millisecond {
		t.Fatalf("expected clock to advance at least 50ms, got %v", elapsed)
	}
}

// TestDispatchEnqueuesInRegistrationOrder checks that two FlagClicked
// scripts are enqueued as ready tasks in the order they were compiled,
// independent of any sleeping.
func TestDispatchEnqueuesInRegistrationOrder(t *testing.T) {
	proj := &ast.Project{
		Targets: []*ast.Target{
			{Name: "Sprite1", Variables: []ast.Variable{{ID: "v1", Name: "v", Initial: types.NewString("")}}, Scripts: []*ast.Script{
				{Start: ast.StartCondition{Kind: ast.FlagClicked}, Blocks: []*ast.Block{
					ast.NewBlock("looks_say").WithInput("MESSAGE", ast.SingleInput(textBlock("first"))),
				}},
				{Start: ast.StartCondition{Kind: ast.FlagClicked}, Blocks: []*ast.Block{
					ast.NewBlock("looks_say").WithInput("MESSAGE", ast.SingleInput(textBlock("second"))),
				}},
			}},
		},
	}

	lib := vm.NewBlockLibrary()
	vm.RegisterSeed(lib)
	builtins.RegisterSeed(lib)
	prog, err := vm.CompileProject(proj, lib, 1)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	var out bytes.Buffer
	prog.Output = &out

	sched := New(prog, nil)
	sched.Dispatch(vm.StartTrigger())
	sched.Run()

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if len(lines) != 2 || lines[0] != "first" || lines[1] != "second" {
		t.Fatalf("expected [first second], got %v", lines)
	}
}

package builtins

import (
	"bytes"
	"testing"

	"github.com/lfmoo/scratchvm/types"
	"github.com/lfmoo/scratchvm/vm"
)

func newTestContext() *vm.RuntimeContext {
	prog := vm.NewProgram(nil, nil, nil, nil, nil)
	return &vm.RuntimeContext{Task: &vm.Task{}, Program: prog}
}

func TestJoinRuntime(t *testing.T) {
	rc := newTestContext()
	rc.Push(types.NewString("hello, "))
	rc.Push(types.NewString("world"))
	joinRuntime(rc)
	v, err := rc.Pop()
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if s, _ := types.ToString(v); s != "hello, world" {
		t.Fatalf("got %q", s)
	}
}

func TestLengthOfRuntime(t *testing.T) {
	rc := newTestContext()
	rc.Push(types.NewString("abc"))
	lengthOfRuntime(rc)
	v, _ := rc.Pop()
	n, _ := types.ToNumber(v)
	if n != 3 {
		t.Fatalf("got %v", n)
	}
}

func TestLetterOfRuntime(t *testing.T) {
	rc := newTestContext()
	rc.Push(types.NewNumber(2))
	rc.Push(types.NewString("abc"))
	letterOfRuntime(rc)
	v, _ := rc.Pop()
	if s, _ := types.ToString(v); s != "b" {
		t.Fatalf("got %q", s)
	}
}

func TestLetterOfRuntimeOutOfRange(t *testing.T) {
	rc := newTestContext()
	rc.Push(types.NewNumber(99))
	rc.Push(types.NewString("abc"))
	letterOfRuntime(rc)
	v, _ := rc.Pop()
	if s, _ := types.ToString(v); s != "" {
		t.Fatalf("got %q, want empty string", s)
	}
}

func TestEqualsRuntime(t *testing.T) {
	rc := newTestContext()
	rc.Push(types.NewNumber(5))
	rc.Push(types.NewString("5"))
	equalsRuntime(rc)
	v, _ := rc.Pop()
	b, _ := types.ToBoolean(v)
	if !b {
		t.Fatalf("expected 5 == \"5\"")
	}
}

func TestLtRuntime(t *testing.T) {
	rc := newTestContext()
	rc.Push(types.NewNumber(1))
	rc.Push(types.NewNumber(2))
	ltRuntime(rc)
	v, _ := rc.Pop()
	b, _ := types.ToBoolean(v)
	if !b {
		t.Fatalf("expected 1 < 2")
	}
}

func TestSayRuntimeWritesToProgramOutput(t *testing.T) {
	var buf bytes.Buffer
	rc := newTestContext()
	rc.Program.Output = &buf
	rc.Push(types.NewString("hi"))
	sayRuntime(rc)
	if buf.String() != "hi\n" {
		t.Fatalf("got %q", buf.String())
	}
}

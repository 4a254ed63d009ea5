package conformance

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/lfmoo/scratchvm/ast"
	"github.com/lfmoo/scratchvm/builtins"
	"github.com/lfmoo/scratchvm/sb3"
	"github.com/lfmoo/scratchvm/scheduler"
	"github.com/lfmoo/scratchvm/types"
	"github.com/lfmoo/scratchvm/vm"
)

// newLibrary assembles a fresh BlockLibrary for one run: Split freezes it,
// so every case needs its own (a library may not be reused across builds).
func newLibrary() *vm.BlockLibrary {
	lib := vm.NewBlockLibrary()
	vm.RegisterSeed(lib)
	builtins.RegisterSeed(lib)
	return lib
}

// RunCase runs tc through ingest -> compile -> schedule and checks it
// against tc.Expect, returning a descriptive error on mismatch and nil on
// success (including the case where Expect.Error correctly predicted an
// ingest/compile failure).
func RunCase(tc TestCase) error {
	proj, err := sb3.Parse([]byte(tc.Project))
	if err != nil {
		return matchExpectedError(tc, err)
	}

	workers := tc.Workers
	if workers == 0 {
		workers = 1
	}
	prog, err := vm.CompileProject(proj, newLibrary(), workers)
	if err != nil {
		return matchExpectedError(tc, err)
	}
	if tc.Expect.Error != "" {
		return fmt.Errorf("expected error containing %q, but ingest/compile succeeded", tc.Expect.Error)
	}

	var out bytes.Buffer
	prog.Output = &out

	sched := scheduler.New(prog, nil)
	sched.Dispatch(vm.StartTrigger())
	sched.Run()

	if err := checkOutput(out.String(), tc.Expect.Output); err != nil {
		return err
	}
	return checkGlobals(prog, proj, tc.Expect.Globals)
}

func matchExpectedError(tc TestCase, err error) error {
	if tc.Expect.Error == "" {
		return fmt.Errorf("unexpected error: %v", err)
	}
	if !strings.Contains(err.Error(), tc.Expect.Error) {
		return fmt.Errorf("error %q does not contain expected substring %q", err.Error(), tc.Expect.Error)
	}
	return nil
}

func checkOutput(got string, want []string) error {
	if len(want) == 0 {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	if got == "" {
		lines = nil
	}
	if len(lines) != len(want) {
		return fmt.Errorf("output line count: got %d %v, want %d %v", len(lines), lines, len(want), want)
	}
	for i := range want {
		if lines[i] != want[i] {
			return fmt.Errorf("output line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
	return nil
}

func checkGlobals(prog *vm.Program, proj *ast.Project, want map[string]string) error {
	for name, wantVal := range want {
		idx := -1
		for i, v := range proj.Variables {
			if v.Name == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("no global variable named %q in project", name)
		}
		v, err := prog.ReadVar(0, uint32(idx))
		if err != nil {
			return fmt.Errorf("reading global %q: %w", name, err)
		}
		got, err := types.ToString(v)
		if err != nil {
			return fmt.Errorf("coercing global %q to string: %w", name, err)
		}
		if got != wantVal {
			return fmt.Errorf("global %q: got %q, want %q", name, got, wantVal)
		}
	}
	return nil
}

// Package builtins registers the runtime-only seed block catalog (SPEC_FULL
// §4.2(a)): looks_say, string operators, and comparisons. These are plain
// RuntimeFuncs with no custom lowering — the compiler's default pattern
// (push each input, CallBuiltin) applies (ground: vm.BlockLibrary's
// runtime-only registration path).
package builtins

import (
	"fmt"

	"github.com/lfmoo/scratchvm/types"
	"github.com/lfmoo/scratchvm/vm"
)

// RegisterSeed installs the runtime-only seed catalog into lib. looks_say
// writes to the owning Program's Output (§6 output sink, ADDED) — resolved
// per-call, not at registration time, so a test harness can swap the
// Program's sink after compilation.
func RegisterSeed(lib *vm.BlockLibrary) {
	lib.Register(vm.BlockSpec{
		Opcode:  "looks_say",
		Runtime: sayRuntime,
	})
	lib.Register(vm.BlockSpec{
		Opcode:      "operator_join",
		IsReporter:  true,
		InputsOrder: []string{"STRING1", "STRING2"},
		Runtime:     joinRuntime,
	})
	lib.Register(vm.BlockSpec{
		Opcode:      "length_of",
		IsReporter:  true,
		InputsOrder: []string{"STRING"},
		Runtime:     lengthOfRuntime,
	})
	lib.Register(vm.BlockSpec{
		Opcode:      "letter_of",
		IsReporter:  true,
		InputsOrder: []string{"INDEX", "STRING"},
		Runtime:     letterOfRuntime,
	})
	lib.Register(vm.BlockSpec{
		Opcode:      "operator_equals",
		IsReporter:  true,
		InputsOrder: []string{"OPERAND1", "OPERAND2"},
		Runtime:     equalsRuntime,
	})
	lib.Register(vm.BlockSpec{
		Opcode:      "operator_lt",
		IsReporter:  true,
		InputsOrder: []string{"OPERAND1", "OPERAND2"},
		Runtime:     ltRuntime,
	})
}

// sayRuntime pops the top of stack, coerces it to string, and writes it
// followed by a newline to the Program's output sink (§4.3 seed lowerings:
// "looks_say ... prints the coerced string of the top of stack").
func sayRuntime(rc *vm.RuntimeContext) {
	v, err := rc.Pop()
	if err != nil {
		return
	}
	s, err := types.ToString(v)
	if err != nil {
		s = "" // non-coercible tag: say the empty string rather than fail the whole task
	}
	fmt.Fprintln(rc.Program.Output, s)
}

// joinRuntime concatenates two coerced strings (§4.3 operator_join
// contract).
func joinRuntime(rc *vm.RuntimeContext) {
	strs, err := rc.PopStrings(2)
	if err != nil {
		return
	}
	rc.Push(types.NewString(strs[0] + strs[1]))
}

// lengthOfRuntime pushes the Unicode grapheme-cluster count of a coerced
// string. No grapheme-segmentation library is available in this pack (the
// original uses Rust's UnicodeSegmentation); this counts runes instead,
// which undercounts multi-rune grapheme clusters (e.g. flags, skin-tone
// modifiers) — see DESIGN.md for the justification.
func lengthOfRuntime(rc *vm.RuntimeContext) {
	strs, err := rc.PopStrings(1)
	if err != nil {
		return
	}
	rc.Push(types.NewNumber(float64(len([]rune(strs[0])))))
}

// letterOfRuntime pushes the 1-indexed rune at INDEX of STRING, or the
// empty string out of range (§4.2(a) letter_of contract).
func letterOfRuntime(rc *vm.RuntimeContext) {
	v, err := rc.Pop()
	if err != nil {
		return
	}
	s, err := types.ToString(v)
	if err != nil {
		rc.Push(types.NewString(""))
		return
	}
	idxVal, err := rc.Pop()
	if err != nil {
		return
	}
	idx, err := types.ToNumber(idxVal)
	if err != nil {
		rc.Push(types.NewString(""))
		return
	}
	runes := []rune(s)
	i := int(idx)
	if i < 1 || i > len(runes) {
		rc.Push(types.NewString(""))
		return
	}
	rc.Push(types.NewString(string(runes[i-1])))
}

// equalsRuntime coerces both operands to string and compares (Scratch's
// operator_equals is defined on the stringified form so that `"5" = 5` is
// true).
func equalsRuntime(rc *vm.RuntimeContext) {
	strs, err := rc.PopStrings(2)
	if err != nil {
		return
	}
	rc.Push(types.NewBoolean(strs[0] == strs[1]))
}

// ltRuntime coerces both operands to number and compares.
func ltRuntime(rc *vm.RuntimeContext) {
	nums, err := rc.PopNumbers(2)
	if err != nil {
		return
	}
	rc.Push(types.NewBoolean(nums[0] < nums[1]))
}

package vm

import (
	"fmt"

	"github.com/lfmoo/scratchvm/types"
)

// CompileError reports a failure to lower a script (§7). Compilation is
// all-or-nothing: a CompileError aborts compiling the whole Project.
type CompileError struct {
	Reason   string
	Opcode   string
	ProcName string
}

func (e *CompileError) Error() string {
	msg := fmt.Sprintf("compile error: %s", e.Reason)
	if e.Opcode != "" {
		msg += fmt.Sprintf(" (opcode %s)", e.Opcode)
	}
	if e.ProcName != "" {
		msg += fmt.Sprintf(" in %s", e.ProcName)
	}
	return msg
}

func (e *CompileError) Kind() types.ErrorKind { return types.KindCompileError }

func errUnknownOpcode(opcode string) error {
	return &CompileError{Reason: "unknown opcode", Opcode: opcode}
}

func errMissingInput(opcode, input string) error {
	return &CompileError{Reason: fmt.Sprintf("missing required input %q", input), Opcode: opcode}
}

func errMissingField(opcode, field string) error {
	return &CompileError{Reason: fmt.Sprintf("missing required field %q", field), Opcode: opcode}
}

func errInvalidNumericLiteral(opcode, raw string) error {
	return &CompileError{Reason: fmt.Sprintf("invalid numeric literal %q", raw), Opcode: opcode}
}

func errMultiBlockValue(opcode string) error {
	return &CompileError{Reason: "multi-block input used where a single value is required", Opcode: opcode}
}

func errFieldsOnRuntimeOnly(opcode string) error {
	return &CompileError{Reason: "runtime-only block may not declare fields", Opcode: opcode}
}

// VMError reports a fatal failure inside the running bytecode interpreter
// (§7): operand-stack underflow, reading past the end of bytecode without
// Return, or an out-of-range handle. A VMError aborts only the offending
// Task; other tasks continue (§7 propagation).
type VMError struct {
	Reason   string
	Opcode   OpCode
	ProcName string
	Offset   int
}

func (e *VMError) Error() string {
	return fmt.Sprintf("vm error: %s (opcode %s, proc %s, offset %d)", e.Reason, e.Opcode, e.ProcName, e.Offset)
}

func (e *VMError) Kind() types.ErrorKind { return types.KindVMError }

// UnknownTriggerError / UnknownBuiltinError are defensive programmer errors
// (§7): dispatching a trigger or calling a builtin id the Program never
// registered.
type UnknownTriggerError struct{ Trigger any }

func (e *UnknownTriggerError) Error() string         { return fmt.Sprintf("unknown trigger %v", e.Trigger) }
func (e *UnknownTriggerError) Kind() types.ErrorKind { return types.KindUnknownTrigger }

type UnknownBuiltinError struct{ ID int }

func (e *UnknownBuiltinError) Error() string         { return fmt.Sprintf("unknown builtin id %d", e.ID) }
func (e *UnknownBuiltinError) Kind() types.ErrorKind { return types.KindUnknownBuiltin }

package vm

import "github.com/lfmoo/scratchvm/ast"

// RegisterProcedure records proc's proc_code against its target so a later
// procedures_call on the same target resolves to it — including forward and
// recursive references, since registration happens in a pre-pass before any
// script is lowered (§4.3(a)).
func (tc *TargetContext) RegisterProcedure(procCode string, handle int) {
	tc.procTable[procCode] = handle
}

func (tc *TargetContext) LookupProcedure(procCode string) (int, bool) {
	h, ok := tc.procTable[procCode]
	return h, ok
}

// RegisterSeed installs the core control/data seed lowerings spec.md §4.3
// names by contract. These are the only opcodes that must be custom-lowered
// rather than falling to the runtime-only default; everything else (looks_say,
// operator_join, comparisons, string ops) is a plain runtime callback
// registered by package builtins.
func RegisterSeed(lib *BlockLibrary) {
	lib.Register(BlockSpec{Opcode: "data_setvariableto", Lower: lowerSetVariableTo})
	lib.Register(BlockSpec{Opcode: "data_changevariableby", Lower: lowerChangeVariableBy})
	lib.Register(BlockSpec{Opcode: "control_forever", Lower: lowerForever})
	lib.Register(BlockSpec{Opcode: "control_repeat", Lower: lowerRepeat})
	lib.Register(BlockSpec{Opcode: "control_wait", Lower: lowerWait})
	lib.Register(BlockSpec{Opcode: "procedures_call", Lower: lowerProceduresCall})
	lib.Register(BlockSpec{Opcode: "operator_gt", Lower: lowerOperatorGT, IsReporter: true})
	lib.Register(BlockSpec{Opcode: "event_broadcast", Lower: lowerEventBroadcast})
	lib.Register(BlockSpec{Opcode: "argument_reporter_string_number", Lower: lowerArgumentReporter, IsReporter: true})
}

// lowerSetVariableTo: push VALUE; SetVar handle; yield (§4.3 seed
// lowerings).
func lowerSetVariableTo(ctx *CompileContext) {
	in, err := ctx.Input("VALUE")
	panicOn(err)
	panicOn(ctx.Compiler.PushValue(in))
	f, err := ctx.VarField("VARIABLE")
	panicOn(err)
	handle, ok := ctx.Compiler.Target.Var(f.ID)
	if !ok {
		panic(errMissingField(ctx.Block.Opcode, "VARIABLE"))
	}
	ctx.Compiler.WriteOp(OpSetVar)
	ctx.Compiler.WriteImm(handle)
	ctx.Compiler.EmitYield()
}

// lowerChangeVariableBy: push VALUE; ChangeVar handle; yield.
func lowerChangeVariableBy(ctx *CompileContext) {
	in, err := ctx.Input("VALUE")
	panicOn(err)
	panicOn(ctx.Compiler.PushValue(in))
	f, err := ctx.VarField("VARIABLE")
	panicOn(err)
	handle, ok := ctx.Compiler.Target.Var(f.ID)
	if !ok {
		panic(errMissingField(ctx.Block.Opcode, "VARIABLE"))
	}
	ctx.Compiler.WriteOp(OpChangeVar)
	ctx.Compiler.WriteImm(handle)
	ctx.Compiler.EmitYield()
}

// lowerForever: mark label L; lower SUBSTACK; Jump L.
func lowerForever(ctx *CompileContext) {
	c := ctx.Compiler
	L := c.Here()
	sub, _ := ctx.Block.Inputs["SUBSTACK"]
	panicOn(c.CompileSubstack(substackBlocks(sub)))
	c.WriteJumpTo(OpJump, L)
}

// lowerRepeat: claim local C; push TIMES; SetLocal C; mark L; emit compare
// C > 0; JumpIfFalse END; DecLocal C; lower SUBSTACK; Jump L; finalize END;
// release C.
func lowerRepeat(ctx *CompileContext) {
	c := ctx.Compiler
	times, err := ctx.Input("TIMES")
	panicOn(err)

	C := c.ClaimLocal()
	panicOn(c.PushValue(times))
	c.WriteOp(OpSetLocal)
	c.WriteImm(uint32(C))

	L := c.Here()
	c.WriteOp(OpPushLocal)
	c.WriteImm(uint32(C))
	c.WriteOp(OpPushZero)
	c.WriteOp(OpGreaterThan)

	END := NewPlaceholderLabel()
	c.WriteJumpPlaceholder(OpJumpIfFalse, END)

	c.WriteOp(OpDecLocal)
	c.WriteImm(uint32(C))

	sub := ctx.Block.Inputs["SUBSTACK"]
	panicOn(c.CompileSubstack(substackBlocks(sub)))
	c.WriteJumpTo(OpJump, L)

	c.FinalizeHere(END)
	c.ReleaseLocal(C)
}

// lowerWait: push DURATION; Sleep.
func lowerWait(ctx *CompileContext) {
	in, err := ctx.Input("DURATION")
	panicOn(err)
	panicOn(ctx.Compiler.PushValue(in))
	ctx.Compiler.WriteOp(OpSleep)
}

// lowerProceduresCall pushes each bound argument (left to right, per the
// prototype's declared arg order in Mutation) then emits CallProcedure
// against this target's proc_code table (§4.2 procedures_call contract).
func lowerProceduresCall(ctx *CompileContext) {
	c := ctx.Compiler
	b := ctx.Block
	if b.Mutation == nil {
		panic(errMissingField(b.Opcode, "mutation"))
	}
	for _, argID := range b.Mutation.ArgIDs {
		in, ok := b.Inputs[argID]
		if !ok {
			panic(errMissingInput(b.Opcode, argID))
		}
		panicOn(c.PushValue(in))
	}
	handle, ok := c.Target.LookupProcedure(b.Mutation.ProcCode)
	if !ok {
		panic(errUnknownOpcode(b.Opcode))
	}
	c.WriteOp(OpCallProcedure)
	c.WriteImm(uint32(handle))
}

// lowerOperatorGT emits a direct GreaterThan comparison (§4.3 design note:
// GreaterThan is the compiled form of gt, used directly rather than through
// CallBuiltin).
func lowerOperatorGT(ctx *CompileContext) {
	c := ctx.Compiler
	num1, err := ctx.Input("OPERAND1")
	panicOn(err)
	num2, err := ctx.Input("OPERAND2")
	panicOn(err)
	panicOn(c.PushValue(num1))
	panicOn(c.PushValue(num2))
	c.WriteOp(OpGreaterThan)
}

// lowerEventBroadcast resolves the BROADCAST_INPUT's event reference to its
// project-wide event index at compile time and emits DispatchEvent directly
// — the trigger fires and the task yields (§4.6 operational notes).
func lowerEventBroadcast(ctx *CompileContext) {
	c := ctx.Compiler
	in, err := ctx.Input("BROADCAST_INPUT")
	panicOn(err)
	if !in.IsSingleValue() {
		panic(errMultiBlockValue(ctx.Block.Opcode))
	}
	prim, ok := in.Blocks[0].TryAsPrimitive()
	if !ok || prim.Kind != ast.PrimitiveBroadcast {
		panic(errMissingInput(ctx.Block.Opcode, "BROADCAST_INPUT"))
	}
	handle, ok := c.Target.Event(prim.RefID)
	if !ok {
		panic(errMissingField(ctx.Block.Opcode, "BROADCAST_INPUT"))
	}
	c.WriteOp(OpDispatchEvent)
	c.WriteImm(handle)
}

// lowerArgumentReporter resolves a custom block's own parameter reference to
// its local slot and pushes it (§4.2(a) argument_reporter_string_number
// contract: the name is carried in the VALUE field, not an input).
func lowerArgumentReporter(ctx *CompileContext) {
	f, err := ctx.VarField("VALUE")
	panicOn(err)
	idx, ok := ctx.Compiler.ArgLocal(f.Value)
	if !ok {
		panic(errMissingField(ctx.Block.Opcode, "VALUE"))
	}
	ctx.Compiler.WriteOp(OpPushLocal)
	ctx.Compiler.WriteImm(uint32(idx))
}

func substackBlocks(in *ast.Input) []*ast.Block {
	if in == nil {
		return nil
	}
	return in.Blocks
}

// panicOn converts a compile-time error into a panic recovered by
// runLower, letting lowering functions read like straight-line code instead
// of threading error returns through every helper call.
func panicOn(err error) {
	if err != nil {
		panic(err)
	}
}

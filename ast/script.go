package ast

// StartKind is the closed set of ways a Script can begin (§3 Script).
type StartKind int

const (
	FlagClicked StartKind = iota
	BroadcastReceived
	ProcedureCalled
)

// StartCondition is a Script's trigger: FlagClicked carries nothing,
// BroadcastReceived carries the broadcast's event id, ProcedureCalled
// carries the custom-block prototype.
type StartCondition struct {
	Kind      StartKind
	EventID   string              // set when Kind == BroadcastReceived
	Prototype *ProcedurePrototype // set when Kind == ProcedureCalled
}

// ProcedurePrototype describes a custom block's calling convention (§3
// Script): its proc_code, its ordered arguments, and whether it runs
// "warp" (yield-suppressed, §4.3).
type ProcedurePrototype struct {
	ProcCode string
	Args     []ProcedureArgument
	Warp     bool
}

// ProcedureArgument is one (arg_id, arg_name, default) triple from a custom
// block's prototype.
type ProcedureArgument struct {
	ArgID   string
	Name    string
	Default string
}

// Script is a start condition plus an ordered sequence of statement Blocks
// (§3 Script).
type Script struct {
	Start  StartCondition
	Blocks []*Block
}

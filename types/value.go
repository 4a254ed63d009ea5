package types

// TypeTag identifies which of the closed set of runtime value kinds a Value
// carries. Unlike MOO's TypeCode (types/typecode.go in the host codebase)
// this enumeration is small and fixed: the VM never grows new value kinds at
// runtime.
type TypeTag int

const (
	TagString TypeTag = iota
	TagNumber
	TagBoolean
	TagReturnLocation
	TagEvent
	TagProcedure
)

func (t TypeTag) String() string {
	switch t {
	case TagString:
		return "string"
	case TagNumber:
		return "number"
	case TagBoolean:
		return "boolean"
	case TagReturnLocation:
		return "return-location"
	case TagEvent:
		return "event"
	case TagProcedure:
		return "procedure"
	default:
		return "unknown"
	}
}

// Value is the dynamic value discipline of the VM: a tagged union of
// String | Number | Boolean | ReturnLocation | Event | Procedure.
type Value interface {
	Type() TypeTag
	// String is a debug/trace rendering (quoted strings, tagged handles);
	// it is never used for program-visible coercion — see ToString.
	String() string
	Equal(other Value) bool
}

// StringValue is a MOO-string-like Value.
type StringValue struct{ Val string }

func NewString(s string) StringValue { return StringValue{Val: s} }

func (v StringValue) Type() TypeTag { return TagString }
func (v StringValue) String() string {
	return `"` + v.Val + `"`
}
func (v StringValue) Equal(other Value) bool {
	o, ok := other.(StringValue)
	return ok && o.Val == v.Val
}

// NumberValue is a double-precision float Value.
type NumberValue struct{ Val float64 }

func NewNumber(n float64) NumberValue { return NumberValue{Val: n} }

func (v NumberValue) Type() TypeTag   { return TagNumber }
func (v NumberValue) String() string  { return formatNumber(v.Val) }
func (v NumberValue) Equal(other Value) bool {
	o, ok := other.(NumberValue)
	return ok && o.Val == v.Val
}

// BooleanValue is a bool Value.
type BooleanValue struct{ Val bool }

func NewBoolean(b bool) BooleanValue { return BooleanValue{Val: b} }

func (v BooleanValue) Type() TypeTag { return TagBoolean }
func (v BooleanValue) String() string {
	if v.Val {
		return "true"
	}
	return "false"
}
func (v BooleanValue) Equal(other Value) bool {
	o, ok := other.(BooleanValue)
	return ok && o.Val == v.Val
}

// ReturnLocationValue is a saved bytecode offset, pushed by the calling
// convention's frame marker (§4.5) and never program-visible otherwise.
type ReturnLocationValue struct{ Location int }

func NewReturnLocation(loc int) ReturnLocationValue { return ReturnLocationValue{Location: loc} }

func (v ReturnLocationValue) Type() TypeTag  { return TagReturnLocation }
func (v ReturnLocationValue) String() string { return "<return-location>" }
func (v ReturnLocationValue) Equal(other Value) bool {
	o, ok := other.(ReturnLocationValue)
	return ok && o.Location == v.Location
}

// EventValue carries an event handle as a Value (e.g. so DispatchEvent
// targets can be pushed and looked up like any other Value).
type EventValue struct{ ID Id[Event] }

func NewEventValue(id Id[Event]) EventValue { return EventValue{ID: id} }

func (v EventValue) Type() TypeTag  { return TagEvent }
func (v EventValue) String() string { return "<event " + v.ID.String() + ">" }
func (v EventValue) Equal(other Value) bool {
	o, ok := other.(EventValue)
	return ok && o.ID == v.ID
}

// ProcedureValue carries a procedure handle, pushed as the frame marker by
// CallProcedure (§4.5) and popped by Return.
type ProcedureValue struct{ ID Id[Procedure] }

func NewProcedureValue(id Id[Procedure]) ProcedureValue { return ProcedureValue{ID: id} }

func (v ProcedureValue) Type() TypeTag  { return TagProcedure }
func (v ProcedureValue) String() string { return "<procedure " + v.ID.String() + ">" }
func (v ProcedureValue) Equal(other Value) bool {
	o, ok := other.(ProcedureValue)
	return ok && o.ID == v.ID
}

// Empty is the default Value: the empty string (§3 Value).
func Empty() Value { return StringValue{} }

package ast

import "strconv"

// Block is a node in the Scratch source tree: an opcode plus named Inputs
// (sub-expressions) and Fields (literal attributes) (§3 Block, GLOSSARY).
type Block struct {
	Opcode   string
	ProcCode string // set for procedures_call
	Inputs   map[string]*Input
	Fields   map[string]Field
	Mutation *Mutation // set for procedures_call / procedures_definition
}

func NewBlock(opcode string) *Block {
	return &Block{Opcode: opcode, Inputs: map[string]*Input{}, Fields: map[string]Field{}}
}

func (b *Block) WithInput(name string, in *Input) *Block {
	b.Inputs[name] = in
	return b
}

func (b *Block) WithField(name string, f Field) *Block {
	b.Fields[name] = f
	return b
}

// Input is an opcode-keyed sub-expression: either a single value-producing
// Block, or an ordered sub-stack of statement Blocks (§3 Block).
type Input struct {
	Blocks []*Block
}

func SingleInput(b *Block) *Input   { return &Input{Blocks: []*Block{b}} }
func SubstackInput(bs []*Block) *Input { return &Input{Blocks: bs} }

// IsSingleValue reports whether this input holds exactly one block, the
// only shape valid as a value (§4.3 lowering algorithm).
func (in *Input) IsSingleValue() bool {
	return in != nil && len(in.Blocks) == 1
}

// Field is a string-valued block attribute, optionally carrying an id (for
// variable/broadcast references, §3 Block).
type Field struct {
	Value string
	ID    string // empty if unset
}

func NewField(value string) Field            { return Field{Value: value} }
func NewIdentifiedField(id, value string) Field { return Field{Value: value, ID: id} }

func (f Field) HasID() bool { return f.ID != "" }

// Mutation carries a custom block's argument shape, present on
// procedures_call/procedures_definition blocks (§6 ingest rules,
// SPEC_FULL §3).
type Mutation struct {
	ProcCode  string
	ArgIDs    []string
	ArgNames  []string
	ArgValues []string
	Warp      bool
}

// Primitive is the virtual-block classification of a literal/reporter
// opcode that the compiler inflates to a direct stack push (§3 Primitive).
type PrimitiveKind int

const (
	PrimitiveText PrimitiveKind = iota
	PrimitiveNumber
	PrimitiveInteger
	PrimitiveWholeNumber
	PrimitivePositiveNumber
	PrimitiveAngle
	PrimitiveVariable
	PrimitiveBroadcast
)

type Primitive struct {
	Kind PrimitiveKind
	Text string  // PrimitiveText
	Num  float64 // numeric kinds
	// Raw/ParseOK: numeric kinds carry the source literal and whether it
	// parsed, so the compiler can raise a precise CompileError instead of
	// silently falling back to reporter lookup (which would misreport an
	// invalid literal as an unknown opcode).
	Raw     string
	ParseOK bool
	// RefID/RefName: identified-field kinds (variable/broadcast references)
	RefID   string
	RefName string
}

const (
	OpcodeText             = "text"
	OpcodeMathNumber       = "math_number"
	OpcodeMathInteger      = "math_integer"
	OpcodeMathWholeNumber  = "math_whole_number"
	OpcodeMathPositiveNum  = "math_positive_number"
	OpcodeMathAngle        = "math_angle"
	OpcodeDataVariable     = "data_variable"
	OpcodeEventBroadcastMenu = "event_broadcast_menu"
)

// TryAsPrimitive classifies b as a Primitive if its opcode is one of the
// closed set of literal/reporter primitive opcodes (§3 Primitive), else
// returns ok=false so the caller falls back to reporter lowering.
func (b *Block) TryAsPrimitive() (Primitive, bool) {
	switch b.Opcode {
	case OpcodeText:
		return Primitive{Kind: PrimitiveText, Text: b.Fields["TEXT"].Value}, true
	case OpcodeMathNumber, OpcodeMathInteger, OpcodeMathWholeNumber, OpcodeMathPositiveNum, OpcodeMathAngle:
		raw := b.Fields["NUM"].Value
		n, err := strconv.ParseFloat(raw, 64)
		kind := map[string]PrimitiveKind{
			OpcodeMathNumber:      PrimitiveNumber,
			OpcodeMathInteger:     PrimitiveInteger,
			OpcodeMathWholeNumber: PrimitiveWholeNumber,
			OpcodeMathPositiveNum: PrimitivePositiveNumber,
			OpcodeMathAngle:       PrimitiveAngle,
		}[b.Opcode]
		return Primitive{Kind: kind, Num: n, Raw: raw, ParseOK: err == nil}, true
	case OpcodeDataVariable:
		f := b.Fields["VARIABLE"]
		return Primitive{Kind: PrimitiveVariable, RefID: f.ID, RefName: f.Value}, true
	case OpcodeEventBroadcastMenu:
		f := b.Fields["BROADCAST_OPTION"]
		return Primitive{Kind: PrimitiveBroadcast, RefID: f.ID, RefName: f.Value}, true
	default:
		return Primitive{}, false
	}
}

// IsNumeric reports whether k is one of the numeric primitive kinds. It says
// nothing about the literal itself: TryAsPrimitive classifies a math_* block
// with ok=true even when its NUM field fails to parse, and sets
// ParseOK=false; the compiler raises the CompileError (§7) from that.
func (k PrimitiveKind) IsNumeric() bool {
	switch k {
	case PrimitiveNumber, PrimitiveInteger, PrimitiveWholeNumber, PrimitivePositiveNumber, PrimitiveAngle:
		return true
	default:
		return false
	}
}

// Package sb3 ingests a Scratch-style project.json into the ast.Project the
// compiler consumes (spec.md §6; ground on original_source/src/sb3.rs, a
// stub the distillation simplified the real `.sb3` shape from).
package sb3

// ProjectFile is the top-level project.json shape.
type ProjectFile struct {
	Targets []TargetFile `json:"targets"`
}

// TargetFile is one sprite or the stage. Variables map id -> [name, initial];
// Broadcasts map id -> name; Blocks map id -> BlockFile.
type TargetFile struct {
	IsStage    bool                    `json:"isStage"`
	Name       string                  `json:"name"`
	Variables  map[string][2]any       `json:"variables"`
	Broadcasts map[string]string       `json:"broadcasts"`
	Blocks     map[string]BlockFile    `json:"blocks"`
}

// BlockFile is one node of the block tree. Inputs map input-name -> [status,
// primary, shadow?], where primary is either a block-id string (a
// sub-expression or substack reference) or an inline primitive array
// [type_tag, value, id?]. Fields map name -> [value, id?]; only this array
// form is accepted (see normalizeField), and a field written as a JSON
// object fails to decode.
type BlockFile struct {
	Opcode   string              `json:"opcode"`
	Next     *string             `json:"next"`
	Parent   *string             `json:"parent"`
	Inputs   map[string][]any    `json:"inputs"`
	Fields   map[string][]any    `json:"fields"`
	TopLevel bool                `json:"topLevel"`
	Mutation *MutationFile       `json:"mutation,omitempty"`
}

// MutationFile carries a custom block's argument shape, present on
// procedures_call / procedures_definition / procedures_prototype blocks.
// Scratch encodes the argument arrays as JSON-stringified lists; ingest.go's
// decodeStringList handles both that form and a plain []any, since
// hand-written fixtures in conformance/testdata commonly use the latter.
type MutationFile struct {
	ProcCode  string `json:"proccode"`
	ArgIDs    any    `json:"argumentids"`
	ArgNames  any    `json:"argumentnames"`
	ArgValues any    `json:"argumentdefaults"`
	Warp      any    `json:"warp"`
}

package sb3

import (
	"fmt"

	"github.com/lfmoo/scratchvm/types"
)

// ParseError reports malformed project JSON or an ingest-rule violation
// (§7): unknown block-id reference, inline primitive with a bad type tag,
// malformed mutation. Ingest is all-or-nothing, matching compile's
// all-or-nothing contract.
type ParseError struct {
	Reason string
	Target string
	BlockID string
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse error: %s", e.Reason)
	if e.Target != "" {
		msg += fmt.Sprintf(" (target %s)", e.Target)
	}
	if e.BlockID != "" {
		msg += fmt.Sprintf(" (block %s)", e.BlockID)
	}
	return msg
}

func (e *ParseError) Kind() types.ErrorKind { return types.KindParseError }

func errUnknownBlockRef(target, id string) error {
	return &ParseError{Reason: "reference to unknown block id", Target: target, BlockID: id}
}

func errBadInlinePrimitive(target, blockID string, tag any) error {
	return &ParseError{Reason: fmt.Sprintf("inline primitive has unsupported type tag %v", tag), Target: target, BlockID: blockID}
}

func errMalformedMutation(target, blockID string) error {
	return &ParseError{Reason: "malformed mutation", Target: target, BlockID: blockID}
}

func errBadInput(target, blockID, input string) error {
	return &ParseError{Reason: fmt.Sprintf("malformed input %q", input), Target: target, BlockID: blockID}
}

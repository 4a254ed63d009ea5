// Package ast is the data model the parser adapter (package sb3) produces
// and the compiler (package vm) consumes: Project, Target, Script, Block,
// Input, Field, plus the design-time Variable/Event descriptors (§3).
package ast

import "github.com/lfmoo/scratchvm/types"

// Project is the full set of targets plus the event table and global
// variables owned by the stage (§3 Project).
type Project struct {
	Targets   []*Target
	Events    []Event    // broadcast table, indexed by position (stage-supplied)
	Variables []Variable // global variables, indexed by position (stage-supplied)
}

// Target is the Stage or a sprite: a name, its scripts, and its local
// variables (§3 Target). Targets are indexed 0..N by their position in
// Project.Targets; that index becomes the compiled Procedure's target_id.
type Target struct {
	Name      string
	IsStage   bool
	Scripts   []*Script
	Variables []Variable // target-local variables, indexed by position
}

// Variable is a design-time variable descriptor (§3 Variable).
type Variable struct {
	ID      string
	Name    string
	Initial types.Value
}

// Event is a design-time broadcast descriptor (§3 Event, referenced at
// runtime by Id[types.Event]).
type Event struct {
	ID   string
	Name string
}

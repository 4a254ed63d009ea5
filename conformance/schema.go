// Package conformance runs end-to-end scenario fixtures through the full
// ingest -> compile -> schedule pipeline (§8 end-to-end scenarios), in the
// same suite -> tests -> expectation shape as the teacher's
// conformance/schema.go, adapted to describe Scratch projects instead of
// MOO verb calls.
package conformance

// TestSuite is a complete YAML fixture file: a named group of TestCases
// sharing no implicit state (each test gets its own fresh Program).
type TestSuite struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Tests       []TestCase `yaml:"tests"`
}

// TestCase is one scenario: a project (inline project.json text), how many
// compiler workers to use, and the expected observable outcome.
type TestCase struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Skip        bool        `yaml:"skip,omitempty"`
	Project     string      `yaml:"project"`
	Workers     int         `yaml:"workers,omitempty"` // default 1
	Expect      Expectation `yaml:"expect"`
}

// Expectation is what a scenario must observe after running to exhaustion.
type Expectation struct {
	// Output is the expected sequence of stdout lines (Program.Output),
	// in order, newline-exclusive.
	Output []string `yaml:"output,omitempty"`
	// Globals maps a stage variable's name to its expected stringified
	// value after the run (read via types.ToString).
	Globals map[string]string `yaml:"globals,omitempty"`
	// Error, if set, is a substring expected in the ingest/compile error
	// (the scenario is expected to fail before scheduling).
	Error string `yaml:"error,omitempty"`
}

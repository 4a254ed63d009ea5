// Package trace provides an opt-in execution trace of opcode dispatch and
// event dispatch, filterable by procedure name glob (SPEC_FULL §9, §11 —
// recovered from the original's unconditional interpreter debug printing,
// gated here behind a flag the way the teacher gates its own tracer).
package trace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/lfmoo/scratchvm/types"
)

// debugString renders any Value for trace output, including the tags
// §4.1's to_string rightly rejects for program-visible coercion (Event,
// Procedure, ReturnLocation print as tagged handles here; SPEC_FULL §11).
func debugString(v types.Value) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}

// Tracer writes a filtered execution trace to an injectable writer.
type Tracer struct {
	enabled bool
	filters []string
	writer  io.Writer
	mu      sync.Mutex
}

var globalTracer *Tracer

// Init installs the global tracer. writer defaults to os.Stderr if nil.
func Init(enabled bool, filters []string, writer io.Writer) {
	if writer == nil {
		writer = os.Stderr
	}
	globalTracer = &Tracer{enabled: enabled, filters: filters, writer: writer}
}

func IsEnabled() bool {
	return globalTracer != nil && globalTracer.enabled
}

func (t *Tracer) matchesFilter(procName string) bool {
	if len(t.filters) == 0 {
		return true
	}
	for _, pattern := range t.filters {
		if matched, _ := filepath.Match(pattern, procName); matched {
			return true
		}
	}
	return false
}

// Opcode logs one instruction dispatch: `$ {op} proc={name} offset={n}
// stack=[...]`, recovered from the original's
// `$ {opcode} proc={name} stack={stack}` per-instruction debug line.
func Opcode(procName string, offset int, op string, stack ...types.Value) {
	if globalTracer == nil || !globalTracer.enabled || !globalTracer.matchesFilter(procName) {
		return
	}
	globalTracer.mu.Lock()
	defer globalTracer.mu.Unlock()
	if len(stack) == 0 {
		fmt.Fprintf(globalTracer.writer, "$ %s proc=%s offset=%d\n", op, procName, offset)
		return
	}
	strs := make([]string, len(stack))
	for i, v := range stack {
		strs[i] = debugString(v)
	}
	fmt.Fprintf(globalTracer.writer, "$ %s proc=%s offset=%d stack=%v\n", op, procName, offset, strs)
}

// Dispatch logs an event dispatch: `> event#{id} from={name}`.
func Dispatch(procName string, eventID int) {
	if globalTracer == nil || !globalTracer.enabled || !globalTracer.matchesFilter(procName) {
		return
	}
	globalTracer.mu.Lock()
	defer globalTracer.mu.Unlock()
	fmt.Fprintf(globalTracer.writer, "> event#%d from=%s\n", eventID, procName)
}

// Sleep logs a task entering sleep.
func Sleep(procName string, seconds float64) {
	if globalTracer == nil || !globalTracer.enabled || !globalTracer.matchesFilter(procName) {
		return
	}
	globalTracer.mu.Lock()
	defer globalTracer.mu.Unlock()
	fmt.Fprintf(globalTracer.writer, "~ sleep proc=%s seconds=%g\n", procName, seconds)
}

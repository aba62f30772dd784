package plan

import (
	"fmt"
	"sync"
	"time"

	"github.com/rgeissen/uderia-sub003/tools"
)

// TraceEntry records one real tool invocation made on behalf of a phase,
// kept for audit and turn replay.
type TraceEntry struct {
	Tool      string         `json:"tool"`
	Args      map[string]any `json:"args"`
	Result    *tools.Result  `json:"result"`
	Timestamp time.Time      `json:"timestamp"`
}

// WorkflowState is the per-turn scratch space where orchestrators publish
// consolidated phase results for later phases to consume. Keys are
// write-once within a turn.
type WorkflowState struct {
	mu      sync.Mutex
	results map[string][]*tools.Result
	trace   []TraceEntry
}

func NewWorkflowState() *WorkflowState {
	return &WorkflowState{results: make(map[string][]*tools.Result)}
}

// Publish stores a phase's consolidated output. Overwriting an existing
// key is an error: a turn never reruns a phase.
func (w *WorkflowState) Publish(phaseIndex int, results []*tools.Result) error {
	key := PhaseResultKey(phaseIndex)
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.results[key]; exists {
		return fmt.Errorf("workflow state key %q already written", key)
	}
	w.results[key] = results
	return nil
}

// Results returns the output published under a state key.
func (w *WorkflowState) Results(key string) ([]*tools.Result, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out, ok := w.results[key]
	return out, ok
}

// AppendTrace records a tool invocation in execution order.
func (w *WorkflowState) AppendTrace(tool string, args map[string]any, result *tools.Result) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.trace = append(w.trace, TraceEntry{
		Tool:      tool,
		Args:      args,
		Result:    result,
		Timestamp: time.Now(),
	})
}

// Trace returns a copy of the recorded invocations.
func (w *WorkflowState) Trace() []TraceEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]TraceEntry, len(w.trace))
	copy(out, w.trace)
	return out
}

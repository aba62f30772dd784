package events

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of execution event.
type Type string

const (
	// Coordinator lifecycle
	TypeCoordinationStart    Type = "coordination_start"
	TypeSlaveInvoked         Type = "slave_invoked"
	TypeSlaveProgress        Type = "slave_progress"
	TypeSlaveCompleted       Type = "slave_completed"
	TypeLLMStep              Type = "llm_step"
	TypeSynthesisStart       Type = "synthesis_start"
	TypeCoordinationComplete Type = "coordination_complete"
	TypeCoordinationError    Type = "coordination_error"

	// Plan orchestrator events
	TypeSystemCorrection      Type = "system_correction"
	TypePlanOptimization      Type = "plan_optimization"
	TypeStatusIndicatorUpdate Type = "status_indicator_update"

	// Turn-level errors from the execution router
	TypeTurnError Type = "turn_error"
)

// Event is a single execution event. Events are append-only and ordered;
// producers emit them in causal order and sinks must preserve that order.
type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// New creates an event stamped with a fresh ID and the current time.
func New(t Type, payload map[string]any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Sink receives execution events. Implementations must not block for long;
// they sit on the hot path of the coordination loop.
type Sink interface {
	Emit(ev Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev Event)

func (f SinkFunc) Emit(ev Event) { f(ev) }

// Discard is a Sink that drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans an event out to several sinks in order.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(ev Event) {
		for _, s := range sinks {
			if s != nil {
				s.Emit(ev)
			}
		}
	})
}

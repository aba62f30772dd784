package events

import (
	"encoding/json"

	"github.com/hashicorp/go-hclog"

	"github.com/rgeissen/uderia-sub003/store"
)

// StoringSink is a Sink decorator that persists every event to the
// EventStore before delegating to an inner sink (e.g. CLI or WebSocket).
// Persistence failures are logged, never surfaced — a broken audit log must
// not abort a turn.
type StoringSink struct {
	inner     Sink
	events    store.EventStore
	sessionID string
	logger    hclog.Logger
}

// NewStoringSink wraps an existing Sink with event persistence for one
// session. inner may be nil when events should only be stored.
func NewStoringSink(inner Sink, events store.EventStore, sessionID string, logger hclog.Logger) *StoringSink {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &StoringSink{
		inner:     inner,
		events:    events,
		sessionID: sessionID,
		logger:    logger,
	}
}

func (s *StoringSink) Emit(ev Event) {
	dataJSON, err := json.Marshal(ev.Payload)
	if err != nil {
		s.logger.Warn("marshal event payload", "type", ev.Type, "error", err)
		dataJSON = []byte("{}")
	}

	if err := s.events.StoreEvent(store.SessionEvent{
		ID:        ev.ID,
		SessionID: s.sessionID,
		EventType: string(ev.Type),
		DataJSON:  string(dataJSON),
		CreatedAt: ev.Timestamp,
	}); err != nil {
		s.logger.Warn("store event", "type", ev.Type, "error", err)
	}

	if s.inner != nil {
		s.inner.Emit(ev)
	}
}

package wsbridge

import (
	"github.com/hashicorp/go-hclog"

	"github.com/rgeissen/uderia-sub003/events"
)

// EventSink forwards execution events to the gateway as they are emitted.
// It implements events.Sink; send failures are logged and dropped so a
// broken connection never stalls a coordination loop.
type EventSink struct {
	client    *Client
	sessionID string
	logger    hclog.Logger
}

// NewEventSink builds a sink pushing events for one session. sessionID may
// be empty for engine-level events.
func NewEventSink(client *Client, sessionID string, logger hclog.Logger) *EventSink {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &EventSink{client: client, sessionID: sessionID, logger: logger}
}

// DeferredSink resolves the client at emission time, which breaks the
// construction cycle between a router (needs a sink) and the bridge client
// (needs the router). Events emitted before the client exists are dropped.
func DeferredSink(client func() *Client, logger hclog.Logger) events.Sink {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return events.SinkFunc(func(ev events.Event) {
		c := client()
		if c == nil {
			return
		}
		NewEventSink(c, "", logger).Emit(ev)
	})
}

func (s *EventSink) Emit(ev events.Event) {
	env, err := NewEvent(TypeExecutionEvent, &ExecutionEventPayload{
		SessionID: s.sessionID,
		EventID:   ev.ID,
		EventType: string(ev.Type),
		Data:      ev.Payload,
		Timestamp: ev.Timestamp,
	})
	if err != nil {
		s.logger.Warn("marshal execution event", "type", ev.Type, "error", err)
		return
	}
	if err := s.client.SendEvent(env); err != nil {
		s.logger.Warn("send execution event", "type", ev.Type, "error", err)
	}
}

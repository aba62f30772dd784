package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Bundle holds all stores backing turn execution: conversational sessions,
// slave-session bindings, and the execution event log.
type Bundle struct {
	Sessions SessionStore
	Bindings BindingStore
	Events   EventStore
	closer   func() error
}

// Close cleans up the bundle resources.
func (b *Bundle) Close() error {
	if b.closer != nil {
		return b.closer()
	}
	return nil
}

// Session is a persisted conversational session. A session is only ever
// written by one turn at a time (single-writer per session id).
type Session struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"ownerId"`
	ProfileID    string     `json:"profileId"`
	Title        string     `json:"title,omitempty"`
	TurnCount    int        `json:"turnCount"`
	InputTokens  int        `json:"inputTokens"`
	OutputTokens int        `json:"outputTokens"`
	LastTurnJSON string     `json:"lastTurnJson,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

// Message is one entry of a session's ordered conversation history.
// Primer marks initialization messages that seed a session rather than
// user-authored queries.
type Message struct {
	ID        int       `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Primer    bool      `json:"primer"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionStore tracks sessions and their message history.
type SessionStore interface {
	CreateSession(ownerID, profileID string) (id string, err error)
	GetSession(id string) (*Session, error)
	SetTitle(id, title string) error
	AppendMessage(sessionID, role, content string, primer bool) error
	GetMessages(sessionID string) ([]Message, error)
	// RecordTurn increments the turn counter, adds token usage to the
	// session's cumulative totals and stores the turn's structured trace.
	RecordTurn(sessionID, turnJSON string, inputTokens, outputTokens int) error
}

// SlaveBinding maps a (parent session, profile) pair to the remote slave
// session serving that expert. At most one binding exists per pair.
type SlaveBinding struct {
	ParentSessionID string `json:"parentSessionId"`
	ProfileID       string `json:"profileId"`
	SlaveSessionID  string `json:"slaveSessionId"`
}

// BindingStore persists slave-session bindings across turns so a new
// coordinator for the same parent session reuses prior expert sessions.
type BindingStore interface {
	// SaveBinding upserts the binding for (parentSessionID, profileID).
	SaveBinding(parentSessionID, profileID, slaveSessionID string) error
	GetBindings(parentSessionID string) ([]SlaveBinding, error)
}

// SessionEvent is a persisted execution event, kept for replay and audit.
type SessionEvent struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	EventType string    `json:"eventType"`
	DataJSON  string    `json:"dataJson"`
	CreatedAt time.Time `json:"createdAt"`
}

// EventStore persists execution events in emission order.
type EventStore interface {
	StoreEvent(ev SessionEvent) error
	GetEventsBySession(sessionID string, limit, offset int) ([]SessionEvent, error)
}

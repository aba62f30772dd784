// Package wsbridge streams execution events to a gateway over WebSocket
// and accepts turn requests from it. It is a thin transport adapter: core
// logic emits typed events, the bridge only formats them for the wire.
package wsbridge

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType identifies the kind of envelope on the wire.
type MessageType string

const (
	TypeRegister       MessageType = "register"
	TypeRegisterAck    MessageType = "register_ack"
	TypeHeartbeat      MessageType = "heartbeat"
	TypeHeartbeatAck   MessageType = "heartbeat_ack"
	TypeTurnRequest    MessageType = "turn_request"
	TypeTurnResult     MessageType = "turn_result"
	TypeExecutionEvent MessageType = "execution_event"
	TypeError          MessageType = "error"
)

// Envelope is the single wire frame. Requests carry a RequestID the
// response echoes back; events carry none.
type Envelope struct {
	Type      MessageType     `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func newEnvelope(t MessageType, requestID string, payload any) (*Envelope, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", t, err)
		}
		raw = data
	}
	return &Envelope{
		Type:      t,
		RequestID: requestID,
		Payload:   raw,
		Timestamp: time.Now(),
	}, nil
}

// NewRequest builds a request envelope with a fresh request id.
func NewRequest(t MessageType, payload any) (*Envelope, error) {
	return newEnvelope(t, uuid.New().String(), payload)
}

// NewResponse builds a response echoing the request id.
func NewResponse(requestID string, t MessageType, payload any) (*Envelope, error) {
	return newEnvelope(t, requestID, payload)
}

// NewEvent builds a one-way event envelope.
func NewEvent(t MessageType, payload any) (*Envelope, error) {
	return newEnvelope(t, "", payload)
}

// NewError builds an error response.
func NewError(requestID, code, message string) (*Envelope, error) {
	return newEnvelope(TypeError, requestID, &ErrorPayload{Code: code, Message: message})
}

// DecodePayload unmarshals an envelope's payload into out.
func DecodePayload(env *Envelope, out any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("envelope %s has no payload", env.Type)
	}
	return json.Unmarshal(env.Payload, out)
}

type RegisterPayload struct {
	InstanceName string `json:"instanceName"`
	Version      string `json:"version"`
}

type RegisterAckPayload struct {
	Accepted   bool   `json:"accepted"`
	Reason     string `json:"reason,omitempty"`
	InstanceID string `json:"instanceId,omitempty"`
}

type HeartbeatAckPayload struct{}

type TurnRequestPayload struct {
	SessionID  string `json:"sessionId"`
	Query      string `json:"query"`
	ProfileTag string `json:"profileTag,omitempty"`
	Primer     bool   `json:"primer,omitempty"`
}

type TurnResultPayload struct {
	SessionID         string            `json:"sessionId"`
	Response          string            `json:"response"`
	Success           bool              `json:"success"`
	ToolsUsed         []string          `json:"toolsUsed,omitempty"`
	SlaveSessionsUsed map[string]string `json:"slaveSessionsUsed,omitempty"`
	InputTokens       int               `json:"inputTokens"`
	OutputTokens      int               `json:"outputTokens"`
	Error             string            `json:"error,omitempty"`
}

type ExecutionEventPayload struct {
	SessionID string         `json:"sessionId,omitempty"`
	EventID   string         `json:"eventId"`
	EventType string         `json:"eventType"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

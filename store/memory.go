package store

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// NewMemoryBundle creates a Bundle backed entirely by in-memory stores.
// Used for tests and for running without persistence configured.
func NewMemoryBundle() *Bundle {
	return &Bundle{
		Sessions: &MemorySessionStore{sessions: make(map[string]*memSession)},
		Bindings: &MemoryBindingStore{bindings: make(map[string]map[string]string)},
		Events:   &MemoryEventStore{events: make(map[string][]SessionEvent)},
	}
}

// =============================================================================
// MemorySessionStore
// =============================================================================

type memSession struct {
	record   Session
	messages []Message
	nextMsg  int
}

type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*memSession
}

func (s *MemorySessionStore) CreateSession(ownerID, profileID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := generateID()
	s.sessions[id] = &memSession{
		record: Session{
			ID:        id,
			OwnerID:   ownerID,
			ProfileID: profileID,
			CreatedAt: time.Now(),
		},
		nextMsg: 1,
	}
	return id, nil
}

func (s *MemorySessionStore) GetSession(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	record := sess.record
	return &record, nil
}

func (s *MemorySessionStore) SetTitle(id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	sess.record.Title = title
	touch(&sess.record)
	return nil
}

func (s *MemorySessionStore) AppendMessage(sessionID, role, content string, primer bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	sess.messages = append(sess.messages, Message{
		ID:        sess.nextMsg,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Primer:    primer,
		CreatedAt: time.Now(),
	})
	sess.nextMsg++
	return nil
}

func (s *MemorySessionStore) GetMessages(sessionID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	out := make([]Message, len(sess.messages))
	copy(out, sess.messages)
	return out, nil
}

func (s *MemorySessionStore) RecordTurn(sessionID, turnJSON string, inputTokens, outputTokens int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	sess.record.TurnCount++
	sess.record.InputTokens += inputTokens
	sess.record.OutputTokens += outputTokens
	sess.record.LastTurnJSON = turnJSON
	touch(&sess.record)
	return nil
}

func touch(s *Session) {
	now := time.Now()
	s.UpdatedAt = &now
}

// =============================================================================
// MemoryBindingStore
// =============================================================================

type MemoryBindingStore struct {
	mu       sync.Mutex
	bindings map[string]map[string]string // parentID → profileID → slaveID
}

func (s *MemoryBindingStore) SaveBinding(parentSessionID, profileID, slaveSessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byProfile, ok := s.bindings[parentSessionID]
	if !ok {
		byProfile = make(map[string]string)
		s.bindings[parentSessionID] = byProfile
	}
	byProfile[profileID] = slaveSessionID
	return nil
}

func (s *MemoryBindingStore) GetBindings(parentSessionID string) ([]SlaveBinding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byProfile := s.bindings[parentSessionID]
	out := make([]SlaveBinding, 0, len(byProfile))
	for profileID, slaveID := range byProfile {
		out = append(out, SlaveBinding{
			ParentSessionID: parentSessionID,
			ProfileID:       profileID,
			SlaveSessionID:  slaveID,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProfileID < out[j].ProfileID })
	return out, nil
}

// =============================================================================
// MemoryEventStore
// =============================================================================

type MemoryEventStore struct {
	mu     sync.Mutex
	events map[string][]SessionEvent
}

func (s *MemoryEventStore) StoreEvent(ev SessionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == "" {
		ev.ID = generateID()
	}
	s.events[ev.SessionID] = append(s.events[ev.SessionID], ev)
	return nil
}

func (s *MemoryEventStore) GetEventsBySession(sessionID string, limit, offset int) ([]SessionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.events[sessionID]
	if offset >= len(all) {
		return nil, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]SessionEvent, end-offset)
	copy(out, all[offset:end])
	return out, nil
}

func generateID() string {
	return fmt.Sprintf("%d-%04d", time.Now().UnixNano(), rand.Intn(10000))
}

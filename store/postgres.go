package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    profile_id TEXT NOT NULL,
    title TEXT,
    turn_count INTEGER DEFAULT 0,
    input_tokens INTEGER DEFAULT 0,
    output_tokens INTEGER DEFAULT 0,
    last_turn_json TEXT,
    created_at TIMESTAMPTZ DEFAULT now(),
    updated_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS session_messages (
    id BIGSERIAL PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES sessions(id),
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    primer BOOLEAN DEFAULT FALSE,
    created_at TIMESTAMPTZ DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_session_messages_session ON session_messages(session_id);

CREATE TABLE IF NOT EXISTS slave_bindings (
    parent_session_id TEXT NOT NULL,
    profile_id TEXT NOT NULL,
    slave_session_id TEXT NOT NULL,
    PRIMARY KEY (parent_session_id, profile_id)
);

CREATE TABLE IF NOT EXISTS session_events (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    data_json TEXT,
    created_at TIMESTAMPTZ DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events(session_id, created_at);
`

// NewPostgresBundle connects to a Postgres database and returns a Bundle
// backed by it. The schema is applied on connect.
func NewPostgresBundle(ctx context.Context, dsn string) (*Bundle, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create postgres schema: %w", err)
	}

	return &Bundle{
		Sessions: &pgSessionStore{pool: pool},
		Bindings: &pgBindingStore{pool: pool},
		Events:   &pgEventStore{pool: pool},
		closer: func() error {
			pool.Close()
			return nil
		},
	}, nil
}

// =============================================================================
// pgSessionStore
// =============================================================================

type pgSessionStore struct {
	pool *pgxpool.Pool
}

func (s *pgSessionStore) CreateSession(ownerID, profileID string) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO sessions (id, owner_id, profile_id) VALUES ($1, $2, $3)`,
		id, ownerID, profileID,
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

func (s *pgSessionStore) GetSession(id string) (*Session, error) {
	row := s.pool.QueryRow(context.Background(),
		`SELECT id, owner_id, profile_id, COALESCE(title, ''), turn_count,
		        input_tokens, output_tokens, COALESCE(last_turn_json, ''),
		        created_at, updated_at
		 FROM sessions WHERE id = $1`, id,
	)

	var sess Session
	var updatedAt *time.Time
	err := row.Scan(&sess.ID, &sess.OwnerID, &sess.ProfileID, &sess.Title,
		&sess.TurnCount, &sess.InputTokens, &sess.OutputTokens,
		&sess.LastTurnJSON, &sess.CreatedAt, &updatedAt)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	sess.UpdatedAt = updatedAt
	return &sess, nil
}

func (s *pgSessionStore) SetTitle(id, title string) error {
	tag, err := s.pool.Exec(context.Background(),
		`UPDATE sessions SET title = $1, updated_at = now() WHERE id = $2`,
		title, id,
	)
	if err != nil {
		return fmt.Errorf("update session title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *pgSessionStore) AppendMessage(sessionID, role, content string, primer bool) error {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO session_messages (session_id, role, content, primer) VALUES ($1, $2, $3, $4)`,
		sessionID, role, content, primer,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *pgSessionStore) GetMessages(sessionID string) ([]Message, error) {
	rows, err := s.pool.Query(context.Background(),
		`SELECT id, session_id, role, content, primer, created_at
		 FROM session_messages WHERE session_id = $1 ORDER BY id`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Primer, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *pgSessionStore) RecordTurn(sessionID, turnJSON string, inputTokens, outputTokens int) error {
	tag, err := s.pool.Exec(context.Background(),
		`UPDATE sessions
		 SET turn_count = turn_count + 1,
		     input_tokens = input_tokens + $1,
		     output_tokens = output_tokens + $2,
		     last_turn_json = $3,
		     updated_at = now()
		 WHERE id = $4`,
		inputTokens, outputTokens, turnJSON, sessionID,
	)
	if err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	return nil
}

// =============================================================================
// pgBindingStore
// =============================================================================

type pgBindingStore struct {
	pool *pgxpool.Pool
}

func (s *pgBindingStore) SaveBinding(parentSessionID, profileID, slaveSessionID string) error {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO slave_bindings (parent_session_id, profile_id, slave_session_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (parent_session_id, profile_id)
		 DO UPDATE SET slave_session_id = EXCLUDED.slave_session_id`,
		parentSessionID, profileID, slaveSessionID,
	)
	if err != nil {
		return fmt.Errorf("save binding: %w", err)
	}
	return nil
}

func (s *pgBindingStore) GetBindings(parentSessionID string) ([]SlaveBinding, error) {
	rows, err := s.pool.Query(context.Background(),
		`SELECT parent_session_id, profile_id, slave_session_id
		 FROM slave_bindings WHERE parent_session_id = $1 ORDER BY profile_id`,
		parentSessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query bindings: %w", err)
	}
	defer rows.Close()

	var out []SlaveBinding
	for rows.Next() {
		var b SlaveBinding
		if err := rows.Scan(&b.ParentSessionID, &b.ProfileID, &b.SlaveSessionID); err != nil {
			return nil, fmt.Errorf("scan binding: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// =============================================================================
// pgEventStore
// =============================================================================

type pgEventStore struct {
	pool *pgxpool.Pool
}

func (s *pgEventStore) StoreEvent(ev SessionEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO session_events (id, session_id, event_type, data_json, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		ev.ID, ev.SessionID, ev.EventType, ev.DataJSON, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *pgEventStore) GetEventsBySession(sessionID string, limit, offset int) ([]SessionEvent, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(context.Background(),
		`SELECT id, session_id, event_type, COALESCE(data_json, ''), created_at
		 FROM session_events WHERE session_id = $1
		 ORDER BY created_at, id LIMIT $2 OFFSET $3`,
		sessionID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []SessionEvent
	for rows.Next() {
		var ev SessionEvent
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.EventType, &ev.DataJSON, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    profile_id TEXT NOT NULL,
    title TEXT,
    turn_count INTEGER DEFAULT 0,
    input_tokens INTEGER DEFAULT 0,
    output_tokens INTEGER DEFAULT 0,
    last_turn_json TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME
);

CREATE TABLE IF NOT EXISTS session_messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL REFERENCES sessions(id),
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    primer INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
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
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events(session_id, created_at);
`

// NewSQLiteBundle opens (or creates) a SQLite database at path and returns a
// Bundle backed by it.
func NewSQLiteBundle(path string) (*Bundle, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db %s: %w", path, err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}

	return &Bundle{
		Sessions: &sqliteSessionStore{db: db},
		Bindings: &sqliteBindingStore{db: db},
		Events:   &sqliteEventStore{db: db},
		closer:   db.Close,
	}, nil
}

// =============================================================================
// sqliteSessionStore
// =============================================================================

type sqliteSessionStore struct {
	db *sql.DB
}

func (s *sqliteSessionStore) CreateSession(ownerID, profileID string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, owner_id, profile_id) VALUES (?, ?, ?)`,
		id, ownerID, profileID,
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

func (s *sqliteSessionStore) GetSession(id string) (*Session, error) {
	row := s.db.QueryRow(
		`SELECT id, owner_id, profile_id, COALESCE(title, ''), turn_count,
		        input_tokens, output_tokens, COALESCE(last_turn_json, ''),
		        created_at, updated_at
		 FROM sessions WHERE id = ?`, id,
	)

	var sess Session
	var updatedAt sql.NullTime
	err := row.Scan(&sess.ID, &sess.OwnerID, &sess.ProfileID, &sess.Title,
		&sess.TurnCount, &sess.InputTokens, &sess.OutputTokens,
		&sess.LastTurnJSON, &sess.CreatedAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	if updatedAt.Valid {
		sess.UpdatedAt = &updatedAt.Time
	}
	return &sess, nil
}

func (s *sqliteSessionStore) SetTitle(id, title string) error {
	res, err := s.db.Exec(
		`UPDATE sessions SET title = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		title, id,
	)
	if err != nil {
		return fmt.Errorf("update session title: %w", err)
	}
	return requireRow(res, id)
}

func (s *sqliteSessionStore) AppendMessage(sessionID, role, content string, primer bool) error {
	primerInt := 0
	if primer {
		primerInt = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO session_messages (session_id, role, content, primer) VALUES (?, ?, ?, ?)`,
		sessionID, role, content, primerInt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *sqliteSessionStore) GetMessages(sessionID string) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, role, content, primer, created_at
		 FROM session_messages WHERE session_id = ? ORDER BY id`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var primer int
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &primer, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Primer = primer != 0
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *sqliteSessionStore) RecordTurn(sessionID, turnJSON string, inputTokens, outputTokens int) error {
	res, err := s.db.Exec(
		`UPDATE sessions
		 SET turn_count = turn_count + 1,
		     input_tokens = input_tokens + ?,
		     output_tokens = output_tokens + ?,
		     last_turn_json = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		inputTokens, outputTokens, turnJSON, sessionID,
	)
	if err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	return requireRow(res, sessionID)
}

func requireRow(res sql.Result, sessionID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	return nil
}

// =============================================================================
// sqliteBindingStore
// =============================================================================

type sqliteBindingStore struct {
	db *sql.DB
}

func (s *sqliteBindingStore) SaveBinding(parentSessionID, profileID, slaveSessionID string) error {
	_, err := s.db.Exec(
		`INSERT INTO slave_bindings (parent_session_id, profile_id, slave_session_id)
		 VALUES (?, ?, ?)
		 ON CONFLICT(parent_session_id, profile_id)
		 DO UPDATE SET slave_session_id = excluded.slave_session_id`,
		parentSessionID, profileID, slaveSessionID,
	)
	if err != nil {
		return fmt.Errorf("save binding: %w", err)
	}
	return nil
}

func (s *sqliteBindingStore) GetBindings(parentSessionID string) ([]SlaveBinding, error) {
	rows, err := s.db.Query(
		`SELECT parent_session_id, profile_id, slave_session_id
		 FROM slave_bindings WHERE parent_session_id = ? ORDER BY profile_id`,
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
// sqliteEventStore
// =============================================================================

type sqliteEventStore struct {
	db *sql.DB
}

func (s *sqliteEventStore) StoreEvent(ev SessionEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO session_events (id, session_id, event_type, data_json, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		ev.ID, ev.SessionID, ev.EventType, ev.DataJSON, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *sqliteEventStore) GetEventsBySession(sessionID string, limit, offset int) ([]SessionEvent, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.Query(
		`SELECT id, session_id, event_type, COALESCE(data_json, ''), created_at
		 FROM session_events WHERE session_id = ?
		 ORDER BY created_at, id LIMIT ? OFFSET ?`,
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

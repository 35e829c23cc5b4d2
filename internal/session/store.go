// Package session persists conversation sessions and their append-only
// message logs. Messages are never edited or deleted; the bounded tail
// of a session is the only history the model ever sees.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Message roles. Tool results are stored as their own role so history
// rendering can distinguish them from assistant prose.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool_result"
)

var ErrSessionNotFound = errors.New("session not found")

// Session is one conversation thread for a user.
type Session struct {
	ID             string
	UserID         string
	PersonaVersion int
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// Message is one immutable entry in a session's log.
type Message struct {
	ID        string
	SessionID string
	Role      string
	Content   string
	CreatedAt time.Time
}

// Store persists sessions and messages in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a session store using the given database path.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// NewStoreWithDB creates a session store using an existing database
// connection. The caller retains ownership of the connection.
func NewStoreWithDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			persona_version INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			last_activity_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, last_activity_at DESC);

		CREATE TABLE IF NOT EXISTS session_messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL,
			seq INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_session_messages_session ON session_messages(session_id, seq);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the underlying database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ActiveCount reports how many sessions have seen activity since the
// cutoff, across all users.
func (s *Store) ActiveCount(since time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM sessions WHERE last_activity_at >= ?
	`, since.UTC().Format(time.RFC3339Nano)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return n, nil
}

// Ensure creates the session if it does not exist and returns it. An
// existing session's owner is never changed.
func (s *Store) Ensure(sessionID, userID string) (*Session, error) {
	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, user_id, created_at, last_activity_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, sessionID, userID, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("ensure session %s: %w", sessionID, err)
	}
	return s.Get(sessionID)
}

// Get returns a session by ID.
func (s *Store) Get(sessionID string) (*Session, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, persona_version, created_at, last_activity_at
		FROM sessions WHERE id = ?
	`, sessionID)

	var sess Session
	var created, lastActivity string
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.PersonaVersion, &created, &lastActivity); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	sess.LastActivityAt, _ = time.Parse(time.RFC3339Nano, lastActivity)
	return &sess, nil
}

// SetPersonaVersion records which persona settings version was last
// compiled into this session's system prompt.
func (s *Store) SetPersonaVersion(sessionID string, version int) error {
	res, err := s.db.Exec(`
		UPDATE sessions SET persona_version = ? WHERE id = ?
	`, version, sessionID)
	if err != nil {
		return fmt.Errorf("set persona version for %s: %w", sessionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}

// Append adds a message to the session log. Ordering is a per-session
// sequence number assigned at insert, so two messages written in the
// same nanosecond still keep their write order.
func (s *Store) Append(sessionID, role, content string) (*Message, error) {
	now := time.Now().UTC()
	msg := &Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(1) FROM sessions WHERE id = ?`, sessionID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check session %s: %w", sessionID, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	_, err = tx.Exec(`
		INSERT INTO session_messages (id, session_id, role, content, created_at, seq)
		VALUES (?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM session_messages WHERE session_id = ?))
	`, msg.ID, sessionID, role, content, now.Format(time.RFC3339Nano), sessionID)
	if err != nil {
		return nil, fmt.Errorf("append message to %s: %w", sessionID, err)
	}

	_, err = tx.Exec(`UPDATE sessions SET last_activity_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano), sessionID)
	if err != nil {
		return nil, fmt.Errorf("touch session %s: %w", sessionID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}
	return msg, nil
}

// Recent returns the most recent limit messages of a session, oldest
// first. limit <= 0 returns the whole log.
func (s *Store) Recent(sessionID string, limit int) ([]Message, error) {
	query := `
		SELECT id, session_id, role, content, created_at
		FROM session_messages
		WHERE session_id = ?
		ORDER BY seq DESC
	`
	args := []any{sessionID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("recent messages for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var reversed []Message
	for rows.Next() {
		var m Message
		var created string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		reversed = append(reversed, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	messages := make([]Message, len(reversed))
	for i, m := range reversed {
		messages[len(reversed)-1-i] = m
	}
	return messages, nil
}

// Sessions lists a user's sessions, most recently active first.
func (s *Store) Sessions(userID string) ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, persona_version, created_at, last_activity_at
		FROM sessions WHERE user_id = ?
		ORDER BY last_activity_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions for %s: %w", userID, err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var created, lastActivity string
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.PersonaVersion, &created, &lastActivity); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		sess.LastActivityAt, _ = time.Parse(time.RFC3339Nano, lastActivity)
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

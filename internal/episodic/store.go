// Package episodic persists per-turn episode summaries and a tool
// invocation log, and renders recent episodes into the memory block
// injected into the system prompt. It gives the agent continuity
// across sessions.
package episodic

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Episode is one recorded turn.
type Episode struct {
	ID        string
	UserID    string
	SessionID string
	UserText  string
	Reply     string
	CreatedAt time.Time
}

// ToolInvocation is one logged tool execution.
type ToolInvocation struct {
	ID        int64
	UserID    string
	SessionID string
	Tool      string
	Arguments string
	Status    string
	Result    string
	CreatedAt time.Time
}

// Store persists episodes and tool logs in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates an episodic store using the given database path.
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

// NewStoreWithDB creates an episodic store using an existing database
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
		CREATE TABLE IF NOT EXISTS episodes (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			user_text TEXT NOT NULL,
			reply TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_episodes_user ON episodes(user_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS tool_invocations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			tool TEXT NOT NULL,
			arguments TEXT,
			status TEXT NOT NULL,
			result TEXT,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tool_invocations_user ON tool_invocations(user_id, created_at DESC);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordTurn stores one completed turn.
func (s *Store) RecordTurn(userID, sessionID, userText, reply string) (*Episode, error) {
	ep := &Episode{
		ID:        uuid.New().String(),
		UserID:    userID,
		SessionID: sessionID,
		UserText:  userText,
		Reply:     reply,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(`
		INSERT INTO episodes (id, user_id, session_id, user_text, reply, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ep.ID, userID, sessionID, userText, reply, ep.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("record episode: %w", err)
	}
	return ep, nil
}

// RecordToolInvocation logs one tool execution outcome.
func (s *Store) RecordToolInvocation(userID, sessionID, tool, arguments, status, result string) error {
	_, err := s.db.Exec(`
		INSERT INTO tool_invocations (user_id, session_id, tool, arguments, status, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, userID, sessionID, tool, arguments, status, result, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record tool invocation: %w", err)
	}
	return nil
}

// Recent returns a user's most recent episodes, newest first.
func (s *Store) Recent(userID string, limit int) ([]Episode, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
		SELECT id, user_id, session_id, user_text, reply, created_at
		FROM episodes WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent episodes for %s: %w", userID, err)
	}
	defer rows.Close()

	var episodes []Episode
	for rows.Next() {
		var ep Episode
		var created string
		if err := rows.Scan(&ep.ID, &ep.UserID, &ep.SessionID, &ep.UserText, &ep.Reply, &created); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		ep.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}

// Context renders a user's recent episodes as a prompt block, oldest
// first so the narrative reads forward. Returns empty when the user
// has no history. Episodes from the current session are skipped; the
// conversation log already carries them.
func (s *Store) Context(userID, currentSessionID string, limit int) (string, error) {
	episodes, err := s.Recent(userID, limit)
	if err != nil {
		return "", err
	}

	var lines []string
	for i := len(episodes) - 1; i >= 0; i-- {
		ep := episodes[i]
		if ep.SessionID == currentSessionID {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%s] user: %s / you: %s",
			ep.CreatedAt.Format("Jan 2 15:04"), truncate(ep.UserText, 120), truncate(ep.Reply, 120)))
	}
	if len(lines) == 0 {
		return "", nil
	}
	return "Recent exchanges from earlier conversations:\n" + strings.Join(lines, "\n"), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// Package prefs is a per-user key/value preference store. Keys under
// the persona. prefix surface as standing directives in the compiled
// persona block.
package prefs

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// PersonaPrefix marks preferences that become persona directives.
const PersonaPrefix = "persona."

var ErrPrefNotFound = errors.New("preference not found")

// Store persists user preferences in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a preference store using the given database path.
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

// NewStoreWithDB creates a preference store using an existing database
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
		CREATE TABLE IF NOT EXISTS preferences (
			user_id TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (user_id, key)
		);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Set stores a preference, replacing any previous value.
func (s *Store) Set(userID, key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO preferences (user_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, userID, key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}

// Get returns one preference value.
func (s *Store) Get(userID, key string) (string, error) {
	var value string
	err := s.db.QueryRow(`
		SELECT value FROM preferences WHERE user_id = ? AND key = ?
	`, userID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrPrefNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("get preference %s: %w", key, err)
	}
	return value, nil
}

// Delete removes a preference. Deleting a missing key is not an error.
func (s *Store) Delete(userID, key string) error {
	_, err := s.db.Exec(`
		DELETE FROM preferences WHERE user_id = ? AND key = ?
	`, userID, key)
	if err != nil {
		return fmt.Errorf("delete preference %s: %w", key, err)
	}
	return nil
}

// ForUser returns all of a user's preferences keyed by name.
func (s *Store) ForUser(userID string) (map[string]string, error) {
	rows, err := s.db.Query(`
		SELECT key, value FROM preferences WHERE user_id = ? ORDER BY key
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("preferences for %s: %w", userID, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		out[key] = value
	}
	return out, rows.Err()
}

// PersonaDirectives returns the values of persona.-prefixed keys in
// key order, stripped of the prefix on the key side.
func (s *Store) PersonaDirectives(userID string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT value FROM preferences
		WHERE user_id = ? AND key LIKE ?
		ORDER BY key
	`, userID, PersonaPrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("persona preferences for %s: %w", userID, err)
	}
	defer rows.Close()

	var directives []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		if v := strings.TrimSpace(value); v != "" {
			directives = append(directives, v)
		}
	}
	return directives, rows.Err()
}

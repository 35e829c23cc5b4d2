// Package reminders persists timed reminders and surfaces the ones
// that have come due.
package reminders

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

var ErrReminderNotFound = errors.New("reminder not found")

// Reminder is a message to deliver at a point in time.
type Reminder struct {
	ID        string
	UserID    string
	Message   string
	RemindAt  time.Time
	Fired     bool
	CreatedAt time.Time
}

// Store persists reminders in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a reminder store using the given database path.
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

// NewStoreWithDB creates a reminder store using an existing database
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
		CREATE TABLE IF NOT EXISTS reminders (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			message TEXT NOT NULL,
			remind_at TEXT NOT NULL,
			fired INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(fired, remind_at);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create schedules a reminder.
func (s *Store) Create(userID, message string, remindAt time.Time) (*Reminder, error) {
	r := &Reminder{
		ID:        uuid.New().String(),
		UserID:    userID,
		Message:   message,
		RemindAt:  remindAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.Exec(`
		INSERT INTO reminders (id, user_id, message, remind_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.ID, userID, message, r.RemindAt.Format(time.RFC3339), r.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("create reminder: %w", err)
	}
	return r, nil
}

// Pending returns a user's reminders that have not fired yet, soonest
// first.
func (s *Store) Pending(userID string) ([]Reminder, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, message, remind_at, fired, created_at
		FROM reminders
		WHERE user_id = ? AND fired = 0
		ORDER BY remind_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("pending reminders for %s: %w", userID, err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

// Due returns every unfired reminder whose time has passed, across all
// users, soonest first.
func (s *Store) Due(now time.Time) ([]Reminder, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, message, remind_at, fired, created_at
		FROM reminders
		WHERE fired = 0 AND remind_at <= ?
		ORDER BY remind_at
	`, now.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("due reminders: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

// MarkFired records that a reminder has been delivered.
func (s *Store) MarkFired(id string) error {
	res, err := s.db.Exec(`UPDATE reminders SET fired = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark reminder %s fired: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrReminderNotFound, id)
	}
	return nil
}

func scanReminders(rows *sql.Rows) ([]Reminder, error) {
	var list []Reminder
	for rows.Next() {
		var r Reminder
		var fired int
		var remindAt, created string
		if err := rows.Scan(&r.ID, &r.UserID, &r.Message, &remindAt, &fired, &created); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		r.Fired = fired != 0
		r.RemindAt, _ = time.Parse(time.RFC3339, remindAt)
		r.CreatedAt, _ = time.Parse(time.RFC3339, created)
		list = append(list, r)
	}
	return list, rows.Err()
}

// Package tasks persists the user's to-do items and exposes them as
// agent tools.
package tasks

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

var ErrTaskNotFound = errors.New("task not found")

// Task is one to-do item.
type Task struct {
	ID        string
	UserID    string
	Title     string
	Notes     string
	DueAt     *time.Time
	Done      bool
	CreatedAt time.Time
}

// Store persists tasks in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a task store using the given database path.
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

// NewStoreWithDB creates a task store using an existing database
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
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			notes TEXT,
			due_at TEXT,
			done INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id, done, created_at);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create adds a task. dueAt may be nil.
func (s *Store) Create(userID, title, notes string, dueAt *time.Time) (*Task, error) {
	t := &Task{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Notes:     notes,
		DueAt:     dueAt,
		CreatedAt: time.Now().UTC(),
	}

	var due any
	if dueAt != nil {
		due = dueAt.UTC().Format(time.RFC3339)
	}
	_, err := s.db.Exec(`
		INSERT INTO tasks (id, user_id, title, notes, due_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.ID, userID, title, notes, due, t.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// List returns a user's tasks, open first, then by creation time.
func (s *Store) List(userID string, includeDone bool) ([]Task, error) {
	query := `
		SELECT id, user_id, title, notes, due_at, done, created_at
		FROM tasks WHERE user_id = ?
	`
	if !includeDone {
		query += " AND done = 0"
	}
	query += " ORDER BY done, created_at"

	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks for %s: %w", userID, err)
	}
	defer rows.Close()

	var list []Task
	for rows.Next() {
		var t Task
		var notes, due sql.NullString
		var done int
		var created string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &notes, &due, &done, &created); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Notes = notes.String
		t.Done = done != 0
		if due.Valid {
			if ts, err := time.Parse(time.RFC3339, due.String); err == nil {
				t.DueAt = &ts
			}
		}
		t.CreatedAt, _ = time.Parse(time.RFC3339, created)
		list = append(list, t)
	}
	return list, rows.Err()
}

// SetDone updates a task's completion status.
func (s *Store) SetDone(userID, taskID string, done bool) error {
	flag := 0
	if done {
		flag = 1
	}
	res, err := s.db.Exec(`
		UPDATE tasks SET done = ? WHERE user_id = ? AND id = ?
	`, flag, userID, taskID)
	if err != nil {
		return fmt.Errorf("update task %s: %w", taskID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return nil
}

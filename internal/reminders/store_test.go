package reminders

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Hezy4/LEO/internal/tools"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "reminders.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndPending(t *testing.T) {
	store := newTestStore(t)

	later := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)
	sooner := time.Now().UTC().Add(time.Hour).Truncate(time.Second)

	if _, err := store.Create("henry", "second", later); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Create("henry", "first", sooner); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Create("other", "not yours", sooner); err != nil {
		t.Fatalf("Create: %v", err)
	}

	pending, err := store.Pending("henry")
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 reminders, got %d", len(pending))
	}
	if pending[0].Message != "first" {
		t.Errorf("expected soonest first, got %q", pending[0].Message)
	}
	if !pending[0].RemindAt.Equal(sooner) {
		t.Errorf("remind time not round-tripped: %v", pending[0].RemindAt)
	}
}

func TestDueAndMarkFired(t *testing.T) {
	store := newTestStore(t)

	now := time.Now().UTC()
	past, err := store.Create("henry", "take out trash", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Create("henry", "future", now.Add(time.Hour)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	due, err := store.Due(now)
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(due) != 1 || due[0].ID != past.ID {
		t.Fatalf("expected only the past reminder due, got %+v", due)
	}

	if err := store.MarkFired(past.ID); err != nil {
		t.Fatalf("MarkFired: %v", err)
	}
	due, err = store.Due(now)
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("fired reminder still due: %+v", due)
	}

	pending, err := store.Pending("henry")
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Message != "future" {
		t.Errorf("expected only the future reminder pending, got %+v", pending)
	}
}

func TestMarkFiredUnknown(t *testing.T) {
	store := newTestStore(t)
	if err := store.MarkFired("nope"); !errors.Is(err, ErrReminderNotFound) {
		t.Errorf("expected ErrReminderNotFound, got %v", err)
	}
}

func TestMemoryContext(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	if _, err := store.Create("henry", "water plants", now.Add(3*time.Hour)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Create("henry", "renew passport", now.Add(30*24*time.Hour)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ctx, err := store.MemoryContext("henry", "s1")
	if err != nil {
		t.Fatalf("MemoryContext: %v", err)
	}
	if !strings.Contains(ctx, "water plants") {
		t.Errorf("context missing near reminder:\n%s", ctx)
	}
	if strings.Contains(ctx, "renew passport") {
		t.Errorf("context includes reminder beyond the horizon:\n%s", ctx)
	}

	ctx, err = store.MemoryContext("other", "s1")
	if err != nil {
		t.Fatalf("MemoryContext: %v", err)
	}
	if ctx != "" {
		t.Errorf("expected empty context, got %q", ctx)
	}
}

func TestTools(t *testing.T) {
	store := newTestStore(t)
	registry := tools.NewRegistry()
	RegisterTools(registry, store, "henry")

	ctx := context.Background()

	out, err := registry.Execute(ctx, "reminders.create", map[string]any{
		"message": "water plants",
		"at":      "2026-09-01T09:00:00Z",
	})
	if err != nil {
		t.Fatalf("reminders.create: %v", err)
	}
	if !strings.Contains(out, "2026-09-01T09:00:00Z") {
		t.Errorf("create output = %q", out)
	}

	out, err = registry.Execute(ctx, "reminders.list", map[string]any{})
	if err != nil {
		t.Fatalf("reminders.list: %v", err)
	}
	if !strings.Contains(out, "water plants") {
		t.Errorf("list output = %q", out)
	}

	if _, err := registry.Execute(ctx, "reminders.create", map[string]any{"message": "x", "at": "tomorrow"}); err == nil {
		t.Error("expected error for unparseable time")
	}
}

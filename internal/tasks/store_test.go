package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Hezy4/LEO/internal/tools"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndList(t *testing.T) {
	store := newTestStore(t)

	due := time.Date(2026, 9, 1, 17, 0, 0, 0, time.UTC)
	if _, err := store.Create("henry", "buy milk", "", &due); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Create("henry", "call dentist", "ask about friday", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Create("other", "not yours", "", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	list, err := store.List("henry", false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(list))
	}
	if list[0].Title != "buy milk" {
		t.Errorf("expected creation order, got %q first", list[0].Title)
	}
	if list[0].DueAt == nil || !list[0].DueAt.Equal(due) {
		t.Errorf("due time not round-tripped: %v", list[0].DueAt)
	}
	if list[1].Notes != "ask about friday" {
		t.Errorf("notes = %q", list[1].Notes)
	}
}

func TestSetDone(t *testing.T) {
	store := newTestStore(t)

	task, err := store.Create("henry", "buy milk", "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.SetDone("henry", task.ID, true); err != nil {
		t.Fatalf("SetDone: %v", err)
	}

	open, err := store.List("henry", false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("expected no open tasks, got %d", len(open))
	}

	all, err := store.List("henry", true)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 1 || !all[0].Done {
		t.Errorf("expected one done task, got %+v", all)
	}

	if err := store.SetDone("henry", task.ID, false); err != nil {
		t.Fatalf("SetDone reopen: %v", err)
	}
	open, err = store.List("henry", false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(open) != 1 {
		t.Errorf("expected task reopened, got %d open", len(open))
	}
}

func TestSetDoneUnknownTask(t *testing.T) {
	store := newTestStore(t)

	err := store.SetDone("henry", "nope", true)
	if !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestSetDoneWrongUser(t *testing.T) {
	store := newTestStore(t)

	task, err := store.Create("henry", "private", "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.SetDone("other", task.ID, true); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound for wrong user, got %v", err)
	}
}

func TestMemoryContext(t *testing.T) {
	store := newTestStore(t)

	ctx, err := store.MemoryContext("henry", "s1")
	if err != nil {
		t.Fatalf("MemoryContext: %v", err)
	}
	if ctx != "" {
		t.Errorf("expected empty context with no tasks, got %q", ctx)
	}

	due := time.Date(2026, 9, 1, 17, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		if _, err := store.Create("henry", fmt.Sprintf("task %d", i), "", &due); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	ctx, err = store.MemoryContext("henry", "s1")
	if err != nil {
		t.Fatalf("MemoryContext: %v", err)
	}
	if !strings.HasPrefix(ctx, "Open tasks:") {
		t.Errorf("context = %q", ctx)
	}
	if !strings.Contains(ctx, "task 0 (due Sep 1 17:00)") {
		t.Errorf("context missing due time:\n%s", ctx)
	}
	if !strings.Contains(ctx, "and 2 more") {
		t.Errorf("context missing overflow line:\n%s", ctx)
	}
}

func TestTools(t *testing.T) {
	store := newTestStore(t)
	registry := tools.NewRegistry()
	RegisterTools(registry, store, "henry")

	ctx := context.Background()

	out, err := registry.Execute(ctx, "tasks.create", map[string]any{
		"title": "buy milk",
		"due":   "2026-09-01T17:00:00Z",
	})
	if err != nil {
		t.Fatalf("tasks.create: %v", err)
	}
	if !strings.Contains(out, "buy milk") {
		t.Errorf("create output = %q", out)
	}

	out, err = registry.Execute(ctx, "tasks.list", map[string]any{})
	if err != nil {
		t.Fatalf("tasks.list: %v", err)
	}
	var items []map[string]any
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("list output not JSON: %v\n%s", err, out)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}

	id, _ := items[0]["id"].(string)
	if _, err := registry.Execute(ctx, "tasks.update_status", map[string]any{"id": id, "status": "done"}); err != nil {
		t.Fatalf("tasks.update_status: %v", err)
	}

	out, err = registry.Execute(ctx, "tasks.list", map[string]any{})
	if err != nil {
		t.Fatalf("tasks.list: %v", err)
	}
	if out != "No tasks." {
		t.Errorf("expected empty list message, got %q", out)
	}

	if _, err := registry.Execute(ctx, "tasks.create", map[string]any{"due": "soon", "title": "x"}); err == nil {
		t.Error("expected error for unparseable due time")
	}
}

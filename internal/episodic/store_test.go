package episodic

import (
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "episodic.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := newTestStore(t)

	for _, text := range []string{"first", "second", "third"} {
		if _, err := store.RecordTurn("hez", "s1", text, "ok"); err != nil {
			t.Fatalf("RecordTurn: %v", err)
		}
	}

	episodes, err := store.Recent("hez", 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(episodes) != 2 {
		t.Fatalf("len = %d, want 2", len(episodes))
	}
	if episodes[0].UserText != "third" {
		t.Errorf("newest = %q, want third", episodes[0].UserText)
	}
}

func TestContextSkipsCurrentSession(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.RecordTurn("hez", "old-session", "remember the milk", "noted"); err != nil {
		t.Fatalf("RecordTurn: %v", err)
	}
	if _, err := store.RecordTurn("hez", "current", "hello", "hi"); err != nil {
		t.Fatalf("RecordTurn: %v", err)
	}

	ctx, err := store.Context("hez", "current", 10)
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if !strings.Contains(ctx, "remember the milk") {
		t.Errorf("context missing prior-session episode:\n%s", ctx)
	}
	if strings.Contains(ctx, "hello") {
		t.Errorf("context includes current-session episode:\n%s", ctx)
	}
}

func TestContextEmptyForNewUser(t *testing.T) {
	store := newTestStore(t)
	ctx, err := store.Context("ghost", "s1", 10)
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if ctx != "" {
		t.Errorf("context = %q, want empty", ctx)
	}
}

func TestRecordToolInvocation(t *testing.T) {
	store := newTestStore(t)
	if err := store.RecordToolInvocation("hez", "s1", "weather.forecast", `{"lat":30.2}`, "success", "sunny"); err != nil {
		t.Fatalf("RecordToolInvocation: %v", err)
	}
}

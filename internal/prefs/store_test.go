package prefs

import (
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSetGetOverwrite(t *testing.T) {
	store := newTestStore(t)

	if err := store.Set("henry", "units", "metric"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set("henry", "units", "imperial"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}

	got, err := store.Get("henry", "units")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "imperial" {
		t.Errorf("Get = %q, want imperial", got)
	}

	if _, err := store.Get("henry", "missing"); !errors.Is(err, ErrPrefNotFound) {
		t.Errorf("expected ErrPrefNotFound, got %v", err)
	}
	if _, err := store.Get("other", "units"); !errors.Is(err, ErrPrefNotFound) {
		t.Errorf("expected ErrPrefNotFound across users, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)

	if err := store.Set("henry", "units", "metric"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Delete("henry", "units"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get("henry", "units"); !errors.Is(err, ErrPrefNotFound) {
		t.Errorf("expected ErrPrefNotFound after delete, got %v", err)
	}
	if err := store.Delete("henry", "units"); err != nil {
		t.Errorf("Delete missing key: %v", err)
	}
}

func TestForUser(t *testing.T) {
	store := newTestStore(t)

	store.Set("henry", "units", "metric")
	store.Set("henry", "city", "Boston")
	store.Set("other", "units", "imperial")

	all, err := store.ForUser("henry")
	if err != nil {
		t.Fatalf("ForUser: %v", err)
	}
	if len(all) != 2 || all["units"] != "metric" || all["city"] != "Boston" {
		t.Errorf("ForUser = %v", all)
	}
}

func TestPersonaDirectives(t *testing.T) {
	store := newTestStore(t)

	store.Set("henry", "persona.humor", "Keep a dry sense of humor.")
	store.Set("henry", "persona.brevity", "Prefer short answers.")
	store.Set("henry", "persona.empty", "   ")
	store.Set("henry", "units", "metric")

	directives, err := store.PersonaDirectives("henry")
	if err != nil {
		t.Fatalf("PersonaDirectives: %v", err)
	}
	want := []string{"Prefer short answers.", "Keep a dry sense of humor."}
	if len(directives) != len(want) {
		t.Fatalf("got %d directives, want %d: %v", len(directives), len(want), directives)
	}
	for i := range want {
		if directives[i] != want[i] {
			t.Errorf("directive %d = %q, want %q", i, directives[i], want[i])
		}
	}
}

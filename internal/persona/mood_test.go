package persona

import (
	"errors"
	"testing"
	"time"
)

func newTestTracker(t *testing.T) (*Store, *Tracker) {
	t.Helper()
	store := newTestStore(t)
	seedUser(t, store, "hez")
	tracker, err := NewTracker(store)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	return store, tracker
}

func TestMoodDefaultsToNeutral(t *testing.T) {
	_, tracker := newTestTracker(t)

	mood, err := tracker.Mood("hez", "", time.Now())
	if err != nil {
		t.Fatalf("Mood: %v", err)
	}
	for i, v := range mood.Values {
		if v != 0 {
			t.Errorf("values[%d] = %v, want 0", i, v)
		}
	}
}

func TestTickAndApplyHalfLifeDecay(t *testing.T) {
	_, tracker := newTestTracker(t)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := tracker.TickAndApply("hez", "", []float64{0.8, 0}, t0); err != nil {
		t.Fatalf("TickAndApply: %v", err)
	}

	mood, err := tracker.Mood("hez", "", t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("Mood: %v", err)
	}
	if !near(mood.Values[0], 0.4) {
		t.Errorf("valence after one half-life = %v, want 0.4", mood.Values[0])
	}

	mood, err = tracker.Mood("hez", "", t0.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Mood: %v", err)
	}
	if !near(mood.Values[0], 0.2) {
		t.Errorf("valence after two half-lives = %v, want 0.2", mood.Values[0])
	}
}

func TestTickAndApplyIdentity(t *testing.T) {
	_, tracker := newTestTracker(t)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := tracker.TickAndApply("hez", "", []float64{0.6, -0.3}, t0); err != nil {
		t.Fatalf("TickAndApply: %v", err)
	}

	got, err := tracker.TickAndApply("hez", "", []float64{0, 0}, t0)
	if err != nil {
		t.Fatalf("TickAndApply identity: %v", err)
	}
	if !near(got.Values[0], 0.6) || !near(got.Values[1], -0.3) {
		t.Errorf("identity tick changed values: %v", got.Values)
	}
}

func TestTickAndApplyDecayThenAdd(t *testing.T) {
	_, tracker := newTestTracker(t)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := tracker.TickAndApply("hez", "", []float64{0.8, 0}, t0); err != nil {
		t.Fatalf("TickAndApply: %v", err)
	}

	// Stored 0.8 decays to 0.4 over the half-life before the new
	// effect lands, so the result is 0.7, not clamp(0.8 + 0.3).
	got, err := tracker.TickAndApply("hez", "", []float64{0.3, 0}, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("TickAndApply: %v", err)
	}
	if !near(got.Values[0], 0.7) {
		t.Errorf("valence = %v, want 0.7", got.Values[0])
	}
}

func TestTickAndApplyClamps(t *testing.T) {
	_, tracker := newTestTracker(t)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got, err := tracker.TickAndApply("hez", "", []float64{2.5, -3}, t0)
	if err != nil {
		t.Fatalf("TickAndApply: %v", err)
	}
	if got.Values[0] != 1 || got.Values[1] != -1 {
		t.Errorf("values = %v, want [1 -1]", got.Values)
	}
}

func TestTickAndApplyBadEffectLength(t *testing.T) {
	_, tracker := newTestTracker(t)
	if _, err := tracker.TickAndApply("hez", "", []float64{0.1}, time.Now()); !errors.Is(err, ErrInvalidAxisConfig) {
		t.Fatalf("err = %v, want ErrInvalidAxisConfig", err)
	}
}

func TestMoodScopesAreIsolated(t *testing.T) {
	_, tracker := newTestTracker(t)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := tracker.TickAndApply("hez", "session-1", []float64{0.5, 0}, t0); err != nil {
		t.Fatalf("TickAndApply: %v", err)
	}

	baseline, err := tracker.Mood("hez", "", t0)
	if err != nil {
		t.Fatalf("Mood baseline: %v", err)
	}
	if baseline.Values[0] != 0 {
		t.Errorf("baseline valence = %v, want 0 (session write leaked)", baseline.Values[0])
	}

	session, err := tracker.Mood("hez", "session-1", t0)
	if err != nil {
		t.Fatalf("Mood session: %v", err)
	}
	if !near(session.Values[0], 0.5) {
		t.Errorf("session valence = %v, want 0.5", session.Values[0])
	}
}

func TestMoodUnknownUser(t *testing.T) {
	_, tracker := newTestTracker(t)
	if _, err := tracker.Mood("ghost", "", time.Now()); !errors.Is(err, ErrNoSettings) {
		t.Fatalf("err = %v, want ErrNoSettings", err)
	}
}

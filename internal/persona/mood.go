package persona

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Tracker maintains per-user mood vectors with half-life decay toward
// a neutral baseline. It shares the Store's database connection and
// per-user write locks so trait and mood commits for one user never
// interleave.
type Tracker struct {
	store *Store
}

// NewTracker creates a mood tracker backed by the persona store's
// database connection.
func NewTracker(store *Store) (*Tracker, error) {
	t := &Tracker{store: store}
	if err := t.migrate(); err != nil {
		return nil, fmt.Errorf("migrate mood schema: %w", err)
	}
	return t, nil
}

func (t *Tracker) migrate() error {
	_, err := t.store.db.Exec(`
		CREATE TABLE IF NOT EXISTS persona_mood_state (
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL DEFAULT '',
			mood_values TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (user_id, session_id)
		);
	`)
	return err
}

// Mood returns the user's mood vector for a scope, decayed to now but
// not persisted. Scope "" is the user's baseline. A user with no
// stored row gets the neutral vector.
func (t *Tracker) Mood(userID, scope string, now time.Time) (*MoodState, error) {
	settings, err := t.store.SettingsFor(userID)
	if err != nil {
		return nil, err
	}

	values, updatedAt, err := t.read(userID, scope)
	if err != nil {
		return nil, err
	}
	if values == nil {
		return &MoodState{UserID: userID, Scope: scope, Values: settings.NeutralMood(), UpdatedAt: now}, nil
	}
	if len(values) != len(settings.MoodAxes) {
		return nil, fmt.Errorf("stored mood has %d values for %d axes: %w",
			len(values), len(settings.MoodAxes), ErrInvalidAxisConfig)
	}

	decayed := decayToward(values, settings, now.Sub(updatedAt))
	return &MoodState{UserID: userID, Scope: scope, Values: decayed, UpdatedAt: updatedAt, Stored: true}, nil
}

// TickAndApply decays the stored mood to now, adds the effect vector,
// clamps each axis, and persists the result. Decay runs before the
// effect so a fresh effect lands at full magnitude. Calling with a
// zero effect and now equal to the stored timestamp is the identity.
func (t *Tracker) TickAndApply(userID, scope string, effect []float64, now time.Time) (*MoodState, error) {
	settings, err := t.store.SettingsFor(userID)
	if err != nil {
		return nil, err
	}
	if effect != nil && len(effect) != len(settings.MoodAxes) {
		return nil, fmt.Errorf("effect has %d values for %d axes: %w",
			len(effect), len(settings.MoodAxes), ErrInvalidAxisConfig)
	}

	unlock := t.store.locks.acquire(userID)
	defer unlock()

	values, updatedAt, err := t.read(userID, scope)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = settings.NeutralMood()
		updatedAt = now
	}
	if len(values) != len(settings.MoodAxes) {
		return nil, fmt.Errorf("stored mood has %d values for %d axes: %w",
			len(values), len(settings.MoodAxes), ErrInvalidAxisConfig)
	}

	values = decayToward(values, settings, now.Sub(updatedAt))
	for i := range values {
		if effect != nil {
			values[i] += effect[i]
		}
		values[i] = clamp(values[i], settings.ClampMin, settings.ClampMax)
	}

	if err := t.persist(userID, scope, values, now); err != nil {
		return nil, err
	}
	return &MoodState{UserID: userID, Scope: scope, Values: values, UpdatedAt: now, Stored: true}, nil
}

// decayToward applies half-life decay of each axis's displacement from
// its neutral baseline: after one half-life the displacement halves.
func decayToward(values []float64, settings *Settings, elapsed time.Duration) []float64 {
	decayed := make([]float64, len(values))
	copy(decayed, values)

	if elapsed <= 0 || settings.MoodHalfLife <= 0 {
		return decayed
	}

	factor := math.Exp2(-elapsed.Seconds() / settings.MoodHalfLife.Seconds())
	for i, v := range decayed {
		neutral := settings.NeutralValue(i)
		decayed[i] = neutral + (v-neutral)*factor
	}
	return decayed
}

func (t *Tracker) read(userID, scope string) ([]float64, time.Time, error) {
	row := t.store.db.QueryRow(`
		SELECT mood_values, updated_at FROM persona_mood_state
		WHERE user_id = ? AND session_id = ?
	`, userID, scope)

	var raw, updatedAt string
	if err := row.Scan(&raw, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, time.Time{}, nil
		}
		return nil, time.Time{}, fmt.Errorf("read mood %s/%q: %w", userID, scope, err)
	}

	var values []float64
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode mood values: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("parse mood timestamp %q: %w", updatedAt, err)
	}
	return values, ts, nil
}

func (t *Tracker) persist(userID, scope string, values []float64, now time.Time) error {
	raw, _ := json.Marshal(values)
	_, err := t.store.db.Exec(`
		INSERT INTO persona_mood_state (user_id, session_id, mood_values, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, session_id) DO UPDATE SET
			mood_values=excluded.mood_values,
			updated_at=excluded.updated_at
	`, userID, scope, string(raw), now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("persist mood %s/%q: %w", userID, scope, err)
	}
	return nil
}

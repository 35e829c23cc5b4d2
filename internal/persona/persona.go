// Package persona manages per-user behavioral state: stable weighted
// traits, short-lived mood, and the compiled summary injected into
// every model prompt.
//
// Traits live in a fixed-dimensional personality space whose axes are
// declared per user in [Settings]. Moods live in a separate, smaller
// space and decay toward a neutral baseline over wall-clock time.
package persona

import (
	"errors"
	"time"
)

// Errors returned by the persona stores. These indicate programmer or
// configuration mistakes and are fatal to the operation that hit them.
var (
	// ErrTraitNotFound is returned when an update targets a trait
	// that does not exist for the user.
	ErrTraitNotFound = errors.New("persona: trait not found")

	// ErrNoSettings is returned when a user has no persona settings
	// row. Bootstrap the user first.
	ErrNoSettings = errors.New("persona: no settings for user")

	// ErrInvalidAxisConfig is returned when a vector's length does
	// not match the axis set declared in the user's settings.
	ErrInvalidAxisConfig = errors.New("persona: axis configuration mismatch")
)

// Trait is a named point in the user's personality space. Coordinates
// are ordered by the personality axes declared in Settings.
type Trait struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Coords      []float64 `json:"coords"`
	Importance  float64   `json:"importance"`
	Plasticity  float64   `json:"plasticity"` // in [0,1]; fraction of an update applied
	Locked      bool      `json:"locked"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MoodState is a user's mood vector at a point in time. Values are
// ordered by the mood axes declared in Settings. Scope "" is the
// user's baseline; any other scope is a session-local overlay.
type MoodState struct {
	UserID    string    `json:"user_id"`
	Scope     string    `json:"scope"`
	Values    []float64 `json:"values"`
	UpdatedAt time.Time `json:"updated_at"`
	// Stored reports whether a row exists for this scope. False means
	// the values are the synthesized neutral vector.
	Stored bool `json:"-"`
}

// TraitEffect is the per-trait component of an interaction effect.
// Deltas are keyed by personality axis name and resolved to ordered
// vectors against Settings at apply time.
type TraitEffect struct {
	Coords     map[string]float64 `json:"coords,omitempty"`
	Importance float64            `json:"importance,omitempty"`
}

// Effect maps one classified interaction outcome to the deltas it
// applies. Mood deltas are keyed by mood axis name.
type Effect struct {
	Mood   map[string]float64     `json:"mood,omitempty"`
	Traits map[string]TraitEffect `json:"traits,omitempty"`
}

// Settings is a user's persona configuration bundle. The axis slices
// define coordinate ordering for every stored vector; changing them
// invalidates stored rows and requires an operator reload.
type Settings struct {
	UserID          string
	PersonalityAxes []string
	MoodAxes        []string

	// MoodHalfLife controls decay toward neutral: one half-life
	// halves a value's displacement from its neutral baseline.
	MoodHalfLife time.Duration

	// ClampMin and ClampMax bound every mood axis after each update.
	ClampMin float64
	ClampMax float64

	// Neutral holds per-axis baseline values (same order as
	// MoodAxes). Nil means all zeros.
	Neutral []float64

	// TopTraits is the number of traits surfaced by the compiler.
	TopTraits int

	// Effects maps outcome names (e.g. "friendly_user_message",
	// "tool_failure") to the deltas they apply. Unmapped outcomes
	// are a safe no-op.
	Effects map[string]Effect

	Version int
}

// NeutralValue returns the neutral baseline for mood axis i.
func (s *Settings) NeutralValue(i int) float64 {
	if i < len(s.Neutral) {
		return s.Neutral[i]
	}
	return 0
}

// NeutralMood returns a fresh mood vector at the neutral baseline.
func (s *Settings) NeutralMood() []float64 {
	values := make([]float64, len(s.MoodAxes))
	copy(values, s.Neutral)
	return values
}

// MoodVector resolves an axis-keyed delta map to an ordered vector.
// Axes absent from the map contribute zero; axes in the map that are
// not declared return ErrInvalidAxisConfig.
func (s *Settings) MoodVector(deltas map[string]float64) ([]float64, error) {
	return resolveVector(s.MoodAxes, deltas)
}

// PersonalityVector resolves an axis-keyed delta map against the
// personality axes.
func (s *Settings) PersonalityVector(deltas map[string]float64) ([]float64, error) {
	return resolveVector(s.PersonalityAxes, deltas)
}

func resolveVector(axes []string, deltas map[string]float64) ([]float64, error) {
	index := make(map[string]int, len(axes))
	for i, name := range axes {
		index[name] = i
	}
	vec := make([]float64, len(axes))
	for name, v := range deltas {
		i, ok := index[name]
		if !ok {
			return nil, ErrInvalidAxisConfig
		}
		vec[i] = v
	}
	return vec, nil
}

func clamp(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}

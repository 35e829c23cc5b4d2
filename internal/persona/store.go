package persona

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store manages persona settings, traits, and trait-usage counters.
type Store struct {
	db    *sql.DB
	locks *userLocks
}

// NewStore creates a persona store using the given database path.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, locks: newUserLocks()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// NewStoreWithDB creates a persona store using an existing database
// connection. The caller retains ownership of the connection.
func NewStoreWithDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db, locks: newUserLocks()}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			display_name TEXT,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS persona_settings (
			user_id TEXT PRIMARY KEY REFERENCES users(id),
			personality_axes TEXT NOT NULL,
			mood_axes TEXT NOT NULL,
			decay_settings TEXT NOT NULL,
			interaction_effects TEXT NOT NULL,
			top_traits INTEGER NOT NULL DEFAULT 5,
			version INTEGER NOT NULL DEFAULT 1,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS persona_traits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			coords TEXT NOT NULL,
			importance REAL NOT NULL DEFAULT 0,
			plasticity REAL NOT NULL DEFAULT 0,
			locked INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL,
			UNIQUE(user_id, name)
		);
		CREATE INDEX IF NOT EXISTS idx_persona_traits_user ON persona_traits(user_id, importance DESC);

		CREATE TABLE IF NOT EXISTS persona_trait_usage (
			trait_id INTEGER PRIMARY KEY REFERENCES persona_traits(id) ON DELETE CASCADE,
			usage_count INTEGER NOT NULL DEFAULT 0,
			last_used_at TEXT
		);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// decaySettings is the persisted shape of the non-axis settings fields.
type decaySettings struct {
	HalfLifeSec int       `json:"half_life_sec"`
	ClampMin    float64   `json:"clamp_min"`
	ClampMax    float64   `json:"clamp_max"`
	Neutral     []float64 `json:"neutral,omitempty"`
}

// SaveSettings inserts or replaces a user's persona settings, bumping
// the version when a row already exists. The user row is created if
// missing.
func (s *Store) SaveSettings(settings *Settings) error {
	if err := validateSettings(settings); err != nil {
		return err
	}

	axes, _ := json.Marshal(settings.PersonalityAxes)
	moodAxes, _ := json.Marshal(settings.MoodAxes)
	decay, _ := json.Marshal(decaySettings{
		HalfLifeSec: int(settings.MoodHalfLife / time.Second),
		ClampMin:    settings.ClampMin,
		ClampMax:    settings.ClampMax,
		Neutral:     settings.Neutral,
	})
	effects, _ := json.Marshal(settings.Effects)
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.db.Exec(`
		INSERT INTO users (id, display_name) VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, settings.UserID, settings.UserID)
	if err != nil {
		return fmt.Errorf("ensure user %s: %w", settings.UserID, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO persona_settings (
			user_id, personality_axes, mood_axes, decay_settings,
			interaction_effects, top_traits, version, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			personality_axes=excluded.personality_axes,
			mood_axes=excluded.mood_axes,
			decay_settings=excluded.decay_settings,
			interaction_effects=excluded.interaction_effects,
			top_traits=excluded.top_traits,
			version=persona_settings.version + 1,
			updated_at=excluded.updated_at
	`, settings.UserID, string(axes), string(moodAxes), string(decay), string(effects), settings.TopTraits, now)
	if err != nil {
		return fmt.Errorf("save settings for %s: %w", settings.UserID, err)
	}
	return nil
}

// validateSettings rejects effect tables that reference undeclared
// axes. A bad effect table would otherwise surface mid-turn, where the
// loop is required to degrade instead of failing loudly.
func validateSettings(settings *Settings) error {
	for name, effect := range settings.Effects {
		if _, err := settings.MoodVector(effect.Mood); err != nil {
			return fmt.Errorf("effect %q: %w", name, err)
		}
		for traitName, te := range effect.Traits {
			if _, err := settings.PersonalityVector(te.Coords); err != nil {
				return fmt.Errorf("effect %q trait %q: %w", name, traitName, err)
			}
		}
	}
	return nil
}

// SettingsFor loads a user's persona settings. Returns ErrNoSettings
// when the user has not been bootstrapped.
func (s *Store) SettingsFor(userID string) (*Settings, error) {
	row := s.db.QueryRow(`
		SELECT personality_axes, mood_axes, decay_settings,
		       interaction_effects, top_traits, version
		FROM persona_settings WHERE user_id = ?
	`, userID)

	var axes, moodAxes, decay, effects string
	var topTraits, version int
	if err := row.Scan(&axes, &moodAxes, &decay, &effects, &topTraits, &version); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrNoSettings, userID)
		}
		return nil, fmt.Errorf("load settings for %s: %w", userID, err)
	}

	settings := &Settings{UserID: userID, TopTraits: topTraits, Version: version}
	var ds decaySettings
	if err := json.Unmarshal([]byte(axes), &settings.PersonalityAxes); err != nil {
		return nil, fmt.Errorf("decode personality axes: %w", err)
	}
	if err := json.Unmarshal([]byte(moodAxes), &settings.MoodAxes); err != nil {
		return nil, fmt.Errorf("decode mood axes: %w", err)
	}
	if err := json.Unmarshal([]byte(decay), &ds); err != nil {
		return nil, fmt.Errorf("decode decay settings: %w", err)
	}
	if err := json.Unmarshal([]byte(effects), &settings.Effects); err != nil {
		return nil, fmt.Errorf("decode interaction effects: %w", err)
	}
	settings.MoodHalfLife = time.Duration(ds.HalfLifeSec) * time.Second
	settings.ClampMin = ds.ClampMin
	settings.ClampMax = ds.ClampMax
	settings.Neutral = ds.Neutral
	return settings, nil
}

// Bootstrap saves settings and seeds the user's traits in one step.
// Existing traits with the same name are replaced.
func (s *Store) Bootstrap(settings *Settings, seeds []Trait) error {
	if err := s.SaveSettings(settings); err != nil {
		return err
	}
	for _, t := range seeds {
		if len(t.Coords) != len(settings.PersonalityAxes) {
			return fmt.Errorf("trait %q: %d coords for %d axes: %w",
				t.Name, len(t.Coords), len(settings.PersonalityAxes), ErrInvalidAxisConfig)
		}
		if err := s.upsertTrait(settings.UserID, t); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsertTrait(userID string, t Trait) error {
	coords, _ := json.Marshal(t.Coords)
	now := time.Now().UTC().Format(time.RFC3339)
	locked := 0
	if t.Locked {
		locked = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO persona_traits (user_id, name, description, coords, importance, plasticity, locked, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, name) DO UPDATE SET
			description=excluded.description,
			coords=excluded.coords,
			importance=excluded.importance,
			plasticity=excluded.plasticity,
			locked=excluded.locked,
			updated_at=excluded.updated_at
	`, userID, t.Name, t.Description, string(coords), t.Importance, t.Plasticity, locked, now)
	if err != nil {
		return fmt.Errorf("upsert trait %s/%s: %w", userID, t.Name, err)
	}
	return nil
}

// Traits returns a user's traits ordered by importance descending,
// ties broken by name.
func (s *Store) Traits(userID string) ([]Trait, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, name, description, coords, importance, plasticity, locked, updated_at
		FROM persona_traits
		WHERE user_id = ?
		ORDER BY importance DESC, name ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list traits for %s: %w", userID, err)
	}
	defer rows.Close()

	var traits []Trait
	for rows.Next() {
		t, err := scanTrait(rows)
		if err != nil {
			return nil, err
		}
		traits = append(traits, t)
	}
	return traits, rows.Err()
}

// Trait returns a single trait by name.
func (s *Store) Trait(userID, name string) (*Trait, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, name, description, coords, importance, plasticity, locked, updated_at
		FROM persona_traits
		WHERE user_id = ? AND name = ?
	`, userID, name)

	t, err := scanTrait(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s/%s", ErrTraitNotFound, userID, name)
		}
		return nil, err
	}
	return &t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrait(row rowScanner) (Trait, error) {
	var t Trait
	var coords, updatedAt string
	var description sql.NullString
	var locked int
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &description, &coords, &t.Importance, &t.Plasticity, &locked, &updatedAt); err != nil {
		return t, err
	}
	t.Description = description.String
	t.Locked = locked != 0
	if err := json.Unmarshal([]byte(coords), &t.Coords); err != nil {
		return t, fmt.Errorf("decode coords for %s: %w", t.Name, err)
	}
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return t, nil
}

// ApplyUpdate applies a proposed delta to a trait, scaled by the
// trait's plasticity: new = old + plasticity * delta. A locked trait
// is returned unchanged — locking wins over any delta on every code
// path. The write is serialized per user.
func (s *Store) ApplyUpdate(userID, name string, deltaCoords []float64, deltaImportance float64) (*Trait, error) {
	unlock := s.locks.acquire(userID)
	defer unlock()

	t, err := s.Trait(userID, name)
	if err != nil {
		return nil, err
	}
	if t.Locked {
		return t, nil
	}
	if deltaCoords != nil && len(deltaCoords) != len(t.Coords) {
		return nil, fmt.Errorf("delta has %d coords, trait has %d: %w",
			len(deltaCoords), len(t.Coords), ErrInvalidAxisConfig)
	}

	for i := range deltaCoords {
		t.Coords[i] += t.Plasticity * deltaCoords[i]
	}
	t.Importance += t.Plasticity * deltaImportance
	if t.Importance < 0 {
		t.Importance = 0
	}
	t.UpdatedAt = time.Now().UTC()

	coords, _ := json.Marshal(t.Coords)
	_, err = s.db.Exec(`
		UPDATE persona_traits
		SET coords = ?, importance = ?, updated_at = ?
		WHERE id = ?
	`, string(coords), t.Importance, t.UpdatedAt.Format(time.RFC3339), t.ID)
	if err != nil {
		return nil, fmt.Errorf("update trait %s/%s: %w", userID, name, err)
	}
	return t, nil
}

// Lock marks a trait immutable. Returns ErrTraitNotFound if absent.
func (s *Store) Lock(userID, name string) error {
	res, err := s.db.Exec(`
		UPDATE persona_traits SET locked = 1 WHERE user_id = ? AND name = ?
	`, userID, name)
	if err != nil {
		return fmt.Errorf("lock trait %s/%s: %w", userID, name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrTraitNotFound, userID, name)
	}
	return nil
}

// RecordUsage increments usage counters for the given traits. Counters
// only ever grow; last_used_at reflects the most recent compile.
func (s *Store) RecordUsage(traitIDs []int64, now time.Time) error {
	if len(traitIDs) == 0 {
		return nil
	}
	ts := now.UTC().Format(time.RFC3339)
	for _, id := range traitIDs {
		_, err := s.db.Exec(`
			INSERT INTO persona_trait_usage (trait_id, usage_count, last_used_at)
			VALUES (?, 1, ?)
			ON CONFLICT(trait_id) DO UPDATE SET
				usage_count = usage_count + 1,
				last_used_at = excluded.last_used_at
		`, id, ts)
		if err != nil {
			return fmt.Errorf("record usage for trait %d: %w", id, err)
		}
	}
	return nil
}

// Usage returns the usage counter for a trait. A trait never surfaced
// reports zero with a zero time.
func (s *Store) Usage(traitID int64) (int64, time.Time, error) {
	row := s.db.QueryRow(`
		SELECT usage_count, last_used_at FROM persona_trait_usage WHERE trait_id = ?
	`, traitID)
	var count int64
	var lastUsed sql.NullString
	if err := row.Scan(&count, &lastUsed); err != nil {
		if err == sql.ErrNoRows {
			return 0, time.Time{}, nil
		}
		return 0, time.Time{}, fmt.Errorf("usage for trait %d: %w", traitID, err)
	}
	var t time.Time
	if lastUsed.Valid {
		t, _ = time.Parse(time.RFC3339, lastUsed.String)
	}
	return count, t, nil
}

package persona

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// filePersona is the on-disk bootstrap document. YAML is a superset of
// JSON, so both formats load through the same path.
type filePersona struct {
	UserID          string                `yaml:"user_id"`
	PersonalityAxes []string              `yaml:"personality_axes"`
	MoodAxes        []string              `yaml:"mood_axes"`
	MoodHalfLifeSec int                   `yaml:"mood_half_life_sec"`
	ClampMin        *float64              `yaml:"clamp_min"`
	ClampMax        *float64              `yaml:"clamp_max"`
	Neutral         map[string]float64    `yaml:"neutral"`
	TopTraits       int                   `yaml:"top_traits"`
	Effects         map[string]fileEffect `yaml:"effects"`
	Traits          []fileTrait           `yaml:"traits"`
}

type fileEffect struct {
	Mood   map[string]float64         `yaml:"mood"`
	Traits map[string]fileTraitEffect `yaml:"traits"`
}

type fileTraitEffect struct {
	Coords     map[string]float64 `yaml:"coords"`
	Importance float64            `yaml:"importance"`
}

type fileTrait struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Coords      []float64 `yaml:"coords"`
	Importance  float64   `yaml:"importance"`
	Plasticity  float64   `yaml:"plasticity"`
	Locked      bool      `yaml:"locked"`
}

// FileDefaults supplies fallback values for fields a persona document
// omits, typically drawn from server configuration. Zero fields fall
// back to the built-in defaults (1h half-life, 5 top traits).
type FileDefaults struct {
	TopTraits    int
	MoodHalfLife time.Duration
}

// ParsePersona decodes a persona bootstrap document into settings and
// trait seeds ready for [Store.Bootstrap], using the built-in
// defaults for omitted fields.
func ParsePersona(data []byte) (*Settings, []Trait, error) {
	return ParsePersonaWith(data, FileDefaults{})
}

// ParsePersonaWith is ParsePersona with configurable fallbacks. Values
// in the document always win over def.
func ParsePersonaWith(data []byte, def FileDefaults) (*Settings, []Trait, error) {
	var doc filePersona
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse persona file: %w", err)
	}

	if doc.UserID == "" {
		return nil, nil, fmt.Errorf("persona file: user_id is required")
	}
	if len(doc.PersonalityAxes) == 0 {
		return nil, nil, fmt.Errorf("persona file: personality_axes is required")
	}
	if len(doc.MoodAxes) == 0 {
		return nil, nil, fmt.Errorf("persona file: mood_axes is required")
	}

	settings := &Settings{
		UserID:          doc.UserID,
		PersonalityAxes: doc.PersonalityAxes,
		MoodAxes:        doc.MoodAxes,
		MoodHalfLife:    time.Hour,
		ClampMin:        -1,
		ClampMax:        1,
		TopTraits:       doc.TopTraits,
	}
	if def.MoodHalfLife > 0 {
		settings.MoodHalfLife = def.MoodHalfLife
	}
	if doc.MoodHalfLifeSec > 0 {
		settings.MoodHalfLife = time.Duration(doc.MoodHalfLifeSec) * time.Second
	}
	if doc.ClampMin != nil {
		settings.ClampMin = *doc.ClampMin
	}
	if doc.ClampMax != nil {
		settings.ClampMax = *doc.ClampMax
	}
	if settings.TopTraits <= 0 {
		settings.TopTraits = def.TopTraits
	}
	if settings.TopTraits <= 0 {
		settings.TopTraits = 5
	}
	if settings.ClampMin >= settings.ClampMax {
		return nil, nil, fmt.Errorf("persona file: clamp_min %v must be below clamp_max %v",
			settings.ClampMin, settings.ClampMax)
	}

	if len(doc.Neutral) > 0 {
		neutral, err := settings.MoodVector(doc.Neutral)
		if err != nil {
			return nil, nil, fmt.Errorf("persona file: neutral: %w", err)
		}
		settings.Neutral = neutral
	}

	if len(doc.Effects) > 0 {
		settings.Effects = make(map[string]Effect, len(doc.Effects))
		for outcome, fe := range doc.Effects {
			eff := Effect{Mood: fe.Mood}
			if len(fe.Traits) > 0 {
				eff.Traits = make(map[string]TraitEffect, len(fe.Traits))
				for name, te := range fe.Traits {
					eff.Traits[name] = TraitEffect{Coords: te.Coords, Importance: te.Importance}
				}
			}
			for axis := range fe.Mood {
				if _, err := settings.MoodVector(map[string]float64{axis: 0}); err != nil {
					return nil, nil, fmt.Errorf("persona file: effect %q: %w", outcome, err)
				}
			}
			settings.Effects[outcome] = eff
		}
	}

	traits := make([]Trait, 0, len(doc.Traits))
	for _, ft := range doc.Traits {
		if ft.Name == "" {
			return nil, nil, fmt.Errorf("persona file: trait without a name")
		}
		if len(ft.Coords) != len(settings.PersonalityAxes) {
			return nil, nil, fmt.Errorf("persona file: trait %q has %d coords, want %d: %w",
				ft.Name, len(ft.Coords), len(settings.PersonalityAxes), ErrInvalidAxisConfig)
		}
		traits = append(traits, Trait{
			UserID:      doc.UserID,
			Name:        ft.Name,
			Description: ft.Description,
			Coords:      ft.Coords,
			Importance:  ft.Importance,
			Plasticity:  ft.Plasticity,
			Locked:      ft.Locked,
		})
	}

	return settings, traits, nil
}

// LoadPersonaFile reads and parses a persona bootstrap document.
func LoadPersonaFile(path string, def FileDefaults) (*Settings, []Trait, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return ParsePersonaWith(data, def)
}

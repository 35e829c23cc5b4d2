package persona

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const samplePersona = `
user_id: hez
personality_axes: [warmth, rigor]
mood_axes: [valence, arousal]
mood_half_life_sec: 7200
clamp_min: -1.0
clamp_max: 1.0
neutral:
  valence: 0.1
top_traits: 3
effects:
  friendly_user_message:
    mood: {valence: 0.2}
  tool_failure:
    mood: {valence: -0.1, arousal: 0.2}
    traits:
      meticulous:
        coords: {rigor: 0.05}
traits:
  - name: curious
    description: Asks follow-up questions.
    coords: [0.5, 0.2]
    importance: 0.9
    plasticity: 0.5
  - name: loyal
    coords: [0.8, 0.0]
    importance: 1.0
    plasticity: 0.0
    locked: true
`

func TestParsePersona(t *testing.T) {
	settings, traits, err := ParsePersona([]byte(samplePersona))
	if err != nil {
		t.Fatalf("ParsePersona: %v", err)
	}

	if settings.UserID != "hez" {
		t.Errorf("user = %q", settings.UserID)
	}
	if settings.MoodHalfLife != 2*time.Hour {
		t.Errorf("half-life = %v", settings.MoodHalfLife)
	}
	if settings.TopTraits != 3 {
		t.Errorf("top traits = %d", settings.TopTraits)
	}
	if len(settings.Neutral) != 2 || settings.Neutral[0] != 0.1 || settings.Neutral[1] != 0 {
		t.Errorf("neutral = %v", settings.Neutral)
	}
	if len(settings.Effects) != 2 {
		t.Errorf("effects = %v", settings.Effects)
	}
	if settings.Effects["tool_failure"].Traits["meticulous"].Coords["rigor"] != 0.05 {
		t.Errorf("trait effect not carried: %+v", settings.Effects["tool_failure"])
	}

	if len(traits) != 2 {
		t.Fatalf("traits = %d, want 2", len(traits))
	}
	if traits[0].Name != "curious" || traits[0].Description == "" {
		t.Errorf("trait[0] = %+v", traits[0])
	}
	if !traits[1].Locked {
		t.Error("loyal should be locked")
	}
}

func TestParsePersonaJSON(t *testing.T) {
	doc := `{"user_id": "hez", "personality_axes": ["warmth"], "mood_axes": ["valence"],
		"traits": [{"name": "curious", "coords": [0.5], "importance": 0.9, "plasticity": 0.5}]}`
	settings, traits, err := ParsePersona([]byte(doc))
	if err != nil {
		t.Fatalf("ParsePersona: %v", err)
	}
	if settings.MoodHalfLife != time.Hour {
		t.Errorf("default half-life = %v", settings.MoodHalfLife)
	}
	if settings.ClampMin != -1 || settings.ClampMax != 1 {
		t.Errorf("default clamps = %v..%v", settings.ClampMin, settings.ClampMax)
	}
	if len(traits) != 1 {
		t.Errorf("traits = %d", len(traits))
	}
}

func TestParsePersonaWithConfigDefaults(t *testing.T) {
	minimal := `{"user_id": "hez", "personality_axes": ["warmth"], "mood_axes": ["valence"]}`
	def := FileDefaults{TopTraits: 3, MoodHalfLife: 30 * time.Minute}

	settings, _, err := ParsePersonaWith([]byte(minimal), def)
	if err != nil {
		t.Fatalf("ParsePersonaWith: %v", err)
	}
	if settings.TopTraits != 3 {
		t.Errorf("TopTraits = %d, want config fallback 3", settings.TopTraits)
	}
	if settings.MoodHalfLife != 30*time.Minute {
		t.Errorf("MoodHalfLife = %v, want config fallback 30m", settings.MoodHalfLife)
	}

	// Values in the document always beat configured fallbacks.
	explicit := `{"user_id": "hez", "personality_axes": ["warmth"], "mood_axes": ["valence"],
		"top_traits": 7, "mood_half_life_sec": 60}`
	settings, _, err = ParsePersonaWith([]byte(explicit), def)
	if err != nil {
		t.Fatalf("ParsePersonaWith: %v", err)
	}
	if settings.TopTraits != 7 {
		t.Errorf("TopTraits = %d, want document value 7", settings.TopTraits)
	}
	if settings.MoodHalfLife != time.Minute {
		t.Errorf("MoodHalfLife = %v, want document value 1m", settings.MoodHalfLife)
	}
}

func TestParsePersonaErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"missing user", `{"personality_axes": ["a"], "mood_axes": ["v"]}`, "user_id"},
		{"missing axes", `{"user_id": "hez", "mood_axes": ["v"]}`, "personality_axes"},
		{"inverted clamps", `{"user_id": "hez", "personality_axes": ["a"], "mood_axes": ["v"], "clamp_min": 1.0, "clamp_max": -1.0}`, "clamp_min"},
		{"unknown neutral axis", `{"user_id": "hez", "personality_axes": ["a"], "mood_axes": ["v"], "neutral": {"bogus": 1.0}}`, "neutral"},
		{"unknown effect axis", `{"user_id": "hez", "personality_axes": ["a"], "mood_axes": ["v"], "effects": {"x": {"mood": {"bogus": 1.0}}}}`, "effect"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParsePersona([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestParsePersonaCoordMismatch(t *testing.T) {
	doc := `{"user_id": "hez", "personality_axes": ["a", "b"], "mood_axes": ["v"],
		"traits": [{"name": "curious", "coords": [0.5]}]}`
	_, _, err := ParsePersona([]byte(doc))
	if !errors.Is(err, ErrInvalidAxisConfig) {
		t.Errorf("error = %v, want ErrInvalidAxisConfig", err)
	}
}

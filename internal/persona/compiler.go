package persona

import (
	"fmt"
	"strings"
	"time"
)

// Snapshot is a compiled persona summary. Text is the block injected
// verbatim into the system prompt; the vectors are kept alongside so
// callers can log or inspect what the model was shown.
type Snapshot struct {
	UserID          string
	Text            string
	Traits          []Trait
	Mood            *MoodState
	SettingsVersion int
}

// TurnOutcome is the classified result of one completed turn, consumed
// by InteractionEffect.
type TurnOutcome struct {
	// Sentiment is the detected tone category of the user message
	// ("" when nothing matched).
	Sentiment string
	// ToolFailures counts failed tool executions during the turn.
	ToolFailures int
}

// TraitDelta is a resolved per-trait update ready for Store.ApplyUpdate.
type TraitDelta struct {
	Name       string
	Coords     []float64
	Importance float64
}

// DirectiveSource supplies a user's standing persona directives. The
// preference store implements this for persona.-prefixed keys.
type DirectiveSource interface {
	PersonaDirectives(userID string) ([]string, error)
}

// Compiler projects trait and mood state into prompt-ready summaries
// and maps turn outcomes to the deltas committed after each turn.
type Compiler struct {
	store      *Store
	moods      *Tracker
	directives DirectiveSource
}

// NewCompiler creates a persona compiler over the given stores.
func NewCompiler(store *Store, moods *Tracker) *Compiler {
	return &Compiler{store: store, moods: moods}
}

// SetDirectives attaches a standing-directive source. May be left
// unset.
func (c *Compiler) SetDirectives(src DirectiveSource) {
	c.directives = src
}

// Compile builds a deterministic persona snapshot for a user. The
// session's mood overlay is preferred when one exists; otherwise the
// user's baseline mood is used. Compile records usage for every trait
// it surfaces — it is deliberately not a pure function.
func (c *Compiler) Compile(userID, sessionID string, now time.Time) (*Snapshot, error) {
	settings, err := c.store.SettingsFor(userID)
	if err != nil {
		return nil, err
	}

	traits, err := c.store.Traits(userID)
	if err != nil {
		return nil, err
	}

	limit := settings.TopTraits
	if limit <= 0 {
		limit = 5
	}
	if len(traits) > limit {
		traits = traits[:limit]
	}

	mood, err := c.moods.Mood(userID, sessionID, now)
	if err != nil {
		return nil, err
	}
	if sessionID != "" && !mood.Stored {
		// No session overlay yet; fall back to the baseline row. An
		// overlay that happens to sit at neutral still wins.
		baseline, err := c.moods.Mood(userID, "", now)
		if err != nil {
			return nil, err
		}
		mood = baseline
	}

	var directives []string
	if c.directives != nil {
		directives, err = c.directives.PersonaDirectives(userID)
		if err != nil {
			return nil, fmt.Errorf("persona directives: %w", err)
		}
	}

	snapshot := &Snapshot{
		UserID:          userID,
		Text:            renderSummary(settings, traits, mood, directives),
		Traits:          traits,
		Mood:            mood,
		SettingsVersion: settings.Version,
	}

	ids := make([]int64, len(traits))
	for i, t := range traits {
		ids[i] = t.ID
	}
	if err := c.store.RecordUsage(ids, now); err != nil {
		return nil, err
	}

	return snapshot, nil
}

// renderSummary produces a stable human-readable persona block. Traits
// arrive pre-sorted by importance desc, name asc; mood axes follow the
// declared order. No randomness, no map iteration.
func renderSummary(settings *Settings, traits []Trait, mood *MoodState, directives []string) string {
	var b strings.Builder
	b.WriteString("Persona profile:\n")
	for _, t := range traits {
		b.WriteString(fmt.Sprintf("- %s (importance %.2f)", t.Name, t.Importance))
		if t.Description != "" {
			b.WriteString(": ")
			b.WriteString(t.Description)
		}
		b.WriteString("\n")
	}
	if len(traits) == 0 {
		b.WriteString("- (no traits configured)\n")
	}

	b.WriteString("Current mood: ")
	if len(settings.MoodAxes) == 0 {
		b.WriteString("neutral")
	} else {
		parts := make([]string, len(settings.MoodAxes))
		for i, axis := range settings.MoodAxes {
			v := 0.0
			if i < len(mood.Values) {
				v = mood.Values[i]
			}
			parts[i] = fmt.Sprintf("%s=%.3f", axis, v)
		}
		b.WriteString(strings.Join(parts, ", "))
	}
	b.WriteString("\n")

	if len(directives) > 0 {
		b.WriteString("Standing directives:\n")
		for _, d := range directives {
			b.WriteString("- ")
			b.WriteString(d)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// ClassifySentiment is a heuristic tone classifier for user messages.
// It drives the mood effects applied after a turn; an empty return
// means no sentiment signal was detected.
func ClassifySentiment(message string) string {
	text := strings.ToLower(message)
	for _, token := range []string{"sorry", "apologize", "apologies", "my bad"} {
		if strings.Contains(text, token) {
			return "apology_from_user"
		}
	}
	for _, token := range []string{"thank you", "thanks", "appreciate", "great job", "nice work"} {
		if strings.Contains(text, token) {
			return "friendly_user_message"
		}
	}
	for _, token := range []string{"stupid", "idiot", "hate you", "useless", "terrible", "awful"} {
		if strings.Contains(text, token) {
			return "hostile_user_message"
		}
	}
	return ""
}

// InteractionEffect maps a turn outcome through the user's configured
// effect table. Outcome categories with no table entry contribute
// nothing — an unrecognized signal must never fail the turn. The mood
// delta is an ordered vector; trait deltas are resolved against the
// personality axes.
func (c *Compiler) InteractionEffect(userID string, outcome TurnOutcome) ([]TraitDelta, []float64, error) {
	settings, err := c.store.SettingsFor(userID)
	if err != nil {
		return nil, nil, err
	}

	var names []string
	if outcome.Sentiment != "" {
		names = append(names, outcome.Sentiment)
	}
	for i := 0; i < outcome.ToolFailures; i++ {
		names = append(names, "tool_failure")
	}

	moodDelta := make([]float64, len(settings.MoodAxes))
	traitDeltas := make(map[string]*TraitDelta)
	var order []string

	for _, name := range names {
		effect, ok := settings.Effects[name]
		if !ok {
			continue
		}
		vec, err := settings.MoodVector(effect.Mood)
		if err != nil {
			return nil, nil, fmt.Errorf("effect %q: %w", name, err)
		}
		for i := range moodDelta {
			moodDelta[i] += vec[i]
		}
		for traitName, te := range effect.Traits {
			coords, err := settings.PersonalityVector(te.Coords)
			if err != nil {
				return nil, nil, fmt.Errorf("effect %q trait %q: %w", name, traitName, err)
			}
			td, ok := traitDeltas[traitName]
			if !ok {
				td = &TraitDelta{Name: traitName, Coords: make([]float64, len(settings.PersonalityAxes))}
				traitDeltas[traitName] = td
				order = append(order, traitName)
			}
			for i := range coords {
				td.Coords[i] += coords[i]
			}
			td.Importance += te.Importance
		}
	}

	result := make([]TraitDelta, 0, len(order))
	for _, name := range order {
		result = append(result, *traitDeltas[name])
	}
	return result, moodDelta, nil
}

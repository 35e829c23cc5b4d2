package homeassistant

import (
	"context"
	"encoding/json"
	"log/slog"
	"path"
	"sync"
	"time"
)

// StateChange is one observed entity transition.
type StateChange struct {
	EntityID string    `json:"entity_id"`
	OldState string    `json:"old_state"`
	NewState string    `json:"new_state"`
	At       time.Time `json:"at"`
}

// EntityFilter selects which entity IDs to process using glob patterns
// in [path.Match] syntax (e.g. "person.*", "binary_sensor.*door*").
// An empty filter matches all entities.
type EntityFilter struct {
	patterns []string
	logger   *slog.Logger
}

// NewEntityFilter creates an entity filter from glob patterns.
func NewEntityFilter(globs []string, logger *slog.Logger) *EntityFilter {
	if logger == nil {
		logger = slog.Default()
	}
	return &EntityFilter{patterns: globs, logger: logger}
}

// Match reports whether the entity ID matches at least one pattern.
func (f *EntityFilter) Match(entityID string) bool {
	if len(f.patterns) == 0 {
		return true
	}
	for _, pat := range f.patterns {
		matched, err := path.Match(pat, entityID)
		if err != nil {
			f.logger.Debug("glob match error", "pattern", pat, "entity_id", entityID, "error", err)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// StateWatcher consumes state_changed events from the WebSocket event
// channel, applies the entity filter, and keeps a bounded ring of
// recent transitions for the status endpoint. An optional handler is
// invoked for each accepted change.
type StateWatcher struct {
	events  <-chan Event
	filter  *EntityFilter
	handler func(StateChange)
	logger  *slog.Logger

	mu     sync.Mutex
	recent []StateChange
	keep   int
}

// NewStateWatcher creates a state watcher. handler may be nil; keep
// bounds the retained change history (<=0 uses a small default).
func NewStateWatcher(events <-chan Event, filter *EntityFilter, handler func(StateChange), keep int, logger *slog.Logger) *StateWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if filter == nil {
		filter = NewEntityFilter(nil, logger)
	}
	if keep <= 0 {
		keep = 20
	}
	return &StateWatcher{
		events:  events,
		filter:  filter,
		handler: handler,
		logger:  logger,
		keep:    keep,
	}
}

// Run reads events until the context is cancelled or the channel is
// closed. It blocks the calling goroutine.
func (w *StateWatcher) Run(ctx context.Context) {
	w.logger.Info("state watcher started")
	defer w.logger.Info("state watcher stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		}
	}
}

// Recent returns the retained state changes, newest last.
func (w *StateWatcher) Recent() []StateChange {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]StateChange, len(w.recent))
	copy(out, w.recent)
	return out
}

func (w *StateWatcher) handleEvent(ev Event) {
	if ev.Type != "state_changed" {
		return
	}

	var data StateChangedData
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		w.logger.Debug("failed to unmarshal state_changed data", "error", err)
		return
	}
	// NewState is nil when an entity is deleted.
	if data.NewState == nil {
		return
	}
	if !w.filter.Match(data.EntityID) {
		return
	}

	change := StateChange{
		EntityID: data.EntityID,
		NewState: data.NewState.State,
		At:       ev.TimeFired,
	}
	if data.OldState != nil {
		change.OldState = data.OldState.State
	}

	w.mu.Lock()
	w.recent = append(w.recent, change)
	if len(w.recent) > w.keep {
		w.recent = w.recent[len(w.recent)-w.keep:]
	}
	w.mu.Unlock()

	w.logger.Debug("state changed", "entity_id", change.EntityID,
		"old", change.OldState, "new", change.NewState)

	if w.handler != nil {
		w.handler(change)
	}
}

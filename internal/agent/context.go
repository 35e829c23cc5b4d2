package agent

import (
	"strings"

	"github.com/Hezy4/LEO/internal/episodic"
)

// ContextProvider contributes one block of memory context to the
// system prompt. Providers that have nothing to say return "".
type ContextProvider interface {
	MemoryContext(userID, sessionID string) (string, error)
}

// AddContextProvider registers an additional memory context source.
// Providers run in registration order on every turn.
func (l *Loop) AddContextProvider(p ContextProvider) {
	if p != nil {
		l.providers = append(l.providers, p)
	}
}

// gatherContext collects every provider's block. A failing provider is
// skipped so one bad source never blocks the turn.
func (l *Loop) gatherContext(userID, sessionID string) string {
	var parts []string
	for _, p := range l.providers {
		block, err := p.MemoryContext(userID, sessionID)
		if err != nil {
			l.logger.Warn("context provider failed", "user", userID, "error", err)
			continue
		}
		if block != "" {
			parts = append(parts, block)
		}
	}
	return strings.Join(parts, "\n\n")
}

// episodicContext adapts the episode store to the provider interface.
type episodicContext struct {
	store *episodic.Store
}

func (p episodicContext) MemoryContext(userID, sessionID string) (string, error) {
	return p.store.Context(userID, sessionID, 10)
}

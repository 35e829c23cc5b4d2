package tasks

import (
	"fmt"
	"strings"
)

const contextLimit = 5

// MemoryContext renders the user's open tasks for the system prompt.
// Returns "" when there are none.
func (s *Store) MemoryContext(userID, sessionID string) (string, error) {
	open, err := s.List(userID, false)
	if err != nil {
		return "", err
	}
	if len(open) == 0 {
		return "", nil
	}

	overflow := 0
	if len(open) > contextLimit {
		overflow = len(open) - contextLimit
		open = open[:contextLimit]
	}

	var b strings.Builder
	b.WriteString("Open tasks:")
	for _, t := range open {
		b.WriteString("\n- ")
		b.WriteString(t.Title)
		if t.DueAt != nil {
			fmt.Fprintf(&b, " (due %s)", t.DueAt.Format("Jan 2 15:04"))
		}
	}
	if overflow > 0 {
		fmt.Fprintf(&b, "\n- and %d more", overflow)
	}
	return b.String(), nil
}

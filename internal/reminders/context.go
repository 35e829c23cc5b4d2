package reminders

import (
	"fmt"
	"strings"
	"time"
)

// contextHorizon bounds which reminders are worth mentioning in the
// system prompt.
const contextHorizon = 48 * time.Hour

// MemoryContext renders the user's reminders due within the next two
// days. Returns "" when there are none.
func (s *Store) MemoryContext(userID, sessionID string) (string, error) {
	pending, err := s.Pending(userID)
	if err != nil {
		return "", err
	}

	cutoff := time.Now().Add(contextHorizon)
	var b strings.Builder
	count := 0
	for _, r := range pending {
		if r.RemindAt.After(cutoff) {
			break
		}
		if count == 0 {
			b.WriteString("Upcoming reminders:")
		}
		fmt.Fprintf(&b, "\n- %s at %s", r.Message, r.RemindAt.Format("Jan 2 15:04"))
		count++
	}
	return b.String(), nil
}

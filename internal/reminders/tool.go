package reminders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Hezy4/LEO/internal/tools"
)

// RegisterTools adds reminder tools backed by the store.
func RegisterTools(registry *tools.Registry, store *Store, userID string) {
	registry.Register(&tools.Tool{
		Name:        "reminders.create",
		Description: "Schedule a reminder to be delivered at a specific time.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{
					"type":        "string",
					"description": "What to remind the user about",
				},
				"at": map[string]any{
					"type":        "string",
					"description": "When to deliver, RFC 3339 format, e.g. 2026-09-01T09:00:00Z",
				},
			},
			"required": []string{"message", "at"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			message, _ := args["message"].(string)
			if message == "" {
				return "", fmt.Errorf("message is required")
			}
			at, _ := args["at"].(string)
			remindAt, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return "", fmt.Errorf("invalid reminder time %q: %w", at, err)
			}

			r, err := store.Create(userID, message, remindAt)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Reminder set for %s (id %s)", r.RemindAt.Format(time.RFC3339), r.ID), nil
		},
	})

	registry.Register(&tools.Tool{
		Name:        "reminders.list",
		Description: "List the user's upcoming reminders.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			pending, err := store.Pending(userID)
			if err != nil {
				return "", err
			}
			if len(pending) == 0 {
				return "No upcoming reminders.", nil
			}

			type item struct {
				ID      string `json:"id"`
				Message string `json:"message"`
				At      string `json:"at"`
			}
			items := make([]item, 0, len(pending))
			for _, r := range pending {
				items = append(items, item{ID: r.ID, Message: r.Message, At: r.RemindAt.Format(time.RFC3339)})
			}
			out, err := json.Marshal(items)
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	})
}

package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Hezy4/LEO/internal/tools"
)

// RegisterTools adds task management tools backed by the store.
func RegisterTools(registry *tools.Registry, store *Store, userID string) {
	registry.Register(&tools.Tool{
		Name:        "tasks.create",
		Description: "Add a to-do item. Use when the user asks you to remember something they need to do.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "Short task title",
				},
				"notes": map[string]any{
					"type":        "string",
					"description": "Optional details",
				},
				"due": map[string]any{
					"type":        "string",
					"description": "Optional due time in RFC 3339 format, e.g. 2026-09-01T17:00:00Z",
				},
			},
			"required": []string{"title"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			title, _ := args["title"].(string)
			if title == "" {
				return "", fmt.Errorf("title is required")
			}
			notes, _ := args["notes"].(string)

			var dueAt *time.Time
			if due, _ := args["due"].(string); due != "" {
				ts, err := time.Parse(time.RFC3339, due)
				if err != nil {
					return "", fmt.Errorf("invalid due time %q: %w", due, err)
				}
				dueAt = &ts
			}

			t, err := store.Create(userID, title, notes, dueAt)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Created task %q (id %s)", t.Title, t.ID), nil
		},
	})

	registry.Register(&tools.Tool{
		Name:        "tasks.list",
		Description: "List the user's to-do items.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"include_done": map[string]any{
					"type":        "boolean",
					"description": "Include completed tasks (default false)",
				},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			includeDone, _ := args["include_done"].(bool)
			list, err := store.List(userID, includeDone)
			if err != nil {
				return "", err
			}
			if len(list) == 0 {
				return "No tasks.", nil
			}

			type item struct {
				ID    string `json:"id"`
				Title string `json:"title"`
				Notes string `json:"notes,omitempty"`
				Due   string `json:"due,omitempty"`
				Done  bool   `json:"done"`
			}
			items := make([]item, 0, len(list))
			for _, t := range list {
				it := item{ID: t.ID, Title: t.Title, Notes: t.Notes, Done: t.Done}
				if t.DueAt != nil {
					it.Due = t.DueAt.Format(time.RFC3339)
				}
				items = append(items, it)
			}
			out, err := json.Marshal(items)
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	})

	registry.Register(&tools.Tool{
		Name:        "tasks.update_status",
		Description: "Mark a to-do item done or reopen it. Use tasks.list first to find the task id.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id": map[string]any{
					"type":        "string",
					"description": "Task id",
				},
				"status": map[string]any{
					"type":        "string",
					"enum":        []string{"done", "open"},
					"description": "New status",
				},
			},
			"required": []string{"id", "status"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			id, _ := args["id"].(string)
			if id == "" {
				return "", fmt.Errorf("id is required")
			}
			status, _ := args["status"].(string)
			if status != "done" && status != "open" {
				return "", fmt.Errorf("status must be done or open, got %q", status)
			}
			if err := store.SetDone(userID, id, status == "done"); err != nil {
				return "", err
			}
			return fmt.Sprintf("Task marked %s.", status), nil
		},
	})
}

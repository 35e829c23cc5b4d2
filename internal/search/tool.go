package search

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Hezy4/LEO/internal/tools"
)

// RegisterTool adds the web.search tool backed by the manager.
func RegisterTool(r *tools.Registry, mgr *Manager) {
	r.Register(&tools.Tool{
		Name:        "web.search",
		Description: "Search the web. Returns titles, URLs, and snippets.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query string.",
				},
				"count": map[string]any{
					"type":        "integer",
					"description": "Maximum number of results (1-10). Default 5.",
				},
				"language": map[string]any{
					"type":        "string",
					"description": "ISO 639-1 language code for results.",
				},
			},
			"required": []string{"query"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			if query == "" {
				return "", fmt.Errorf("web.search: query is required")
			}

			opts := Options{}
			if count, ok := args["count"].(float64); ok && count > 0 {
				opts.Count = int(count)
			}
			if lang, ok := args["language"].(string); ok {
				opts.Language = lang
			}

			results, err := mgr.Search(ctx, query, opts)
			if err != nil {
				return "", err
			}

			out, err := json.Marshal(results)
			if err != nil {
				return FormatResults(results), nil
			}
			return string(out), nil
		},
	})
}

package fetch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Hezy4/LEO/internal/tools"
)

// RegisterTool adds the web.fetch tool backed by the fetcher.
func RegisterTool(r *tools.Registry, f *Fetcher) {
	r.Register(&tools.Tool{
		Name:        "web.fetch",
		Description: "Fetch a web page and return its readable text content. Use after web.search to read a result.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "The URL to fetch.",
				},
				"max_chars": map[string]any{
					"type":        "integer",
					"description": "Limit on extracted text length.",
				},
			},
			"required": []string{"url"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			rawURL, _ := args["url"].(string)
			if rawURL == "" {
				return "", fmt.Errorf("web.fetch: url is required")
			}
			maxChars := 0
			if mc, ok := args["max_chars"].(float64); ok {
				maxChars = int(mc)
			}

			result, err := f.Fetch(ctx, rawURL, maxChars)
			if err != nil {
				return "", err
			}
			out, err := json.Marshal(result)
			if err != nil {
				return "", fmt.Errorf("marshal result: %w", err)
			}
			return string(out), nil
		},
	})
}

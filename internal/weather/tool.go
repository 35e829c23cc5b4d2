package weather

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Hezy4/LEO/internal/tools"
)

// RegisterTool adds the weather.forecast tool backed by the client.
func RegisterTool(r *tools.Registry, client *Client) {
	r.Register(&tools.Tool{
		Name:        "weather.forecast",
		Description: "Get the US weather forecast for a latitude/longitude from the National Weather Service.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"latitude": map[string]any{
					"type":        "number",
					"description": "Latitude in decimal degrees.",
				},
				"longitude": map[string]any{
					"type":        "number",
					"description": "Longitude in decimal degrees.",
				},
				"periods": map[string]any{
					"type":        "integer",
					"description": "How many forecast periods to return. Default 4.",
				},
			},
			"required": []string{"latitude", "longitude"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			lat, latOK := args["latitude"].(float64)
			lon, lonOK := args["longitude"].(float64)
			if !latOK || !lonOK {
				return "", fmt.Errorf("weather.forecast: latitude and longitude are required")
			}

			limit := 4
			if p, ok := args["periods"].(float64); ok && p > 0 {
				limit = int(p)
			}

			periods, err := client.Forecast(ctx, lat, lon)
			if err != nil {
				return "", err
			}
			if len(periods) > limit {
				periods = periods[:limit]
			}

			out, err := json.Marshal(periods)
			if err != nil {
				return "", fmt.Errorf("marshal forecast: %w", err)
			}
			return string(out), nil
		},
	})
}

package homeassistant

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Hezy4/LEO/internal/tools"
)

// RegisterTools adds the Home Assistant tools to the registry.
func RegisterTools(r *tools.Registry, client *Client) {
	r.Register(&tools.Tool{
		Name:        "homeassistant.set_lights",
		Description: "Turn lights on or off, optionally with brightness. Targets an area (room) or a specific light entity.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{
					"type":        "string",
					"description": "turn_on or turn_off",
				},
				"area": map[string]any{
					"type":        "string",
					"description": "Area name, e.g. office, kitchen",
				},
				"entity_id": map[string]any{
					"type":        "string",
					"description": "Specific light entity, e.g. light.desk_lamp",
				},
				"brightness_pct": map[string]any{
					"type":        "integer",
					"description": "Brightness 1-100, only with turn_on",
				},
			},
			"required": []string{"action"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return handleSetLights(ctx, client, args)
		},
	})

	r.Register(&tools.Tool{
		Name:        "homeassistant.run_scene",
		Description: "Activate a Home Assistant scene by entity ID.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"entity_id": map[string]any{
					"type":        "string",
					"description": "Scene entity, e.g. scene.movie_night",
				},
			},
			"required": []string{"entity_id"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			entityID, _ := args["entity_id"].(string)
			if entityID == "" {
				return "", fmt.Errorf("entity_id is required")
			}
			if err := client.CallService(ctx, "scene", "turn_on", map[string]any{"entity_id": entityID}); err != nil {
				return "", err
			}
			return fmt.Sprintf("activated %s", entityID), nil
		},
	})

	r.Register(&tools.Tool{
		Name:        "homeassistant.get_state",
		Description: "Get the current state of a Home Assistant entity. Use to check if lights are on, doors are open, temperatures, etc.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"entity_id": map[string]any{
					"type":        "string",
					"description": "The entity ID (e.g. light.living_room, sensor.temperature)",
				},
			},
			"required": []string{"entity_id"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			entityID, _ := args["entity_id"].(string)
			if entityID == "" {
				return "", fmt.Errorf("entity_id is required")
			}
			state, err := client.GetState(ctx, entityID)
			if err != nil {
				return "", err
			}
			out, err := json.Marshal(state)
			if err != nil {
				return "", fmt.Errorf("marshal state: %w", err)
			}
			return string(out), nil
		},
	})

	r.Register(&tools.Tool{
		Name:        "homeassistant.list_entities",
		Description: "List entities in a domain (e.g. all lights, all scenes). Use to discover what's available.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"domain": map[string]any{
					"type":        "string",
					"description": "The domain to list (e.g. light, scene, sensor)",
				},
			},
			"required": []string{"domain"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			domain, _ := args["domain"].(string)
			entities, err := client.GetEntities(ctx, domain)
			if err != nil {
				return "", err
			}
			if len(entities) > 50 {
				entities = entities[:50]
			}
			out, err := json.Marshal(entities)
			if err != nil {
				return "", fmt.Errorf("marshal entities: %w", err)
			}
			return string(out), nil
		},
	})
}

func handleSetLights(ctx context.Context, client *Client, args map[string]any) (string, error) {
	action, _ := args["action"].(string)
	if action != "turn_on" && action != "turn_off" {
		return "", fmt.Errorf("action must be turn_on or turn_off, got %q", action)
	}

	data := map[string]any{}
	target := ""
	if area, ok := args["area"].(string); ok && area != "" {
		data["area_id"] = area
		target = area
	}
	if entityID, ok := args["entity_id"].(string); ok && entityID != "" {
		data["entity_id"] = entityID
		target = entityID
	}
	if target == "" {
		return "", fmt.Errorf("area or entity_id is required")
	}

	if action == "turn_on" {
		// JSON numbers arrive as float64.
		if pct, ok := args["brightness_pct"].(float64); ok && pct > 0 {
			data["brightness_pct"] = int(pct)
		}
	}

	if err := client.CallService(ctx, "light", action, data); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s", action, target), nil
}

package agent

import (
	"encoding/json"
	"strings"

	"github.com/Hezy4/LEO/internal/llm"
)

// toolRequest is one tool invocation requested by the model.
type toolRequest struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// classification is the parsed form of one model response: either a
// plain reply or an ordered batch of tool calls.
type classification struct {
	Reply string
	Calls []toolRequest
}

// wireMessage covers the three recognized JSON shapes a model may emit
// in its text content.
type wireMessage struct {
	Type      string         `json:"type"`
	Text      string         `json:"text"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
	Calls     []toolRequest  `json:"calls"`
}

// classify decides what a model response asks for. Native tool calls
// win over anything in the text content. Text content is checked for
// the JSON tool-call protocol; anything malformed or unrecognized
// degrades to a plain reply carrying the raw text, never an error.
func classify(msg *llm.Message) classification {
	if len(msg.ToolCalls) > 0 {
		calls := make([]toolRequest, len(msg.ToolCalls))
		for i, tc := range msg.ToolCalls {
			calls[i] = toolRequest{Tool: tc.Function.Name, Arguments: tc.Function.Arguments}
		}
		return classification{Calls: calls}
	}

	raw := msg.Content
	text := stripFences(raw)
	if !strings.HasPrefix(strings.TrimSpace(text), "{") {
		return classification{Reply: raw}
	}

	var wire wireMessage
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		return classification{Reply: raw}
	}

	switch wire.Type {
	case "reply":
		return classification{Reply: wire.Text}
	case "tool_call":
		if wire.Tool == "" {
			return classification{Reply: raw}
		}
		return classification{Calls: []toolRequest{{Tool: wire.Tool, Arguments: wire.Arguments}}}
	case "multi_tool_call":
		var calls []toolRequest
		for _, c := range wire.Calls {
			if c.Tool == "" {
				continue
			}
			calls = append(calls, c)
		}
		if len(calls) == 0 {
			return classification{Reply: raw}
		}
		return classification{Calls: calls}
	default:
		return classification{Reply: raw}
	}
}

// stripFences removes a surrounding markdown code fence. Models often
// wrap the tool-call JSON in ```json ... ``` despite instructions.
func stripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the language tag on the opening fence line.
		first := strings.TrimSpace(trimmed[:idx])
		if len(first) <= 10 && !strings.Contains(first, "{") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

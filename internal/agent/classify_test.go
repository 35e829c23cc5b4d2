package agent

import (
	"testing"

	"github.com/Hezy4/LEO/internal/llm"
)

func TestClassifyShapes(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantReply string
		wantCalls []string
	}{
		{
			name:      "plain reply shape",
			content:   `{"type":"reply","text":"hi"}`,
			wantReply: "hi",
		},
		{
			name:      "single tool call",
			content:   `{"type":"tool_call","tool":"weather.forecast","arguments":{"lat":30.2}}`,
			wantCalls: []string{"weather.forecast"},
		},
		{
			name:      "multi tool call preserves order",
			content:   `{"type":"multi_tool_call","calls":[{"tool":"b.second","arguments":{}},{"tool":"a.first","arguments":{}}]}`,
			wantCalls: []string{"b.second", "a.first"},
		},
		{
			name:      "fenced tool call",
			content:   "```json\n{\"type\":\"tool_call\",\"tool\":\"tasks.create\",\"arguments\":{\"title\":\"x\"}}\n```",
			wantCalls: []string{"tasks.create"},
		},
		{
			name:      "prose passthrough",
			content:   "Sure, turning on the lights now.",
			wantReply: "Sure, turning on the lights now.",
		},
		{
			name:      "malformed JSON passthrough",
			content:   `{"type":"tool_call","tool":`,
			wantReply: `{"type":"tool_call","tool":`,
		},
		{
			name:      "unknown type passthrough",
			content:   `{"type":"thought","text":"hmm"}`,
			wantReply: `{"type":"thought","text":"hmm"}`,
		},
		{
			name:      "tool call without tool name passthrough",
			content:   `{"type":"tool_call","arguments":{}}`,
			wantReply: `{"type":"tool_call","arguments":{}}`,
		},
		{
			name:      "empty multi tool call passthrough",
			content:   `{"type":"multi_tool_call","calls":[]}`,
			wantReply: `{"type":"multi_tool_call","calls":[]}`,
		},
		{
			name:      "unrelated JSON passthrough",
			content:   `{"temperature": 72}`,
			wantReply: `{"temperature": 72}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(&llm.Message{Role: "assistant", Content: tt.content})
			if got.Reply != tt.wantReply {
				t.Errorf("reply = %q, want %q", got.Reply, tt.wantReply)
			}
			if len(got.Calls) != len(tt.wantCalls) {
				t.Fatalf("calls = %d, want %d", len(got.Calls), len(tt.wantCalls))
			}
			for i, want := range tt.wantCalls {
				if got.Calls[i].Tool != want {
					t.Errorf("calls[%d] = %q, want %q", i, got.Calls[i].Tool, want)
				}
			}
		})
	}
}

func TestClassifyNativeToolCallsWin(t *testing.T) {
	msg := &llm.Message{Role: "assistant", Content: "checking the weather"}
	var tc llm.ToolCall
	tc.Function.Name = "weather.forecast"
	tc.Function.Arguments = map[string]any{"lat": 30.2}
	msg.ToolCalls = []llm.ToolCall{tc}

	got := classify(msg)
	if len(got.Calls) != 1 || got.Calls[0].Tool != "weather.forecast" {
		t.Fatalf("calls = %+v", got.Calls)
	}
	if got.Reply != "" {
		t.Errorf("reply = %q, want empty when native tool calls present", got.Reply)
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{`{"a":1}`, `{"a":1}`},
		{"  plain text  ", "plain text"},
	}
	for _, tt := range tests {
		if got := stripFences(tt.in); got != tt.want {
			t.Errorf("stripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// Package agent implements the core dispatch loop: compile persona,
// call the model, execute requested tools, and commit the turn's
// interaction effect.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Hezy4/LEO/internal/episodic"
	"github.com/Hezy4/LEO/internal/llm"
	"github.com/Hezy4/LEO/internal/persona"
	"github.com/Hezy4/LEO/internal/prompts"
	"github.com/Hezy4/LEO/internal/session"
	"github.com/Hezy4/LEO/internal/tools"
)

// Action statuses reported back to the caller.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// ModelClient is the subset of the LLM client the loop needs. Defined
// as an interface for testability.
type ModelClient interface {
	Chat(ctx context.Context, messages []llm.Message, toolSpecs []map[string]any) (*llm.ChatResponse, error)
}

// Action is one tool execution recorded during a turn.
type Action struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Status    string         `json:"status"`
	Result    string         `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Response is the outcome of one completed turn.
type Response struct {
	Reply   string   `json:"reply"`
	Actions []Action `json:"actions"`
}

// Config bounds the loop.
type Config struct {
	// MaxRounds caps how many times the model is re-invoked after tool
	// execution before the turn is force-finalized.
	MaxRounds int
	// HistoryLimit is how many recent messages of the session log are
	// sent to the model.
	HistoryLimit int
}

// Loop is the dispatch state machine for one deployment. It is safe
// for concurrent use; per-user store writes are serialized by the
// persona layer.
type Loop struct {
	logger   *slog.Logger
	model    ModelClient
	registry *tools.Registry
	sessions *session.Store
	personas *persona.Store
	moods    *persona.Tracker
	compiler *persona.Compiler
	episodes *episodic.Store

	providers    []ContextProvider
	maxRounds    int
	historyLimit int

	lastTurn atomic.Int64 // unix nanos of the last finalized turn
}

// NewLoop creates a dispatch loop. episodes may be nil to disable
// episodic recording.
func NewLoop(logger *slog.Logger, model ModelClient, registry *tools.Registry,
	sessions *session.Store, personas *persona.Store, moods *persona.Tracker,
	episodes *episodic.Store, cfg Config) *Loop {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 3
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	l := &Loop{
		logger:       logger,
		model:        model,
		registry:     registry,
		sessions:     sessions,
		personas:     personas,
		moods:        moods,
		compiler:     persona.NewCompiler(personas, moods),
		episodes:     episodes,
		maxRounds:    cfg.MaxRounds,
		historyLimit: cfg.HistoryLimit,
	}
	if episodes != nil {
		l.AddContextProvider(episodicContext{store: episodes})
	}
	return l
}

// SetDirectives forwards a standing-directive source (the preference
// store) to the persona compiler.
func (l *Loop) SetDirectives(src persona.DirectiveSource) {
	l.compiler.SetDirectives(src)
}

// toolResult is the shape fed back to the model after each execution.
type toolResult struct {
	Tool   string `json:"tool"`
	Status string `json:"status"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Run executes one turn for a user message. The caller always gets
// either a reply or an error, never both empty. Model transport
// failures abort the turn before any interaction effect is committed.
func (l *Loop) Run(ctx context.Context, userID, sessionID, userText string) (*Response, error) {
	started := time.Now()
	l.logger.Info("turn started", "user", userID, "session", sessionID)

	if _, err := l.sessions.Ensure(sessionID, userID); err != nil {
		return nil, err
	}

	snapshot, err := l.compiler.Compile(userID, sessionID, started)
	if err != nil {
		return nil, fmt.Errorf("compile persona: %w", err)
	}
	if err := l.sessions.SetPersonaVersion(sessionID, snapshot.SettingsVersion); err != nil {
		l.logger.Warn("persona version not recorded", "session", sessionID, "error", err)
	}

	if _, err := l.sessions.Append(sessionID, session.RoleUser, userText); err != nil {
		return nil, err
	}

	memoryContext := l.gatherContext(userID, sessionID)

	history, err := l.sessions.Recent(sessionID, l.historyLimit)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{
		Role:    "system",
		Content: prompts.SystemPrompt(snapshot.Text, memoryContext, l.registry.Names()),
	})
	for _, m := range history {
		role := m.Role
		if role == session.RoleTool {
			role = "tool"
		}
		messages = append(messages, llm.Message{Role: role, Content: m.Content})
	}

	var actions []Action
	var lastText string
	toolFailures := 0

	for round := 1; round <= l.maxRounds; round++ {
		resp, err := l.model.Chat(ctx, messages, l.registry.List())
		if err != nil {
			l.logger.Error("model call failed", "user", userID, "round", round, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		}

		cls := classify(&resp.Message)
		if len(cls.Calls) == 0 {
			l.logger.Info("turn finalized", "user", userID, "rounds", round,
				"actions", len(actions), "elapsed", time.Since(started))
			return l.finalize(userID, sessionID, userText, cls.Reply, actions, toolFailures)
		}
		if len(resp.Message.ToolCalls) > 0 && resp.Message.Content != "" {
			// Prose alongside native tool calls is the best fallback
			// text if the round limit forces finalization.
			lastText = resp.Message.Content
		}

		messages = append(messages, resp.Message)
		for _, call := range cls.Calls {
			// A dispatched tool always runs to completion, even if the
			// caller gave up mid-turn.
			result, execErr := l.registry.Execute(context.WithoutCancel(ctx), call.Tool, call.Arguments)

			action := Action{Tool: call.Tool, Arguments: call.Arguments}
			fed := toolResult{Tool: call.Tool}
			if execErr != nil {
				action.Status = StatusFailure
				action.Error = execErr.Error()
				fed.Status = StatusFailure
				fed.Error = execErr.Error()
				toolFailures++
				l.logger.Warn("tool failed", "tool", call.Tool, "error", execErr)
			} else {
				action.Status = StatusSuccess
				action.Result = result
				fed.Status = StatusSuccess
				fed.Result = result
				l.logger.Debug("tool executed", "tool", call.Tool)
			}
			actions = append(actions, action)

			payload, _ := json.Marshal(fed)
			if _, err := l.sessions.Append(sessionID, session.RoleTool, string(payload)); err != nil {
				return nil, err
			}
			messages = append(messages, llm.Message{Role: "tool", Content: string(payload)})

			if l.episodes != nil {
				args, _ := json.Marshal(call.Arguments)
				if err := l.episodes.RecordToolInvocation(userID, sessionID, call.Tool,
					string(args), action.Status, action.Result); err != nil {
					l.logger.Warn("tool invocation not logged", "tool", call.Tool, "error", err)
				}
			}
		}

		// Cooperative cancellation point between rounds. Results of
		// the batch above are already persisted but not fed further.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	l.logger.Warn("dispatch depth exceeded", "user", userID, "session", sessionID,
		"rounds", l.maxRounds)
	return l.finalize(userID, sessionID, userText, lastText, actions, toolFailures)
}

// finalize commits the turn: interaction effect to the trait and mood
// stores, assistant reply to the session log, episode to memory. Store
// locks are only taken here, never across a model or tool call.
func (l *Loop) finalize(userID, sessionID, userText, reply string, actions []Action, toolFailures int) (*Response, error) {
	if reply == "" {
		reply = prompts.EmptyResponseFallback
	}

	outcome := persona.TurnOutcome{
		Sentiment:    persona.ClassifySentiment(userText),
		ToolFailures: toolFailures,
	}
	traitDeltas, moodDelta, err := l.compiler.InteractionEffect(userID, outcome)
	if err != nil {
		l.logger.Error("interaction effect not computed", "user", userID, "error", err)
	} else {
		for _, td := range traitDeltas {
			if _, err := l.personas.ApplyUpdate(userID, td.Name, td.Coords, td.Importance); err != nil {
				l.logger.Error("trait update failed", "user", userID, "trait", td.Name, "error", err)
			}
		}
		if _, err := l.moods.TickAndApply(userID, "", moodDelta, time.Now()); err != nil {
			l.logger.Error("mood update failed", "user", userID, "error", err)
		}
	}

	if _, err := l.sessions.Append(sessionID, session.RoleAssistant, reply); err != nil {
		return nil, err
	}

	if l.episodes != nil {
		if _, err := l.episodes.RecordTurn(userID, sessionID, userText, reply); err != nil {
			l.logger.Warn("episode not recorded", "user", userID, "error", err)
		}
	}

	if actions == nil {
		actions = []Action{}
	}
	l.lastTurn.Store(time.Now().UnixNano())
	return &Response{Reply: reply, Actions: actions}, nil
}

// LastTurn reports when the most recent turn finalized, zero if none
// has.
func (l *Loop) LastTurn() time.Time {
	ns := l.lastTurn.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

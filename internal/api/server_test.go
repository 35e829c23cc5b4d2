package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Hezy4/LEO/internal/agent"
	"github.com/Hezy4/LEO/internal/llm"
	"github.com/Hezy4/LEO/internal/persona"
	"github.com/Hezy4/LEO/internal/session"
	"github.com/Hezy4/LEO/internal/tools"
)

// scriptModel replays scripted chat responses and reports a fixed
// model name. pingErr controls the status probe.
type scriptModel struct {
	responses []llm.Message
	chatErr   error
	pingErr   error
	calls     int
}

func (m *scriptModel) Chat(ctx context.Context, messages []llm.Message, toolSpecs []map[string]any) (*llm.ChatResponse, error) {
	if m.chatErr != nil {
		return nil, m.chatErr
	}
	idx := m.calls
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	m.calls++
	return &llm.ChatResponse{Message: m.responses[idx]}, nil
}

func (m *scriptModel) Ping(ctx context.Context) error { return m.pingErr }

func (m *scriptModel) Model() string { return "test-model" }

func reply(text string) llm.Message {
	return llm.Message{Role: "assistant", Content: fmt.Sprintf(`{"type":"reply","text":%q}`, text)}
}

func newTestServer(t *testing.T, model *scriptModel, registry *tools.Registry) *Server {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "leo.db")+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	personas, err := persona.NewStoreWithDB(db)
	if err != nil {
		t.Fatalf("persona store: %v", err)
	}
	for _, user := range []string{defaultUserID, "henry"} {
		if err := personas.Bootstrap(&persona.Settings{
			UserID:          user,
			PersonalityAxes: []string{"warmth"},
			MoodAxes:        []string{"valence"},
			MoodHalfLife:    time.Hour,
			ClampMin:        -1,
			ClampMax:        1,
			TopTraits:       5,
		}, []persona.Trait{
			{Name: "curious", Coords: []float64{0.5}, Importance: 0.9, Plasticity: 0.5},
		}); err != nil {
			t.Fatalf("bootstrap %s: %v", user, err)
		}
	}
	moods, err := persona.NewTracker(personas)
	if err != nil {
		t.Fatalf("tracker: %v", err)
	}
	sessions, err := session.NewStoreWithDB(db)
	if err != nil {
		t.Fatalf("session store: %v", err)
	}

	if registry == nil {
		registry = tools.NewRegistry()
	}
	logger := slog.New(slog.DiscardHandler)
	loop := agent.NewLoop(logger, model, registry, sessions, personas, moods, nil, agent.Config{})
	return NewServer("", 0, loop, model, registry, sessions, logger)
}

func postChat(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatRoundTrip(t *testing.T) {
	srv := newTestServer(t, &scriptModel{responses: []llm.Message{reply("hello henry")}}, nil)
	h := srv.Handler()

	rec := postChat(t, h, `{"user_id": "henry", "message": "hi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Reply != "hello henry" {
		t.Errorf("reply = %q", resp.Reply)
	}
	if resp.UserID != "henry" {
		t.Errorf("user_id = %q", resp.UserID)
	}
	if resp.SessionID == "" {
		t.Error("session_id not generated")
	}
	if !strings.Contains(rec.Body.String(), `"actions":[]`) {
		t.Errorf("actions should serialize as an empty array, body %s", rec.Body.String())
	}
}

func TestChatSessionContinuity(t *testing.T) {
	srv := newTestServer(t, &scriptModel{responses: []llm.Message{reply("ok")}}, nil)
	h := srv.Handler()

	rec := postChat(t, h, `{"session_id": "s-1", "message": "first"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	rec = postChat(t, h, `{"session_id": "s-1", "message": "second"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SessionID != "s-1" {
		t.Errorf("session_id = %q, want s-1", resp.SessionID)
	}
	if resp.UserID != defaultUserID {
		t.Errorf("user_id = %q, want %q", resp.UserID, defaultUserID)
	}
}

func TestChatValidation(t *testing.T) {
	srv := newTestServer(t, &scriptModel{responses: []llm.Message{reply("ok")}}, nil)
	h := srv.Handler()

	for name, body := range map[string]string{
		"empty message": `{"user_id": "henry"}`,
		"bad json":      `{not json`,
	} {
		rec := postChat(t, h, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, rec.Code)
		}
	}
}

func TestChatUnknownUser(t *testing.T) {
	srv := newTestServer(t, &scriptModel{responses: []llm.Message{reply("ok")}}, nil)

	rec := postChat(t, srv.Handler(), `{"user_id": "stranger", "message": "hi"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "no persona") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestChatModelUnavailable(t *testing.T) {
	srv := newTestServer(t, &scriptModel{chatErr: errors.New("connection refused")}, nil)

	rec := postChat(t, srv.Handler(), `{"message": "hi"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	registry := tools.NewRegistry()
	registry.Register(&tools.Tool{
		Name:        "tasks.list",
		Description: "List tasks",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "", nil
		},
	})

	model := &scriptModel{responses: []llm.Message{reply("ok")}}
	srv := newTestServer(t, model, registry)
	srv.SetMoodSource(func(ctx context.Context) string { return "valence=0.200" })
	h := srv.Handler()

	rec := postChat(t, h, `{"message": "hi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d", rec.Code)
	}

	req := httptest.NewRequest("GET", "/status", nil)
	statusRec := httptest.NewRecorder()
	h.ServeHTTP(statusRec, req)
	if statusRec.Code != http.StatusOK {
		t.Fatalf("status = %d", statusRec.Code)
	}

	var resp StatusResponse
	if err := json.Unmarshal(statusRec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q", resp.Status)
	}
	if !resp.LLM.Healthy || resp.LLM.Detail != "test-model" {
		t.Errorf("llm = %+v", resp.LLM)
	}
	if !resp.Memory.Healthy {
		t.Errorf("memory = %+v", resp.Memory)
	}
	if len(resp.Tools) != 1 || resp.Tools[0] != "tasks.list" {
		t.Errorf("tools = %v", resp.Tools)
	}
	if resp.ActiveSessions != 1 {
		t.Errorf("active_sessions = %d, want 1", resp.ActiveSessions)
	}
	if resp.Mood != "valence=0.200" {
		t.Errorf("mood = %q", resp.Mood)
	}
	if resp.HomeAssistant != nil {
		t.Errorf("homeassistant should be omitted when not configured, got %+v", resp.HomeAssistant)
	}
}

func TestStatusDegraded(t *testing.T) {
	model := &scriptModel{
		responses: []llm.Message{reply("ok")},
		pingErr:   errors.New("dial tcp: connection refused"),
	}
	srv := newTestServer(t, model, nil)

	req := httptest.NewRequest("GET", "/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("status = %q, want degraded", resp.Status)
	}
	if resp.LLM.Healthy {
		t.Error("llm should be unhealthy")
	}
	if resp.LLM.Error == "" {
		t.Error("llm error missing")
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &scriptModel{responses: []llm.Message{reply("ok")}}, nil)

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestRootAndNotFound(t *testing.T) {
	srv := newTestServer(t, &scriptModel{responses: []llm.Message{reply("ok")}}, nil)
	h := srv.Handler()

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("root status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "LEO") {
		t.Errorf("root body = %s", rec.Body.String())
	}

	req = httptest.NewRequest("GET", "/nope", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d", rec.Code)
	}
}

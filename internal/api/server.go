// Package api implements the HTTP surface: a chat endpoint that drives
// the dispatch loop, a status endpoint for health reporting, and a
// liveness probe.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Hezy4/LEO/internal/agent"
	"github.com/Hezy4/LEO/internal/buildinfo"
	"github.com/Hezy4/LEO/internal/homeassistant"
	"github.com/Hezy4/LEO/internal/persona"
	"github.com/Hezy4/LEO/internal/session"
	"github.com/Hezy4/LEO/internal/tools"
)

// defaultUserID owns turns that arrive without an explicit user.
const defaultUserID = "default"

// activeWindow is how far back a session's last activity may be for it
// to count as active in status reports.
const activeWindow = time.Hour

// ModelStatus is the subset of the LLM client the status endpoint
// probes.
type ModelStatus interface {
	Ping(ctx context.Context) error
	Model() string
}

// Pinger is a reachability probe for an optional backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the HTTP API server.
type Server struct {
	address  string
	port     int
	loop     *agent.Loop
	model    ModelStatus
	registry *tools.Registry
	sessions *session.Store
	logger   *slog.Logger
	server   *http.Server

	homeAssistant Pinger
	watcher       *homeassistant.StateWatcher
	moodSummary   func(ctx context.Context) string
}

// NewServer creates a new API server.
func NewServer(address string, port int, loop *agent.Loop, model ModelStatus,
	registry *tools.Registry, sessions *session.Store, logger *slog.Logger) *Server {
	return &Server{
		address:  address,
		port:     port,
		loop:     loop,
		model:    model,
		registry: registry,
		sessions: sessions,
		logger:   logger,
	}
}

// SetHomeAssistant configures the Home Assistant probe used by the
// status endpoint.
func (s *Server) SetHomeAssistant(ha Pinger) {
	s.homeAssistant = ha
}

// SetStateWatcher configures the watcher whose recent entity changes
// are included in status reports.
func (s *Server) SetStateWatcher(w *homeassistant.StateWatcher) {
	s.watcher = w
}

// SetMoodSource configures a callback that renders the current mood
// for status reports.
func (s *Server) SetMoodSource(f func(ctx context.Context) string) {
	s.moodSummary = f
}

// Handler builds the route table. Exposed so tests can drive the
// server without a listening socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /", s.handleRoot)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // Model turns can be slow
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    code,
		},
	}, s.logger)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "LEO",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ChatResponse is the reply to POST /chat. Actions is always present,
// empty when the turn executed no tools.
type ChatResponse struct {
	Reply     string         `json:"reply"`
	Actions   []agent.Action `json:"actions"`
	UserID    string         `json:"user_id"`
	SessionID string         `json:"session_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		s.errorResponse(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.UserID == "" {
		req.UserID = defaultUserID
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	resp, err := s.loop.Run(r.Context(), req.UserID, req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, agent.ErrModelUnavailable) {
			s.logger.Error("model unavailable", "error", err)
			s.errorResponse(w, http.StatusServiceUnavailable, "model backend unavailable")
			return
		}
		if errors.Is(err, persona.ErrNoSettings) {
			s.errorResponse(w, http.StatusBadRequest, "no persona configured for user "+req.UserID)
			return
		}
		s.logger.Error("dispatch loop failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "dispatch error: "+err.Error())
		return
	}

	actions := resp.Actions
	if actions == nil {
		actions = []agent.Action{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, ChatResponse{
		Reply:     resp.Reply,
		Actions:   actions,
		UserID:    req.UserID,
		SessionID: req.SessionID,
	}, s.logger)
}

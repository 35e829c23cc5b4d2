package api

import (
	"context"
	"net/http"
	"time"

	"github.com/Hezy4/LEO/internal/buildinfo"
	"github.com/Hezy4/LEO/internal/homeassistant"
)

// ComponentHealth reports one backend's reachability.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Status         string                      `json:"status"`
	Build          map[string]string           `json:"build"`
	UptimeSec      int64                       `json:"uptime_sec"`
	LLM            ComponentHealth             `json:"llm"`
	Memory         ComponentHealth             `json:"memory"`
	Tools          []string                    `json:"tools"`
	ActiveSessions int                         `json:"active_sessions"`
	HomeAssistant  *ComponentHealth            `json:"homeassistant,omitempty"`
	RecentChanges  []homeassistant.StateChange `json:"recent_changes,omitempty"`
	Mood           string                      `json:"mood,omitempty"`
}

// statusProbeTimeout bounds each backend probe so a hung dependency
// cannot stall the whole report.
const statusProbeTimeout = 5 * time.Second

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), statusProbeTimeout)
	defer cancel()

	resp := StatusResponse{
		Status:    "ok",
		Build:     buildinfo.Info(),
		UptimeSec: int64(buildinfo.Uptime().Seconds()),
		Tools:     s.registry.Names(),
	}

	resp.LLM = ComponentHealth{Healthy: true, Detail: s.model.Model()}
	if err := s.model.Ping(ctx); err != nil {
		resp.LLM.Healthy = false
		resp.LLM.Error = err.Error()
		resp.Status = "degraded"
	}

	resp.Memory = ComponentHealth{Healthy: true}
	if err := s.sessions.Ping(ctx); err != nil {
		resp.Memory.Healthy = false
		resp.Memory.Error = err.Error()
		resp.Status = "degraded"
	}
	if n, err := s.sessions.ActiveCount(time.Now().Add(-activeWindow)); err == nil {
		resp.ActiveSessions = n
	}

	if s.homeAssistant != nil {
		ha := ComponentHealth{Healthy: true}
		if err := s.homeAssistant.Ping(ctx); err != nil {
			ha.Healthy = false
			ha.Error = err.Error()
		}
		resp.HomeAssistant = &ha
	}
	if s.watcher != nil {
		resp.RecentChanges = s.watcher.Recent()
	}
	if s.moodSummary != nil {
		resp.Mood = s.moodSummary(ctx)
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp, s.logger)
}

// LEO is a personal assistant backend with persistent persona state.
//
// It exposes a small HTTP API (chat, status, health), drives a local
// Ollama model through a bounded tool-dispatch loop, and keeps every
// piece of long-lived state (persona traits, moods, sessions, tasks,
// reminders, preferences) in a single SQLite database. Configuration
// is loaded from a YAML file discovered automatically (see
// [config.DefaultSearchPaths]).
//
// Usage:
//
//	leo serve              Start the API server
//	leo init [dir]         Initialize a working directory with defaults
//	leo version            Print version and build information
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Hezy4/LEO/internal/agent"
	"github.com/Hezy4/LEO/internal/api"
	"github.com/Hezy4/LEO/internal/buildinfo"
	"github.com/Hezy4/LEO/internal/config"
	"github.com/Hezy4/LEO/internal/defaults"
	"github.com/Hezy4/LEO/internal/email"
	"github.com/Hezy4/LEO/internal/episodic"
	"github.com/Hezy4/LEO/internal/fetch"
	"github.com/Hezy4/LEO/internal/homeassistant"
	"github.com/Hezy4/LEO/internal/llm"
	"github.com/Hezy4/LEO/internal/mqtt"
	"github.com/Hezy4/LEO/internal/persona"
	"github.com/Hezy4/LEO/internal/prefs"
	"github.com/Hezy4/LEO/internal/reminders"
	"github.com/Hezy4/LEO/internal/search"
	"github.com/Hezy4/LEO/internal/session"
	"github.com/Hezy4/LEO/internal/tasks"
	"github.com/Hezy4/LEO/internal/tools"
	"github.com/Hezy4/LEO/internal/weather"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for database/sql
)

// defaultUser owns state created outside an explicit user context:
// tool writes, the seeded persona, and turns that arrive without a
// user_id.
const defaultUser = "default"

// main constructs the OS-level environment and delegates to [run] so
// the full lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run parses arguments by hand to avoid the flag package's global
// state, then dispatches to the requested subcommand.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "LEO - Personal Assistant Backend")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: leo [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the API server")
	fmt.Fprintln(w, "  init [dir]   Initialize working directory with defaults (default: .)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	return nil
}

func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// runInit seeds a working directory with the example config and
// persona files. Existing files are never overwritten.
func runInit(w io.Writer, dir string) error {
	if err := os.MkdirAll(filepath.Join(dir, "var"), 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	files := []struct {
		name string
		data []byte
	}{
		{"config.yaml", defaults.ConfigYAML},
		{"persona.yaml", defaults.PersonaYAML},
	}
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(w, "skipping %s (already exists)\n", path)
			continue
		}
		if err := os.WriteFile(path, f.data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Fprintf(w, "wrote %s\n", path)
	}

	fmt.Fprintln(w, "edit config.yaml, then run: leo serve")
	return nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting LEO",
		"version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfgPath, err := config.FindConfig(configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = newLogger(stdout, level)
	}
	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"model", cfg.Ollama.Model,
		"ollama_url", cfg.Ollama.URL,
	)

	// All persistent state shares one SQLite database.
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create data directory %s: %w", dataDir, err)
	}
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	defer db.Close()

	personas, err := persona.NewStoreWithDB(db)
	if err != nil {
		return fmt.Errorf("persona store: %w", err)
	}
	moods, err := persona.NewTracker(personas)
	if err != nil {
		return fmt.Errorf("mood tracker: %w", err)
	}
	sessions, err := session.NewStoreWithDB(db)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	episodes, err := episodic.NewStoreWithDB(db)
	if err != nil {
		return fmt.Errorf("episodic store: %w", err)
	}
	taskStore, err := tasks.NewStoreWithDB(db)
	if err != nil {
		return fmt.Errorf("task store: %w", err)
	}
	reminderStore, err := reminders.NewStoreWithDB(db)
	if err != nil {
		return fmt.Errorf("reminder store: %w", err)
	}
	prefStore, err := prefs.NewStoreWithDB(db)
	if err != nil {
		return fmt.Errorf("preference store: %w", err)
	}
	logger.Info("database opened", "path", cfg.DBPath)

	personaDefaults := persona.FileDefaults{
		TopTraits:    cfg.Persona.TopTraits,
		MoodHalfLife: time.Duration(cfg.Persona.MoodHalfLifeSec) * time.Second,
	}
	if err := seedDefaultPersona(personas, personaDefaults, logger); err != nil {
		return err
	}

	model := llm.NewClient(cfg.Ollama.URL, cfg.Ollama.Model,
		time.Duration(cfg.Ollama.TimeoutSec)*time.Second)

	registry := tools.NewRegistry()
	tasks.RegisterTools(registry, taskStore, defaultUser)
	reminders.RegisterTools(registry, reminderStore, defaultUser)
	fetch.RegisterTool(registry, fetch.New())
	weather.RegisterTool(registry, weather.NewClient(""))

	// Home Assistant is optional but central. Without it the
	// lights/scene tools are unavailable and LEO runs as a
	// general-purpose assistant.
	var ha *homeassistant.Client
	var haWS *homeassistant.WSClient
	var watcher *homeassistant.StateWatcher
	if cfg.HomeAssistant.Configured() {
		ha = homeassistant.NewClient(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token, logger)
		homeassistant.RegisterTools(registry, ha)

		haWS = homeassistant.NewWSClient(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token, logger)
		haWS.Track("state_changed")
		watcher = homeassistant.NewStateWatcher(haWS.Events(), nil, nil, 50, logger)
		go watcher.Run(ctx)
		// Maintain dials, subscribes, and redials with backoff for the
		// life of the process.
		go haWS.Maintain(ctx)
		defer haWS.Close()
	} else {
		logger.Warn("Home Assistant not configured, home control tools disabled")
	}

	if cfg.Search.Configured() {
		mgr := search.NewManager(cfg.Search.Provider)
		if cfg.Search.SearxNGURL != "" {
			mgr.Register(search.NewSearXNG(cfg.Search.SearxNGURL))
		}
		if cfg.Search.BraveAPIKey != "" {
			mgr.Register(search.NewBrave(cfg.Search.BraveAPIKey))
		}
		search.RegisterTool(registry, mgr)
	}

	if cfg.Email.Configured() {
		mailbox := email.NewClient(cfg.Email.IMAP, logger)
		defer mailbox.Close()
		email.RegisterTools(registry, email.NewService(cfg.Email, mailbox))
		logger.Info("email configured", "imap_host", cfg.Email.IMAP.Host, "can_send", cfg.Email.CanSend())
	}

	loop := agent.NewLoop(logger, model, registry, sessions, personas, moods, episodes, agent.Config{
		MaxRounds:    cfg.Dispatch.MaxRounds,
		HistoryLimit: cfg.Dispatch.HistoryLimit,
	})
	loop.SetDirectives(prefStore)
	loop.AddContextProvider(taskStore)
	loop.AddContextProvider(reminderStore)

	moodSummary := func(ctx context.Context) string {
		return describeMood(personas, moods, defaultUser)
	}

	dispatcher := reminders.NewDispatcher(logger, reminderStore, func(ctx context.Context, r *reminders.Reminder) error {
		logger.Info("reminder due", "user", r.UserID, "message", r.Message)
		return nil
	}, 30*time.Second)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	if cfg.MQTT.Enabled {
		instanceID, err := mqtt.LoadOrCreateInstanceID(dataDir)
		if err != nil {
			return fmt.Errorf("mqtt instance id: %w", err)
		}
		stats := &serveStats{model: model, sessions: sessions, loop: loop, mood: moodSummary}
		publisher := mqtt.New(cfg.MQTT, instanceID, stats, logger)
		if err := publisher.Start(ctx); err != nil {
			logger.Error("mqtt publisher not started", "error", err)
		} else {
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				publisher.Stop(stopCtx)
			}()
		}
	}

	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, loop, model, registry, sessions, logger)
	if ha != nil {
		server.SetHomeAssistant(ha)
	}
	if watcher != nil {
		server.SetStateWatcher(watcher)
	}
	server.SetMoodSource(moodSummary)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// seedDefaultPersona bootstraps the built-in user from the embedded
// persona file on first run. Existing settings are left alone.
func seedDefaultPersona(personas *persona.Store, defs persona.FileDefaults, logger *slog.Logger) error {
	_, err := personas.SettingsFor(defaultUser)
	if err == nil {
		return nil
	}
	if !errors.Is(err, persona.ErrNoSettings) {
		return fmt.Errorf("load persona settings: %w", err)
	}

	settings, traits, err := persona.ParsePersonaWith(defaults.PersonaYAML, defs)
	if err != nil {
		return fmt.Errorf("embedded persona: %w", err)
	}
	if err := personas.Bootstrap(settings, traits); err != nil {
		return fmt.Errorf("seed default persona: %w", err)
	}
	logger.Info("seeded default persona", "user", settings.UserID, "traits", len(traits))
	return nil
}

// describeMood renders the user's baseline mood as "axis=value" pairs
// for status reporting.
func describeMood(personas *persona.Store, moods *persona.Tracker, userID string) string {
	settings, err := personas.SettingsFor(userID)
	if err != nil {
		return ""
	}
	state, err := moods.Mood(userID, "", time.Now())
	if err != nil {
		return ""
	}
	parts := make([]string, 0, len(settings.MoodAxes))
	for i, axis := range settings.MoodAxes {
		v := 0.0
		if i < len(state.Values) {
			v = state.Values[i]
		}
		parts = append(parts, fmt.Sprintf("%s=%.3f", axis, v))
	}
	return strings.Join(parts, ", ")
}

// serveStats adapts running components to the MQTT publisher's stats
// interface.
type serveStats struct {
	model    *llm.Client
	sessions *session.Store
	loop     *agent.Loop
	mood     func(ctx context.Context) string
}

func (s *serveStats) Uptime() time.Duration { return buildinfo.Uptime() }

func (s *serveStats) Model() string { return s.model.Model() }

func (s *serveStats) ActiveSessions() int {
	n, err := s.sessions.ActiveCount(time.Now().Add(-time.Hour))
	if err != nil {
		return 0
	}
	return n
}

func (s *serveStats) LastTurnTime() time.Time { return s.loop.LastTurn() }

func (s *serveStats) MoodSummary() string { return s.mood(context.Background()) }

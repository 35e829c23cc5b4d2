// leoctl is the operator CLI for a LEO deployment.
//
// Persona commands work directly against the database, so the server
// does not need to be running. The chat REPL talks to a running
// server's HTTP API.
//
// Usage:
//
//	leoctl load-persona <file>   Bootstrap a user's persona from YAML/JSON
//	leoctl show-persona [user]   Print the compiled persona block
//	leoctl chat [user]           Interactive chat against a running server
package main

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Hezy4/LEO/internal/config"
	"github.com/Hezy4/LEO/internal/persona"
	"github.com/Hezy4/LEO/internal/prefs"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for database/sql
)

const defaultUser = "default"

func main() {
	if err := run(context.Background(), os.Stdout, os.Stdin, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer, stdin io.Reader, args []string) error {
	var configPath string
	var serverURL string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-server" && i+1 < len(args):
			serverURL = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-server="):
			serverURL = strings.TrimPrefix(args[i], "-server=")
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

	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}

	switch command {
	case "load-persona":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: leoctl load-persona <file>")
		}
		return runLoadPersona(stdout, configPath, cmdArgs[0])
	case "show-persona":
		user := defaultUser
		if len(cmdArgs) > 0 {
			user = cmdArgs[0]
		}
		return runShowPersona(stdout, configPath, user)
	case "chat":
		user := defaultUser
		if len(cmdArgs) > 0 {
			user = cmdArgs[0]
		}
		return runChat(ctx, stdout, stdin, serverURL, user)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "leoctl - LEO operator CLI")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: leoctl [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  load-persona <file>   Bootstrap a user's persona from a YAML/JSON file")
	fmt.Fprintln(w, "  show-persona [user]   Print the compiled persona block (default user: default)")
	fmt.Fprintln(w, "  chat [user]           Interactive chat against a running server")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -server <url>     Server base URL for chat (default: http://localhost:8080)")
	return nil
}

// openDB locates the config and opens the shared database.
func openDB(configPath string) (*sql.DB, *config.Config, error) {
	cfgPath, err := config.FindConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, nil, fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	return db, cfg, nil
}

func runLoadPersona(stdout io.Writer, configPath, file string) error {
	db, cfg, err := openDB(configPath)
	if err != nil {
		return err
	}
	defer db.Close()

	settings, traits, err := persona.LoadPersonaFile(file, persona.FileDefaults{
		TopTraits:    cfg.Persona.TopTraits,
		MoodHalfLife: time.Duration(cfg.Persona.MoodHalfLifeSec) * time.Second,
	})
	if err != nil {
		return err
	}

	store, err := persona.NewStoreWithDB(db)
	if err != nil {
		return fmt.Errorf("persona store: %w", err)
	}
	if err := store.Bootstrap(settings, traits); err != nil {
		return fmt.Errorf("bootstrap persona: %w", err)
	}

	fmt.Fprintf(stdout, "loaded persona for %s: %d axes, %d traits\n",
		settings.UserID, len(settings.PersonalityAxes), len(traits))
	return nil
}

func runShowPersona(stdout io.Writer, configPath, user string) error {
	db, _, err := openDB(configPath)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := persona.NewStoreWithDB(db)
	if err != nil {
		return fmt.Errorf("persona store: %w", err)
	}
	moods, err := persona.NewTracker(store)
	if err != nil {
		return fmt.Errorf("mood tracker: %w", err)
	}
	prefStore, err := prefs.NewStoreWithDB(db)
	if err != nil {
		return fmt.Errorf("preference store: %w", err)
	}

	compiler := persona.NewCompiler(store, moods)
	compiler.SetDirectives(prefStore)

	snapshot, err := compiler.Compile(user, "", time.Now())
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, snapshot.Text)
	return nil
}

// chatResponse mirrors the server's POST /chat body.
type chatResponse struct {
	Reply   string `json:"reply"`
	Actions []struct {
		Tool   string `json:"tool"`
		Status string `json:"status"`
		Error  string `json:"error"`
	} `json:"actions"`
	SessionID string `json:"session_id"`
}

func runChat(ctx context.Context, stdout io.Writer, stdin io.Reader, serverURL, user string) error {
	sessionID := uuid.New().String()
	client := &http.Client{Timeout: 5 * time.Minute}

	fmt.Fprintf(stdout, "chatting as %s (session %s), ctrl-d to quit\n", user, sessionID)

	scanner := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(stdout)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		resp, err := sendChat(ctx, client, serverURL, user, sessionID, line)
		if err != nil {
			fmt.Fprintf(stdout, "error: %v\n", err)
			continue
		}
		for _, a := range resp.Actions {
			if a.Status == "failure" {
				fmt.Fprintf(stdout, "[%s failed: %s]\n", a.Tool, a.Error)
			} else {
				fmt.Fprintf(stdout, "[%s]\n", a.Tool)
			}
		}
		fmt.Fprintln(stdout, resp.Reply)
	}
}

func sendChat(ctx context.Context, client *http.Client, serverURL, user, sessionID, message string) (*chatResponse, error) {
	body, err := json.Marshal(map[string]string{
		"user_id":    user,
		"session_id": sessionID,
		"message":    message,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		strings.TrimSuffix(serverURL, "/")+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %d: %s", httpResp.StatusCode, strings.TrimSpace(string(data)))
	}

	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

// Package config handles LEO configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Hezy4/LEO/internal/email"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/leo/config.yaml, /etc/leo/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "leo", "config.yaml"))
	}

	paths = append(paths, "/etc/leo/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all LEO configuration.
type Config struct {
	Listen        ListenConfig        `yaml:"listen"`
	Ollama        OllamaConfig        `yaml:"ollama"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	Email         email.Config        `yaml:"email"`
	Search        SearchConfig        `yaml:"search"`
	Persona       PersonaConfig       `yaml:"persona"`
	Dispatch      DispatchConfig      `yaml:"dispatch"`
	DBPath        string              `yaml:"db_path"`
	LogLevel      string              `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// OllamaConfig defines the local model backend connection.
type OllamaConfig struct {
	URL        string `yaml:"url"`   // Default: http://localhost:11434
	Model      string `yaml:"model"` // Default model name
	TimeoutSec int    `yaml:"timeout_sec"`
}

// HomeAssistantConfig defines HA connection settings.
type HomeAssistantConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// Configured reports whether a Home Assistant connection is set up.
func (h HomeAssistantConfig) Configured() bool {
	return h.URL != "" && h.Token != ""
}

// MQTTConfig defines the optional MQTT status bridge.
type MQTTConfig struct {
	Enabled            bool   `yaml:"enabled"`
	Broker             string `yaml:"broker"` // e.g. mqtt://host:1883 or mqtts://host:8883
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	DeviceName         string `yaml:"device_name"`      // Topic segment, default "leo"
	DiscoveryPrefix    string `yaml:"discovery_prefix"` // Default "homeassistant"
	PublishIntervalSec int    `yaml:"publish_interval_sec"`
}

// SearchConfig defines web search provider settings.
type SearchConfig struct {
	Provider    string `yaml:"provider"` // "searxng" or "brave"
	SearxNGURL  string `yaml:"searxng_url"`
	BraveAPIKey string `yaml:"brave_api_key"`
}

// Configured reports whether any search provider is set up.
func (s SearchConfig) Configured() bool {
	return s.SearxNGURL != "" || s.BraveAPIKey != ""
}

// PersonaConfig defines persona-state defaults applied when a user's
// stored settings omit a value.
type PersonaConfig struct {
	// TopTraits is the number of traits surfaced in a compiled
	// persona snapshot.
	TopTraits int `yaml:"top_traits"`
	// MoodHalfLifeSec controls mood decay toward neutral.
	MoodHalfLifeSec int `yaml:"mood_half_life_sec"`
}

// DispatchConfig bounds the orchestration loop.
type DispatchConfig struct {
	// MaxRounds caps model re-invocations after tool batches.
	MaxRounds int `yaml:"max_rounds"`
	// HistoryLimit is the number of recent messages given to the model.
	HistoryLimit int `yaml:"history_limit"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	if cfg.Email.Configured() {
		cfg.Email.ApplyDefaults()
		if err := cfg.Email.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 8080},
		Ollama: OllamaConfig{
			URL:        "http://localhost:11434",
			Model:      "gpt-oss:20b",
			TimeoutSec: 300,
		},
		MQTT: MQTTConfig{
			DeviceName:         "leo",
			DiscoveryPrefix:    "homeassistant",
			PublishIntervalSec: 60,
		},
		Search: SearchConfig{Provider: "searxng"},
		Persona: PersonaConfig{
			TopTraits:       5,
			MoodHalfLifeSec: 3600,
		},
		Dispatch: DispatchConfig{
			MaxRounds:    3,
			HistoryLimit: 20,
		},
		DBPath: filepath.Join("var", "leo.db"),
	}
}

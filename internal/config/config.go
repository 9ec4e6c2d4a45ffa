// Package config loads muxpilot configuration from file and environment.
//
// Precedence (highest to lowest):
//  1. Environment variables (MUXPILOT_*)
//  2. Config file
//  3. Built-in defaults
//
// Config file search order:
//  1. .muxpilot.yaml in current directory
//  2. ~/.config/muxpilot/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// WatchTarget binds a pane target to its log file and optional build command.
type WatchTarget struct {
	Target  string `yaml:"target"`
	LogFile string `yaml:"log_file"`
	Command string `yaml:"command"`
}

// Config holds all muxpilot configuration.
type Config struct {
	// Analyzer (LLM) settings
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	MaxTokens int64  `yaml:"max_tokens"`

	// Watch targets
	Watch []WatchTarget `yaml:"watch"`

	// History and trigger tuning
	HistoryCapacity     int    `yaml:"history_capacity"`
	MultiErrorThreshold int    `yaml:"multi_error_threshold"`
	MultiErrorWindow    string `yaml:"multi_error_window"` // Go duration string, e.g. "1m"
	NoveltyPrefixLen    int    `yaml:"novelty_prefix_len"`

	// Per-category cooldowns, Go duration strings
	Cooldowns map[string]string `yaml:"cooldowns"`

	// Identity
	IdleTTL string `yaml:"idle_ttl"` // Go duration string, e.g. "30m"

	// Storage
	DBPath string `yaml:"db_path"`

	// Ingest socket
	SocketPath string `yaml:"socket_path"`

	// OTEL
	OTELEndpoint string `yaml:"otel_endpoint"`
	OTELHeaders  string `yaml:"otel_headers"` // Comma-separated key=value pairs

	// Parsed durations (not from YAML, set after loading)
	MultiErrorWindowDuration time.Duration            `yaml:"-"`
	IdleTTLDuration          time.Duration            `yaml:"-"`
	CooldownDurations        map[string]time.Duration `yaml:"-"`

	// ConfigFile is the path to the config file that was loaded (empty if none).
	ConfigFile string `yaml:"-"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		Provider:            "anthropic",
		Model:               "claude-sonnet-4-5",
		MaxTokens:           4096,
		HistoryCapacity:     100,
		MultiErrorThreshold: 5,
		MultiErrorWindow:    "1m",
		NoveltyPrefixLen:    50,
		IdleTTL:             "30m",
	}
}

// Load reads configuration from file and environment variables.
// Environment variables always override file values.
func Load() (*Config, error) {
	cfg := Defaults()

	if path, data, err := findConfigFile(); err == nil {
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		cfg.ConfigFile = path
		mergeFile(cfg, &fileCfg)
	}

	mergeEnv(cfg)

	var err error
	cfg.MultiErrorWindowDuration, err = parseDurationOrDisable(cfg.MultiErrorWindow, time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid multi_error_window %q: %w", cfg.MultiErrorWindow, err)
	}
	cfg.IdleTTLDuration, err = parseDurationOrDisable(cfg.IdleTTL, 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid idle_ttl %q: %w", cfg.IdleTTL, err)
	}
	cfg.CooldownDurations = make(map[string]time.Duration, len(cfg.Cooldowns))
	for category, raw := range cfg.Cooldowns {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid cooldown for %s: %w", category, err)
		}
		cfg.CooldownDurations[category] = d
	}

	if cfg.DBPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.DBPath = filepath.Join(home, ".local", "share", "muxpilot", "state.db")
		}
	}

	return cfg, nil
}

// findConfigFile searches for a config file and returns its path and contents.
func findConfigFile() (string, []byte, error) {
	// 1. Current directory
	if data, err := os.ReadFile(".muxpilot.yaml"); err == nil {
		return ".muxpilot.yaml", data, nil
	}

	// 2. XDG config dir / ~/.config
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", "muxpilot", "config.yaml")
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}

	return "", nil, fmt.Errorf("no config file found")
}

// mergeFile applies non-zero file values onto cfg.
func mergeFile(cfg *Config, file *Config) {
	if file.Provider != "" {
		cfg.Provider = file.Provider
	}
	if file.Model != "" {
		cfg.Model = file.Model
	}
	if file.BaseURL != "" {
		cfg.BaseURL = file.BaseURL
	}
	if file.APIKey != "" {
		cfg.APIKey = file.APIKey
	}
	if file.MaxTokens > 0 {
		cfg.MaxTokens = file.MaxTokens
	}
	if len(file.Watch) > 0 {
		cfg.Watch = file.Watch
	}
	if file.HistoryCapacity > 0 {
		cfg.HistoryCapacity = file.HistoryCapacity
	}
	if file.MultiErrorThreshold > 0 {
		cfg.MultiErrorThreshold = file.MultiErrorThreshold
	}
	if file.MultiErrorWindow != "" {
		cfg.MultiErrorWindow = file.MultiErrorWindow
	}
	if file.NoveltyPrefixLen > 0 {
		cfg.NoveltyPrefixLen = file.NoveltyPrefixLen
	}
	if len(file.Cooldowns) > 0 {
		cfg.Cooldowns = file.Cooldowns
	}
	if file.IdleTTL != "" {
		cfg.IdleTTL = file.IdleTTL
	}
	if file.DBPath != "" {
		cfg.DBPath = file.DBPath
	}
	if file.SocketPath != "" {
		cfg.SocketPath = file.SocketPath
	}
	if file.OTELEndpoint != "" {
		cfg.OTELEndpoint = file.OTELEndpoint
	}
	if file.OTELHeaders != "" {
		cfg.OTELHeaders = file.OTELHeaders
	}
}

// mergeEnv applies environment variables onto cfg. Env always wins.
func mergeEnv(cfg *Config) {
	if v := os.Getenv("MUXPILOT_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("MUXPILOT_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("MUXPILOT_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("MUXPILOT_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("MUXPILOT_MULTI_ERROR_WINDOW"); v != "" {
		cfg.MultiErrorWindow = v
	}
	if v := os.Getenv("MUXPILOT_IDLE_TTL"); v != "" {
		cfg.IdleTTL = v
	}
	if v := os.Getenv("MUXPILOT_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("MUXPILOT_SOCKET_PATH"); v != "" {
		cfg.SocketPath = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTELEndpoint = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); v != "" {
		cfg.OTELHeaders = v
	}

	// API key fallbacks
	if cfg.APIKey == "" {
		if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
			cfg.APIKey = v
		}
	}
	if cfg.APIKey == "" {
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			cfg.APIKey = v
		}
	}
}

// parseDurationOrDisable parses a duration string. "0", "off", "disable" return 0.
// Empty string returns the fallback value.
func parseDurationOrDisable(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	if s == "0" || s == "off" || s == "disable" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// Package config handles Trainer configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/trainer/config.yaml, /etc/trainer/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "trainer", "config.yaml"))
	}

	paths = append(paths, "/etc/trainer/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
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

// Config holds all Trainer configuration.
type Config struct {
	Listen    ListenConfig   `yaml:"listen"`
	Database  DatabaseConfig `yaml:"database"`
	Gemini    GeminiConfig   `yaml:"gemini"`
	Strava    StravaConfig   `yaml:"strava"`
	Google    GoogleConfig   `yaml:"google"`
	Auth      AuthConfig     `yaml:"auth"`
	Coach     CoachConfig    `yaml:"coach"`
	LogLevel  string         `yaml:"log_level"`
	LogFormat string         `yaml:"log_format"` // text or json
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// DatabaseConfig defines SQLite storage settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// GeminiConfig defines the language model settings.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"` // e.g. gemini-2.5-flash
}

// Configured reports whether the Gemini client can be constructed.
func (c GeminiConfig) Configured() bool { return c.APIKey != "" }

// StravaConfig defines the Strava integration settings.
type StravaConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	VerifyToken  string `yaml:"verify_token"` // webhook subscription validation
}

// Configured reports whether the Strava client can be constructed.
func (c StravaConfig) Configured() bool { return c.ClientID != "" && c.ClientSecret != "" }

// GoogleConfig defines Google sign-in and Calendar sync settings.
type GoogleConfig struct {
	ClientID           string `yaml:"client_id"` // OAuth audience for ID token verification
	CalendarID         string `yaml:"calendar_id"`
	CalendarClientID   string `yaml:"calendar_client_id"`
	CalendarSecret     string `yaml:"calendar_client_secret"`
	CalendarRefreshTok string `yaml:"calendar_refresh_token"`
}

// CalendarConfigured reports whether calendar sync can be constructed.
func (c GoogleConfig) CalendarConfigured() bool {
	return c.CalendarID != "" && c.CalendarClientID != "" && c.CalendarRefreshTok != ""
}

// AuthConfig defines session token settings.
type AuthConfig struct {
	JWTSecret    string `yaml:"jwt_secret"`
	TokenTTLDays int    `yaml:"token_ttl_days"` // default 30
}

// CoachConfig defines agent loop behavior.
type CoachConfig struct {
	MaxIterations   int    `yaml:"max_iterations"`   // default 6
	HistoryTurns    int    `yaml:"history_turns"`    // default 10
	DefaultTimezone string `yaml:"default_timezone"` // default America/New_York
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables so secrets can live outside the file.
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen:   ListenConfig{Port: 8080},
		Database: DatabaseConfig{Path: "trainer.db"},
		Gemini:   GeminiConfig{Model: "gemini-2.5-flash"},
		Auth:     AuthConfig{TokenTTLDays: 30},
		Coach: CoachConfig{
			MaxIterations:   6,
			HistoryTurns:    10,
			DefaultTimezone: "America/New_York",
		},
	}
}

// Validate checks required settings and normalizes defaults.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Coach.MaxIterations <= 0 {
		c.Coach.MaxIterations = 6
	}
	if c.Coach.HistoryTurns <= 0 {
		c.Coach.HistoryTurns = 10
	}
	if c.Coach.DefaultTimezone == "" {
		c.Coach.DefaultTimezone = "America/New_York"
	}
	if c.Auth.TokenTTLDays <= 0 {
		c.Auth.TokenTTLDays = 30
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

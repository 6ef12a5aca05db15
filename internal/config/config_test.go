package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindConfig_Explicit(t *testing.T) {
	// Create a temp config file
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	os.WriteFile(path, []byte("listen:\n  port: 9999\n"), 0600)

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	_, err := FindConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestFindConfig_SearchPath(t *testing.T) {
	// When no config exists anywhere, should error
	// (Save and restore CWD to avoid finding the repo's config.yaml)
	dir := t.TempDir()
	orig, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(orig)

	_, err := FindConfig("")
	if err == nil {
		t.Fatal("FindConfig(\"\") with no config files should error")
	}
}

func TestFindConfig_CWD(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("listen:\n  port: 8080\n"), 0600)

	orig, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(orig)

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig(\"\") error: %v", err)
	}
	if got != "config.yaml" {
		t.Errorf("FindConfig(\"\") = %q, want %q", got, "config.yaml")
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("gemini:\n  api_key: ${TRAINER_TEST_KEY}\n"), 0600)
	os.Setenv("TRAINER_TEST_KEY", "secret123")
	defer os.Unsetenv("TRAINER_TEST_KEY")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Gemini.APIKey != "secret123" {
		t.Errorf("api_key = %q, want %q", cfg.Gemini.APIKey, "secret123")
	}
}

func TestLoad_InlineSecrets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("strava:\n  client_id: \"12345\"\n  client_secret: shhh\n"), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Strava.ClientID != "12345" {
		t.Errorf("client_id = %q, want %q", cfg.Strava.ClientID, "12345")
	}
	if !cfg.Strava.Configured() {
		t.Error("Strava.Configured() = false, want true")
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("auth:\n  jwt_secret: test\n"), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if cfg.Coach.MaxIterations != 6 {
		t.Errorf("MaxIterations = %d, want 6", cfg.Coach.MaxIterations)
	}
	if cfg.Coach.HistoryTurns != 10 {
		t.Errorf("HistoryTurns = %d, want 10", cfg.Coach.HistoryTurns)
	}
	if cfg.Coach.DefaultTimezone != "America/New_York" {
		t.Errorf("DefaultTimezone = %q, want America/New_York", cfg.Coach.DefaultTimezone)
	}
	if cfg.Listen.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Listen.Port)
	}
}

func TestValidate_RequiresJWTSecret(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate without jwt_secret should error")
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, bad := range []string{"verbose", "trace2", "loud"} {
		if _, err := ParseLogLevel(bad); err == nil {
			t.Errorf("ParseLogLevel(%q) should error", bad)
		}
	}
	if lvl, err := ParseLogLevel(" Warn "); err != nil || lvl.String() != "WARN" {
		t.Errorf("ParseLogLevel(\" Warn \") = %v, %v", lvl, err)
	}
}

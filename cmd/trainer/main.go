// Trainer is a personal endurance-coaching backend.
//
// It exposes an HTTP API for a mobile client: Google sign-in, a
// tool-calling AI coach, a planned training calendar, daily wellness
// logs, and Strava activity sync with automatic plan reconciliation.
// Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	trainer serve        Start the API server
//	trainer init [dir]   Initialize a working directory with defaults
//	trainer version      Print version and build information
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/andrew-thompson-55/trainer-2.0/internal/agent"
	"github.com/andrew-thompson-55/trainer-2.0/internal/api"
	"github.com/andrew-thompson-55/trainer-2.0/internal/auth"
	"github.com/andrew-thompson-55/trainer-2.0/internal/buildinfo"
	"github.com/andrew-thompson-55/trainer-2.0/internal/config"
	"github.com/andrew-thompson-55/trainer-2.0/internal/gcal"
	"github.com/andrew-thompson-55/trainer-2.0/internal/llm"
	"github.com/andrew-thompson-55/trainer-2.0/internal/store"
	"github.com/andrew-thompson-55/trainer-2.0/internal/strava"
	"github.com/andrew-thompson-55/trainer-2.0/internal/tools"
)

// main constructs the OS-level environment (context, stdio, argv) and
// delegates immediately to [run]. This keeps os.Exit, os.Stdout, and
// os.Args out of the application logic so the startup-to-shutdown
// lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the trainer command. Arguments are
// parsed by hand; the flag package relies on package-level globals,
// which makes it impossible to call run() concurrently from tests, and
// the argument surface here is tiny.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
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
		return runServe(ctx, stdout, stderr, configPath)
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

// runVersion prints build metadata in the requested output format.
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

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Trainer - Personal AI Training Coach")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: trainer [flags] <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the API server")
	fmt.Fprintln(w, "  init [dir]   Initialize a working directory with a default config (default: .)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/trainer/config.yaml, /etc/trainer/config.yaml")
	return nil
}

// runServe handles the "trainer serve" subcommand. It is the only
// operating mode beyond version: loads config, opens the database,
// wires the coach agent, Strava sync and calendar sync, starts the API
// server, and blocks until a shutdown signal arrives.
func runServe(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo, "text")
	logger.Info("starting Trainer", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure logger now that we know the desired level and format.
	{
		level := slog.LevelInfo
		if cfg.LogLevel != "" {
			// Already validated by config.Validate(), so this error
			// path should be unreachable in practice.
			level, _ = config.ParseLogLevel(cfg.LogLevel)
		}
		logger = newLogger(stdout, level, cfg.LogFormat)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"model", cfg.Gemini.Model,
	)

	// --- Store ---
	// Single SQLite database for users, settings, the training plan,
	// daily logs, completed activities, and chat history.
	st, err := store.New(cfg.Database.Path, logger.With("component", "store"))
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}
	defer st.Close()
	logger.Info("database opened", "path", cfg.Database.Path)

	// --- Auth ---
	sessions := auth.NewSessions(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLDays)
	google := auth.NewGoogleVerifier(cfg.Google.ClientID, logger.With("component", "auth"))

	// --- Calendar sync ---
	// Optional. When unconfigured, workout mutations skip sync.
	var calendar gcal.Calendar
	if cfg.Google.CalendarConfigured() {
		calendar = gcal.New(
			cfg.Google.CalendarID,
			cfg.Google.CalendarClientID,
			cfg.Google.CalendarSecret,
			cfg.Google.CalendarRefreshTok,
			st,
			logger.With("component", "gcal"),
		)
		logger.Info("calendar sync enabled", "calendar_id", cfg.Google.CalendarID)
	} else {
		logger.Info("calendar sync disabled (not configured)")
	}

	// --- API server ---
	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, st, sessions, google, logger.With("component", "api"))

	// --- Coach agent ---
	// Optional but central. Without a Gemini key, chat returns 503 and
	// Trainer still serves the plan, logs, and Strava sync.
	registry := tools.NewRegistry(st, calendar, cfg.Coach.DefaultTimezone, logger.With("component", "tools"))
	if cfg.Gemini.Configured() {
		client := llm.NewGeminiClient(cfg.Gemini.APIKey, cfg.Gemini.Model, logger.With("component", "llm"))
		assembler := agent.NewAssembler(st, cfg.Coach.DefaultTimezone, logger.With("component", "agent"))
		loop := agent.NewLoop(st, client, registry, assembler,
			cfg.Coach.MaxIterations, cfg.Coach.HistoryTurns,
			logger.With("component", "agent"))
		server.SetLoop(loop)
		logger.Info("coach agent enabled", "model", cfg.Gemini.Model, "tools", len(registry.Declarations()))
	} else {
		logger.Warn("gemini not configured - chat endpoints disabled")
	}

	// --- Strava sync ---
	if cfg.Strava.Configured() {
		client := strava.NewClient(cfg.Strava.ClientID, cfg.Strava.ClientSecret, st, logger.With("component", "strava"))
		rec := strava.NewReconciler(st, client, cfg.Coach.DefaultTimezone, logger.With("component", "strava"))
		server.SetStrava(client, rec, cfg.Strava.VerifyToken)
		logger.Info("strava integration enabled")
	} else {
		logger.Warn("strava not configured - integration endpoints disabled")
	}

	// --- Signal handling and graceful shutdown ---
	// NotifyContext wraps the parent context so that SIGINT/SIGTERM
	// cancellation flows through the same ctx used by all components.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		_ = server.Shutdown(context.Background())
	}()

	// Start the API server. This blocks until the server is shut down
	// (via context cancellation or fatal error).
	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("Trainer stopped")
	return nil
}

// newLogger creates a structured logger that writes to w at the given
// level and format. Format must be "text" or "json"; any other value
// defaults to text.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// loadConfig locates and parses the YAML configuration file. If
// explicit is non-empty, that exact path is used (and must exist).
// Otherwise [config.FindConfig] searches the default locations.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, cfgPath, fmt.Errorf("invalid config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

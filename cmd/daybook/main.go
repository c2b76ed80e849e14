package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"daybook/internal/archive"
	"daybook/internal/config"
	"daybook/internal/engine"
	"daybook/internal/ics"
	"daybook/internal/logger"
	"daybook/internal/mcp"
	"daybook/internal/report"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"run": true, "day": true, "conflicts": true, "runs": true,
	"schedule": true, "help": true,
}

// app holds the wired-up application collaborators.
type app struct {
	cfg   *config.Config
	loc   *time.Location
	store *archive.Store
	eng   *engine.Engine
	log   zerolog.Logger
}

// buildApp loads config and wires the store, calendar client, report sink
// and engine together.
func buildApp() (*app, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	baseDir := env.BaseDir
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("could not determine home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".daybook")
	}

	configPath := env.ConfigPath
	if configPath == "" {
		configPath = filepath.Join(baseDir, "config.yaml")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	log := logger.New("daybook")

	store, err := archive.Open(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	sources := make(map[string][]ics.Source, len(cfg.Users))
	for _, u := range cfg.Users {
		cals := make([]ics.Source, 0, len(u.Calendars))
		for _, c := range u.Calendars {
			cals = append(cals, ics.Source{ID: c.ID, URL: c.URL})
		}
		sources[u.ID] = cals
	}
	src := ics.NewClient(filepath.Join(baseDir, "cache"), sources, loc, log)

	reportDir := cfg.ReportDir
	if !filepath.IsAbs(reportDir) {
		reportDir = filepath.Join(baseDir, reportDir)
	}
	sink := report.NewFileSink(reportDir, log)

	retry := engine.RetryConfig{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseBackoff: time.Duration(cfg.Retry.BaseBackoffMillis) * time.Millisecond,
		MaxInterval: time.Duration(cfg.Retry.MaxIntervalMillis) * time.Millisecond,
	}

	return &app{
		cfg:   cfg,
		loc:   loc,
		store: store,
		eng:   engine.New(src, store, sink, log, retry),
		log:   log,
	}, nil
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ___   _ __   _____  ___   ___  _  __
  |   \ /_\\ \ / / _ )/ _ \ / _ \| |/ /
  | |) / _ \\ V /| _ \ (_) | (_) | ' <
  |___/_/ \_\|_| |___/\___/ \___/|_|\_\

  Calendar archiving and conflict resolution

  Usage: daybook <command> [options]
         daybook --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before wiring collaborators (none needed)
	if isHelpOrVersion() {
		cliApp := newCLIApp(nil)
		if err := cliApp.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	a, err := buildApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer a.store.Close()

	// CLI mode: known subcommand
	if isCLIMode() {
		cliApp := newCLIApp(a)
		if err := cliApp.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'daybook --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(a.eng, a.store, a.loc, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// Package main provides the CLI entrypoint for classbell.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/classbell/internal/config"
	"github.com/jmylchreest/classbell/internal/schedule"
	"github.com/jmylchreest/classbell/internal/store"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose      bool
		configPath   string
		schedulePath string
	}
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "classbell",
	Short: "Rings a bell at the start of every class in a weekly timetable",
	Long: `classbell rings a bell at the start of every class in a weekly timetable.

Each class gets its own watcher which polls the clock and plays the bell
sound when the class's weekday, hour and minute come round. A watcher that
finds its class time already past gives up.

Running classbell without a subcommand is the same as "classbell run". If no
timetable exists yet, one is collected interactively and saved first.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if globalOpts.schedulePath != "" {
			cfg.Schedule.Path = globalOpts.schedulePath
		}

		if err := config.EnsureDataDir(); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		return nil
	},
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRun(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/classbell/config.toml)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.schedulePath, "schedule", "",
		"Path to timetable file (default: ~/.local/share/classbell/class_table.json)")

	addRunFlags(rootCmd)
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, opts)
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// scheduleStore returns the timetable store for the configured path.
func scheduleStore() *schedule.Store {
	return schedule.NewStore(afero.NewOsFs(), cfg.SchedulePath())
}

// openHistory opens the outcome history and loads what is already recorded.
func openHistory() (*store.Store, error) {
	persistence, err := store.NewJSONLPersistence(cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history: %w", err)
	}

	historyStore := store.NewStore(persistence)
	if err := historyStore.Hydrate(); err != nil {
		logger.Warn("failed to hydrate history from disk", "error", err)
	}
	return historyStore, nil
}

// Pulse TUI — the terminal dashboard: leaderboard, industry table and a
// revenue chart that follows the theme.
//
// Usage:
//
//	pulse-tui [flags]
//
// Flags:
//
//	--config  Config file (default: ~/.pulse/pulse.yaml)
//	--db      Path to SQLite database file (default: ~/.pulse/pulse.db)
//	--log     Log file (default: ~/.pulse/pulse-tui.log)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Mr-Dark-debug/pulse/internal/config"
	"github.com/Mr-Dark-debug/pulse/internal/database"
	"github.com/Mr-Dark-debug/pulse/internal/dataset"
	"github.com/Mr-Dark-debug/pulse/internal/logging"
	"github.com/Mr-Dark-debug/pulse/internal/theme"
	"github.com/Mr-Dark-debug/pulse/internal/tui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, dbPath, logPath string

	cmd := &cobra.Command{
		Use:           "pulse-tui",
		Short:         "Open the Pulse terminal dashboard",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.Database.Path = dbPath
			}
			if logPath != "" {
				cfg.Logging.File = logPath
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file (default ~/.pulse/pulse.yaml)")
	cmd.Flags().StringVar(&dbPath, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().StringVar(&logPath, "log", "", "log file (default ~/.pulse/pulse-tui.log)")
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return fmt.Errorf("creating database directory %s: %w", dbDir, err)
	}

	// The alternate screen owns the terminal, so logs always go to a file.
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(dbDir, "pulse-tui.log")
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := database.NewDBService(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database at %s: %w", cfg.Database.Path, err)
	}
	defer store.Close()

	if cfg.Database.Seed {
		if n, err := dataset.SeedIfEmpty(store); err != nil {
			return err
		} else if n > 0 {
			logger.Info("seeded sample dataset", zap.Int("clients", n))
		}
	}

	// Detection queries the terminal, which must happen before the
	// program takes over stdin.
	detectors := []theme.Detector{theme.NewEnvDetector(), theme.NewTerminalDetector()}
	if cfg.Theme.WatchFile != "" {
		detectors = append(detectors, theme.NewFileDetector(cfg.Theme.WatchFile, logger.Named("theme")))
	}
	sig := theme.NewSignal(
		theme.WithPreferences(store),
		theme.WithPreferenceKey(cfg.Theme.PreferenceKey),
		theme.WithDetectors(detectors...),
		theme.WithLogger(logger.Named("theme")),
	)
	if err := sig.Init(ctx); err != nil {
		return fmt.Errorf("initializing theme: %w", err)
	}
	defer sig.Dispose()

	logger.Info("starting terminal dashboard",
		zap.String("db", cfg.Database.Path),
		zap.Stringer("theme", sig.Theme()),
	)
	return tui.Run(ctx, tui.NewModel(store, sig, cfg.Theme, logger))
}

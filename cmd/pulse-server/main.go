// Pulse Server — the web dashboard: leaderboard and industry pages with
// theme-synchronized SVG charts, a live theme event stream and the places
// proxy route.
//
// Usage:
//
//	pulse-server [flags]
//
// Flags:
//
//	--config  Config file (default: ~/.pulse/pulse.yaml)
//	--addr    HTTP listen address (default: 127.0.0.1:8080)
//	--db      Path to SQLite database file (default: ~/.pulse/pulse.db)
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
	"github.com/Mr-Dark-debug/pulse/internal/server"
	"github.com/Mr-Dark-debug/pulse/internal/theme"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, addr, dbPath string

	cmd := &cobra.Command{
		Use:          "pulse-server",
		Short:        "Serve the Pulse web dashboard",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if dbPath != "" {
				cfg.Database.Path = dbPath
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return serve(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file (default ~/.pulse/pulse.yaml)")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	cmd.Flags().StringVar(&dbPath, "db", "", "path to SQLite database (overrides config)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return fmt.Errorf("creating database directory %s: %w", dbDir, err)
	}

	store, err := database.NewDBService(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.Database.Seed {
		n, err := dataset.SeedIfEmpty(store)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("seeded sample dataset", zap.Int("clients", n))
		}
	}

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

	srv, err := server.New(cfg, store, sig, logger)
	if err != nil {
		return err
	}

	system, source := sig.SystemTheme()
	fmt.Println()
	fmt.Println("  PULSE DASHBOARD")
	fmt.Println("  Client portfolio at a glance")
	fmt.Println()
	fmt.Printf("  Listen:  http://%s\n", cfg.Server.Addr)
	fmt.Printf("  DB:      %s\n", cfg.Database.Path)
	fmt.Printf("  Theme:   %s (mode %s, system %s via %s)\n", sig.Theme(), sig.Mode(), system, source)
	fmt.Printf("  Metrics: http://%s/metrics\n", cfg.Server.Addr)
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop.")
	fmt.Println()

	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("dashboard stopped", zap.Error(err))
		return err
	}
	fmt.Println("\n  Shut down gracefully.")
	return nil
}

// Pulse CLI — reports, theme preference and data management for the
// Pulse dashboard.
//
// Usage:
//
//	pulse <command> [flags]
//
// Commands:
//
//	report    Print the portfolio report (markdown or JSON)
//	theme     Show or set the persisted theme mode
//	seed      Load the sample dataset
//	places    Search nearby places through the configured upstream
//	status    Show dashboard server status
//	version   Print version information
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
)

var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// cli carries state shared by every subcommand.
type cli struct {
	configPath string
	dbPath     string

	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "pulse",
		Short: "Pulse — theme-aware client portfolio dashboard",
		Long: `Pulse reports on a portfolio of client accounts: an account-manager
leaderboard and industry performance, served as a web dashboard
(pulse-server) and a terminal dashboard (pulse-tui).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			if c.dbPath != "" {
				cfg.Database.Path = c.dbPath
			}
			c.cfg = cfg

			c.logger, err = logging.New(cfg.Logging)
			if err != nil {
				return err
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ~/.pulse/pulse.yaml)")
	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "path to SQLite database (overrides config)")

	root.AddCommand(
		c.reportCmd(),
		c.themeCmd(),
		c.seedCmd(),
		c.placesCmd(),
		c.statusCmd(),
		versionCmd(),
	)
	return root
}

// openStore opens the configured database, creating its directory, and
// seeds an empty database when configured to.
func (c *cli) openStore() (*database.DBService, error) {
	dir := filepath.Dir(c.cfg.Database.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
	}
	store, err := database.NewDBService(c.cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if c.cfg.Database.Seed {
		n, err := dataset.SeedIfEmpty(store)
		if err != nil {
			store.Close()
			return nil, err
		}
		if n > 0 {
			c.logger.Info("seeded sample dataset", zap.Int("clients", n))
		}
	}
	return store, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Pulse v%s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
		},
	}
}

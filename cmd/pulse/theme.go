package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mr-Dark-debug/pulse/internal/database"
	"github.com/Mr-Dark-debug/pulse/internal/theme"
)

func (c *cli) themeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "theme",
		Short: "Show or set the persisted theme mode",
		Long: `The theme mode is shared by pulse-server and pulse-tui:

  light   always light
  dark    always dark
  system  follow the detected system appearance`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the mode and the theme it resolves to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sig, _, cleanup, err := c.openSignal(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			system, source := sig.SystemTheme()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Mode:   %s\n", sig.Mode())
			fmt.Fprintf(out, "Theme:  %s\n", sig.Theme())
			fmt.Fprintf(out, "System: %s (%s)\n", system, source)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "set <light|dark|system>",
		Short:     "Persist a theme mode",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(theme.ModeLight), string(theme.ModeDark), string(theme.ModeSystem)},
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := theme.ParseMode(args[0])
			if err != nil {
				return err
			}
			sig, store, cleanup, err := c.openSignal(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := sig.SetMode(mode); err != nil {
				return err
			}
			// SetMode only logs storage failures; the CLI must report them.
			stored, ok, err := store.Get(c.cfg.Theme.PreferenceKey)
			if err != nil || !ok || stored != string(mode) {
				return errors.Join(errors.New("theme preference was not saved"), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Theme mode set to %s (%s)\n", mode, sig.Theme())
			return nil
		},
	})
	return cmd
}

// openSignal builds an initialized theme signal persisted in the store.
func (c *cli) openSignal(cmd *cobra.Command) (*theme.Signal, *database.DBService, func(), error) {
	store, err := c.openStore()
	if err != nil {
		return nil, nil, nil, err
	}
	sig := theme.NewSignal(
		theme.WithPreferences(store),
		theme.WithPreferenceKey(c.cfg.Theme.PreferenceKey),
		theme.WithDetectors(c.detectors()...),
		theme.WithLogger(c.logger.Named("theme")),
	)
	if err := sig.Init(cmd.Context()); err != nil {
		store.Close()
		return nil, nil, nil, err
	}
	return sig, store, func() {
		sig.Dispose()
		store.Close()
	}, nil
}

// detectors returns the system theme detector chain. A file watcher, if
// configured, stops when the signal is disposed.
func (c *cli) detectors() []theme.Detector {
	d := []theme.Detector{theme.NewEnvDetector(), theme.NewTerminalDetector()}
	if c.cfg.Theme.WatchFile != "" {
		d = append(d, theme.NewFileDetector(c.cfg.Theme.WatchFile, c.logger))
	}
	return d
}

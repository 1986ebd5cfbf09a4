package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Mr-Dark-debug/pulse/internal/analytics"
	"github.com/Mr-Dark-debug/pulse/internal/database"
)

func (c *cli) reportCmd() *cobra.Command {
	var (
		outputFormat string
		raw          bool
		manager      string
		industry     string
		region       string
	)

	cmd := &cobra.Command{
		Use:   "report [leaderboard|industries]",
		Short: "Print the portfolio report",
		Long: `Prints the portfolio summary with the account-manager leaderboard and
industry performance. Name a section to print only that table.

Markdown is rendered for the terminal when stdout is a TTY; use --raw
to print the markdown source.`,
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"leaderboard", "industries"},
		RunE: func(cmd *cobra.Command, args []string) error {
			section := ""
			if len(args) == 1 {
				section = args[0]
			}

			store, err := c.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			var filter database.ClientFilter
			if manager != "" {
				filter.Manager = &manager
			}
			if industry != "" {
				filter.Industry = &industry
			}
			if region != "" {
				filter.Region = &region
			}

			report, err := analytics.NewAnalyzer(store).Report(filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch outputFormat {
			case "json":
				return writeReportJSON(out, report, section)
			case "markdown":
				return writeReportMarkdown(out, report, section, raw)
			default:
				return fmt.Errorf("unknown format %q (want markdown or json)", outputFormat)
			}
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "markdown", "output format: markdown, json")
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown source even on a terminal")
	cmd.Flags().StringVar(&manager, "manager", "", "only clients of this account manager")
	cmd.Flags().StringVar(&industry, "industry", "", "only clients in this industry")
	cmd.Flags().StringVar(&region, "region", "", "only clients in this region")
	return cmd
}

func writeReportJSON(w io.Writer, report *analytics.Report, section string) error {
	var v any = report
	switch section {
	case "leaderboard":
		v = map[string]any{"rows": report.Leaderboard}
	case "industries":
		v = map[string]any{"rows": report.Industries}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeReportMarkdown(w io.Writer, report *analytics.Report, section string, raw bool) error {
	switch section {
	case "leaderboard":
		report.Industries = nil
		report.Concentration = nil
	case "industries":
		report.Leaderboard = nil
	}
	md := analytics.FormatReport(report)

	fd, tty := terminalFd(w)
	if raw || !tty {
		_, err := io.WriteString(w, md)
		return err
	}

	width := 100
	if cols, _, err := term.GetSize(fd); err == nil && cols > 20 {
		width = cols
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fmt.Errorf("creating markdown renderer: %w", err)
	}
	rendered, err := renderer.Render(md)
	if err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	_, err = io.WriteString(w, rendered)
	return err
}

// terminalFd returns w's descriptor when w is an interactive terminal.
func terminalFd(w io.Writer) (int, bool) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0, false
	}
	return int(f.Fd()), true
}

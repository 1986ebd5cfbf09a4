package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mr-Dark-debug/pulse/internal/server"
	"github.com/Mr-Dark-debug/pulse/pkg/format"
	"github.com/Mr-Dark-debug/pulse/pkg/timeutil"
)

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show database and dashboard server status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			store, err := c.openStore()
			if err != nil {
				return err
			}
			stats, err := store.GetDashboardStats()
			store.Close()
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Database: %s\n", c.cfg.Database.Path)
			fmt.Fprintf(out, "  Clients:       %s\n", format.Count(stats.Clients))
			fmt.Fprintf(out, "  Managers:      %d\n", stats.Managers)
			fmt.Fprintf(out, "  Industries:    %d\n", stats.Industries)
			fmt.Fprintf(out, "  Revenue:       %s\n", format.Currency(stats.TotalRevenue))
			fmt.Fprintf(out, "  Avg health:    %s\n", format.Percent(stats.AvgHealth))
			fmt.Fprintf(out, "  At risk:       %d\n", stats.AtRisk)
			updated := "-"
			if stats.LastUpdated > 0 {
				updated = timeutil.RelativeTime(stats.LastUpdated)
			}
			fmt.Fprintf(out, "  Last updated:  %s\n", updated)
			fmt.Fprintln(out)

			url := fmt.Sprintf("http://%s/api/metrics", c.cfg.Server.Addr)
			client := &http.Client{Timeout: 2 * time.Second}
			resp, err := client.Get(url)
			if err != nil {
				fmt.Fprintln(out, "⚠ Pulse dashboard is not running.")
				fmt.Fprintln(out, "  Start it with: pulse-server")
				fmt.Fprintf(out, "  (tried: %s)\n", url)
				return nil
			}
			defer resp.Body.Close()

			var m server.Metrics
			if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
				return fmt.Errorf("decoding dashboard metrics: %w", err)
			}

			fmt.Fprintf(out, "✅ Pulse dashboard is running at http://%s\n", c.cfg.Server.Addr)
			fmt.Fprintf(out, "  Requests:            %d\n", m.Requests)
			fmt.Fprintf(out, "  Errors:              %d\n", m.Errors)
			fmt.Fprintf(out, "  Page views:          %d\n", m.PageViews)
			fmt.Fprintf(out, "  Chart renders:       %d\n", m.ChartRenders)
			fmt.Fprintf(out, "  Chart transitions:   %d\n", m.ChartTransitions)
			fmt.Fprintf(out, "  Theme changes:       %d\n", m.ThemeChanges)
			fmt.Fprintf(out, "  Open streams:        %d\n", m.StreamClients)
			fmt.Fprintf(out, "  Uptime:              %s\n", timeutil.FormatDuration(time.Duration(m.Uptime)*time.Second))
			return nil
		},
	}
}

package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Mr-Dark-debug/pulse/internal/database"
	"github.com/Mr-Dark-debug/pulse/pkg/format"
	"github.com/Mr-Dark-debug/pulse/pkg/timeutil"
)

// Analyzer builds portfolio reports from the store.
type Analyzer struct {
	store database.Store
}

// NewAnalyzer creates a new analysis engine backed by the given store.
func NewAnalyzer(store database.Store) *Analyzer {
	return &Analyzer{store: store}
}

// ============================================================
// Revenue Concentration
// ============================================================

// Concentration flags a client whose revenue is an outlier in the
// portfolio.
type Concentration struct {
	ClientID string  `json:"client_id"`
	Name     string  `json:"name"`
	Manager  string  `json:"manager"`
	Revenue  float64 `json:"revenue"`
	Share    float64 `json:"share"`
	ZScore   float64 `json:"z_score"`
	Severity string  `json:"severity"` // "low", "medium", "high"
}

// RevenueConcentration computes the Z-score of each client's revenue and
// returns the outliers, highest first.
//
// A Z-score > 1.5 is reported; > 2.0 is "medium" and > 3.0 is "high".
func RevenueConcentration(clients []*database.Client) []Concentration {
	if len(clients) < 2 {
		return nil
	}

	var sum, sumSq float64
	for _, c := range clients {
		sum += c.Revenue
		sumSq += c.Revenue * c.Revenue
	}
	n := float64(len(clients))
	mean := sum / n
	stddev := math.Sqrt(math.Max(0, sumSq/n-mean*mean))
	if stddev == 0 {
		return nil
	}

	var out []Concentration
	for _, c := range clients {
		z := (c.Revenue - mean) / stddev
		if z <= 1.5 {
			continue
		}
		severity := "low"
		if z > 3.0 {
			severity = "high"
		} else if z > 2.0 {
			severity = "medium"
		}
		out = append(out, Concentration{
			ClientID: c.ClientID,
			Name:     c.Name,
			Manager:  c.Manager,
			Revenue:  c.Revenue,
			Share:    round1(c.Revenue / sum * 100),
			ZScore:   math.Round(z*100) / 100,
			Severity: severity,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ZScore > out[j].ZScore
	})
	return out
}

// ============================================================
// Full Report
// ============================================================

// Report is the complete output of `pulse report`.
type Report struct {
	GeneratedAt   string                   `json:"generated_at"`
	Scope         string                   `json:"scope"`
	Stats         *database.DashboardStats `json:"stats,omitempty"`
	Summary       Summary                  `json:"summary"`
	Leaderboard   []ManagerRow             `json:"leaderboard"`
	Industries    []IndustryRow            `json:"industries"`
	Concentration []Concentration          `json:"concentration,omitempty"`
	Warnings      []string                 `json:"warnings,omitempty"`
}

// Report loads the clients matching filter and runs every aggregation.
func (a *Analyzer) Report(filter database.ClientFilter) (*Report, error) {
	clients, err := a.store.QueryClients(filter)
	if err != nil {
		return nil, fmt.Errorf("loading clients for report: %w", err)
	}

	report := &Report{
		GeneratedAt: time.Now().Format(time.RFC3339),
		Scope:       describeFilter(filter),
		Summary:     Summarize(clients),
		Leaderboard: Leaderboard(clients),
		Industries:  IndustryPerformance(clients),
	}

	stats, err := a.store.GetDashboardStats()
	if err != nil {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Portfolio stats unavailable: %v", err))
	} else {
		report.Stats = stats
	}

	report.Concentration = RevenueConcentration(clients)
	for _, c := range report.Concentration {
		if c.Severity == "high" {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("⚠ REVENUE CONCENTRATION: %s is %.1f%% of revenue (Z-score: %.2f).",
					c.Name, c.Share, c.ZScore))
		}
	}
	if s := report.Summary; s.Clients > 0 && float64(s.AtRisk)/float64(s.Clients) > 0.25 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("⚠ %d of %d clients are at risk (health < %d).",
				s.AtRisk, s.Clients, database.AtRiskThreshold))
	}

	return report, nil
}

func describeFilter(f database.ClientFilter) string {
	var parts []string
	if f.Manager != nil {
		parts = append(parts, "manager="+*f.Manager)
	}
	if f.Industry != nil {
		parts = append(parts, "industry="+*f.Industry)
	}
	if f.Region != nil {
		parts = append(parts, "region="+*f.Region)
	}
	if len(parts) == 0 {
		return "all clients"
	}
	return strings.Join(parts, ", ")
}

// FormatReport generates a human-readable markdown report.
func FormatReport(report *Report) string {
	var b strings.Builder

	b.WriteString("# Pulse Portfolio Report\n\n")
	b.WriteString(fmt.Sprintf("**Scope:** %s\n", report.Scope))
	b.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt))

	s := report.Summary
	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("|--------|-------|\n")
	b.WriteString(fmt.Sprintf("| Clients | %s |\n", format.Count(s.Clients)))
	b.WriteString(fmt.Sprintf("| Managers | %d |\n", s.Managers))
	b.WriteString(fmt.Sprintf("| Revenue | %s |\n", format.Currency(s.Revenue)))
	b.WriteString(fmt.Sprintf("| Average Health | %s |\n", format.Percent(s.AvgHealth)))
	b.WriteString(fmt.Sprintf("| Healthy / Watch / At Risk | %d / %d / %d |\n", s.Healthy, s.Watch, s.AtRisk))
	if report.Stats != nil && report.Stats.LastUpdated > 0 {
		b.WriteString(fmt.Sprintf("| Last Updated | %s |\n", timeutil.FormatDate(report.Stats.LastUpdated)))
	}
	b.WriteString("\n")

	if len(report.Leaderboard) > 0 {
		b.WriteString("## Account Manager Leaderboard\n\n")
		b.WriteString("| # | Manager | Clients | Avg Health | Revenue |\n")
		b.WriteString("|---|---------|---------|------------|---------|\n")
		for _, r := range report.Leaderboard {
			b.WriteString(fmt.Sprintf("| %d | %s | %d | %s | %s |\n",
				r.Rank, r.Manager, r.Clients, format.Percent(r.AvgHealth), format.Currency(r.Revenue)))
		}
		b.WriteString("\n")
	}

	if len(report.Industries) > 0 {
		b.WriteString("## Industry Performance\n\n")
		b.WriteString("| Industry | Clients | Revenue | Share | Avg Health |\n")
		b.WriteString("|----------|---------|---------|-------|------------|\n")
		for _, r := range report.Industries {
			b.WriteString(fmt.Sprintf("| %s | %d | %s | %.1f%% | %s |\n",
				r.Industry, r.Clients, format.Currency(r.Revenue), r.Share, format.Percent(r.AvgHealth)))
		}
		b.WriteString("\n")
	}

	if len(report.Concentration) > 0 {
		b.WriteString("## Revenue Concentration\n\n")
		b.WriteString("| Client | Manager | Revenue | Share | Z-Score | Severity |\n")
		b.WriteString("|--------|---------|---------|-------|---------|----------|\n")
		for _, c := range report.Concentration {
			b.WriteString(fmt.Sprintf("| %s | %s | %s | %.1f%% | %.2f | %s |\n",
				c.Name, c.Manager, format.Currency(c.Revenue), c.Share, c.ZScore, c.Severity))
		}
		b.WriteString("\n")
	}

	if len(report.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range report.Warnings {
			b.WriteString(fmt.Sprintf("- %s\n", w))
		}
	}

	return b.String()
}

// Package analytics derives the dashboard's tables from client rows.
//
// All functions here are pure: they take a slice of clients and return
// freshly allocated, deterministically ordered rows.
package analytics

import (
	"math"
	"sort"

	"github.com/Mr-Dark-debug/pulse/internal/database"
)

// Health bands.
const (
	BandHealthy = "healthy"
	BandWatch   = "watch"
	BandAtRisk  = "at-risk"
)

// HealthBand classifies a 0-100 health score.
func HealthBand(health float64) string {
	switch {
	case health >= 75:
		return BandHealthy
	case health >= database.AtRiskThreshold:
		return BandWatch
	default:
		return BandAtRisk
	}
}

// ManagerRow is one line of the account-manager leaderboard.
type ManagerRow struct {
	Rank      int     `json:"rank"`
	Manager   string  `json:"manager"`
	Clients   int     `json:"clients"`
	AvgHealth float64 `json:"avg_health"`
	Revenue   float64 `json:"revenue"`
	AtRisk    int     `json:"at_risk"`
	Band      string  `json:"band"`
}

// Leaderboard groups clients by manager and orders managers by average
// health, then revenue, then name.
func Leaderboard(clients []*database.Client) []ManagerRow {
	index := make(map[string]int)
	var rows []ManagerRow
	for _, c := range clients {
		i, ok := index[c.Manager]
		if !ok {
			i = len(rows)
			index[c.Manager] = i
			rows = append(rows, ManagerRow{Manager: c.Manager})
		}
		r := &rows[i]
		r.Clients++
		r.AvgHealth += c.Health
		r.Revenue += c.Revenue
		if c.Health < database.AtRiskThreshold {
			r.AtRisk++
		}
	}

	for i := range rows {
		rows[i].AvgHealth = round1(rows[i].AvgHealth / float64(rows[i].Clients))
		rows[i].Band = HealthBand(rows[i].AvgHealth)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].AvgHealth != rows[j].AvgHealth {
			return rows[i].AvgHealth > rows[j].AvgHealth
		}
		if rows[i].Revenue != rows[j].Revenue {
			return rows[i].Revenue > rows[j].Revenue
		}
		return rows[i].Manager < rows[j].Manager
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

// IndustryRow summarizes one industry.
type IndustryRow struct {
	Industry  string  `json:"industry"`
	Clients   int     `json:"clients"`
	Revenue   float64 `json:"revenue"`
	AvgHealth float64 `json:"avg_health"`
	// Share is the industry's percentage of total revenue.
	Share float64 `json:"share"`
}

// IndustryPerformance groups clients by industry, ordered by revenue then
// name.
func IndustryPerformance(clients []*database.Client) []IndustryRow {
	index := make(map[string]int)
	var rows []IndustryRow
	var total float64
	for _, c := range clients {
		i, ok := index[c.Industry]
		if !ok {
			i = len(rows)
			index[c.Industry] = i
			rows = append(rows, IndustryRow{Industry: c.Industry})
		}
		rows[i].Clients++
		rows[i].Revenue += c.Revenue
		rows[i].AvgHealth += c.Health
		total += c.Revenue
	}

	for i := range rows {
		rows[i].AvgHealth = round1(rows[i].AvgHealth / float64(rows[i].Clients))
		if total > 0 {
			rows[i].Share = round1(rows[i].Revenue / total * 100)
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Revenue != rows[j].Revenue {
			return rows[i].Revenue > rows[j].Revenue
		}
		return rows[i].Industry < rows[j].Industry
	})
	return rows
}

// Summary holds portfolio totals.
type Summary struct {
	Clients   int     `json:"clients"`
	Managers  int     `json:"managers"`
	Revenue   float64 `json:"revenue"`
	AvgHealth float64 `json:"avg_health"`
	Healthy   int     `json:"healthy"`
	Watch     int     `json:"watch"`
	AtRisk    int     `json:"at_risk"`
}

// Summarize totals clients.
func Summarize(clients []*database.Client) Summary {
	var s Summary
	managers := make(map[string]struct{})
	for _, c := range clients {
		s.Clients++
		s.Revenue += c.Revenue
		s.AvgHealth += c.Health
		managers[c.Manager] = struct{}{}
		switch HealthBand(c.Health) {
		case BandHealthy:
			s.Healthy++
		case BandWatch:
			s.Watch++
		default:
			s.AtRisk++
		}
	}
	s.Managers = len(managers)
	if s.Clients > 0 {
		s.AvgHealth = round1(s.AvgHealth / float64(s.Clients))
	}
	return s
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

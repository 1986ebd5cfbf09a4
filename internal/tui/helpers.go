package tui

import (
	"sort"

	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	"github.com/Mr-Dark-debug/pulse/internal/database"
)

// ────────────────────────────────────────────────────────────
// Filtering
// ────────────────────────────────────────────────────────────

// filterByManager keeps clients whose manager fuzzy-matches query. An empty
// query keeps everything.
func filterByManager(clients []*database.Client, query string) []*database.Client {
	if query == "" {
		return clients
	}

	seen := make(map[string]bool)
	var managers []string
	for _, c := range clients {
		if !seen[c.Manager] {
			seen[c.Manager] = true
			managers = append(managers, c.Manager)
		}
	}
	sort.Strings(managers)

	matched := make(map[string]bool)
	for _, m := range fuzzy.Find(query, managers) {
		matched[m.Str] = true
	}

	out := make([]*database.Client, 0, len(clients))
	for _, c := range clients {
		if matched[c.Manager] {
			out = append(out, c)
		}
	}
	return out
}

// ────────────────────────────────────────────────────────────
// String helpers
// ────────────────────────────────────────────────────────────

// truncate cuts s to maxWidth display cells, ending in "…" when cut.
func truncate(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	return runewidth.Truncate(s, maxWidth, "…")
}

// clamp restricts val to [lo, hi].
func clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

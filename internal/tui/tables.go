package tui

import (
	"strconv"

	"github.com/charmbracelet/bubbles/table"

	"github.com/Mr-Dark-debug/pulse/internal/analytics"
	"github.com/Mr-Dark-debug/pulse/pkg/format"
)

// Pane represents which table currently has keyboard focus.
type Pane int

const (
	PaneLeaderboard Pane = iota
	PaneIndustries
)

func leaderColumns() []table.Column {
	return []table.Column{
		{Title: "#", Width: 3},
		{Title: "Manager", Width: 18},
		{Title: "Clients", Width: 7},
		{Title: "Health", Width: 7},
		{Title: "Revenue", Width: 11},
		{Title: "Status", Width: 8},
	}
}

func industryColumns() []table.Column {
	return []table.Column{
		{Title: "Industry", Width: 16},
		{Title: "Clients", Width: 7},
		{Title: "Revenue", Width: 11},
		{Title: "Share", Width: 6},
		{Title: "Health", Width: 7},
	}
}

func leaderRows(rows []analytics.ManagerRow) []table.Row {
	out := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, table.Row{
			strconv.Itoa(r.Rank),
			truncate(r.Manager, 18),
			format.Count(r.Clients),
			format.Percent(r.AvgHealth),
			format.CompactCurrency(r.Revenue),
			r.Band,
		})
	}
	return out
}

func industryRows(rows []analytics.IndustryRow) []table.Row {
	out := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, table.Row{
			truncate(r.Industry, 16),
			format.Count(r.Clients),
			format.CompactCurrency(r.Revenue),
			format.Percent(r.Share),
			format.Percent(r.AvgHealth),
		})
	}
	return out
}

func newTable(cols []table.Column, s styles, focused bool) table.Model {
	t := table.New(
		table.WithColumns(cols),
		table.WithFocused(focused),
		table.WithHeight(8),
	)
	t.SetStyles(s.table)
	return t
}

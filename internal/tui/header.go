package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Mr-Dark-debug/pulse/pkg/format"
)

// renderHeader produces the top bar:
//
//	PULSE  |  24 clients  |  $1.6M  |  68% health  |  4 at risk  |  dark (system)
func renderHeader(m *Model) string {
	s := m.styles
	sep := s.headerSep.Render(" │ ")

	parts := []string{s.headerBrand.Render("PULSE")}
	if len(m.clients) > 0 {
		sum := m.summary
		parts = append(parts,
			sep, s.headerMeta.Render(fmt.Sprintf("%s clients", format.Count(sum.Clients))),
			sep, s.headerMeta.Render(format.CompactCurrency(sum.Revenue)),
			sep, s.band(sum.AvgHealth, format.Percent(sum.AvgHealth)+" health"),
			sep, s.headerMeta.Render(fmt.Sprintf("%d at risk", sum.AtRisk)),
		)
	}
	if q := m.filter.Value(); q != "" {
		parts = append(parts, sep, s.headerMeta.Render("filter: "+q))
	}
	parts = append(parts, sep, s.headerMeta.Render(
		fmt.Sprintf("%s (%s)", m.signal.Theme(), m.signal.Mode())))

	return s.headerBar.Width(m.width).Render(strings.Join(parts, ""))
}

// renderFooter produces the bottom status bar with keyboard hints.
func renderFooter(m *Model) string {
	s := m.styles
	var left, right string

	hints := m.keys.ShortHelp()
	if m.filtering {
		left = s.searchBar.Render(m.filter.View())
		hints = filterKeys()
	} else if m.statusMsg != "" {
		left = s.status.Render(m.statusMsg)
	}
	m.help.Width = m.width - lipgloss.Width(left) - 1
	right = m.help.ShortHelpView(hints)

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return s.statusBar.Width(m.width).Render(bar)
}

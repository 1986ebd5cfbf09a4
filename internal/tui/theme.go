package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/Mr-Dark-debug/pulse/internal/theme"
)

// ────────────────────────────────────────────────────────────
// Styles
// ────────────────────────────────────────────────────────────
//
// Every style derives from the current palette. No ad-hoc color literals
// anywhere; a theme change rebuilds the whole set.

type styles struct {
	palette theme.Palette

	// Header bar
	headerBar   lipgloss.Style
	headerBrand lipgloss.Style
	headerSep   lipgloss.Style
	headerMeta  lipgloss.Style

	// Panel chrome
	panel         lipgloss.Style
	panelActive   lipgloss.Style
	panelTitle    lipgloss.Style
	panelTitleDim lipgloss.Style

	// Text
	text   lipgloss.Style
	muted  lipgloss.Style
	danger lipgloss.Style

	// Footer / status bar
	status     lipgloss.Style
	statusBar  lipgloss.Style
	searchBar  lipgloss.Style
	emptyState lipgloss.Style
	table      table.Styles
	help       help.Styles
}

var panelBorder = lipgloss.Border{Top: "─"}

func newStyles(p theme.Palette) styles {
	bg := lipgloss.Color(p.Background)
	surface := lipgloss.Color(p.Surface)
	text := lipgloss.Color(p.Text)
	muted := lipgloss.Color(p.Muted)
	accent := lipgloss.Color(p.Accent)
	border := lipgloss.Color(p.Border)

	s := styles{palette: p}

	s.headerBar = lipgloss.NewStyle().Background(surface).Foreground(text).Padding(0, 1)
	s.headerBrand = lipgloss.NewStyle().Bold(true).Foreground(accent).Background(surface)
	s.headerSep = lipgloss.NewStyle().Foreground(border).Background(surface)
	s.headerMeta = lipgloss.NewStyle().Foreground(muted).Background(surface)

	s.panel = lipgloss.NewStyle().Padding(0, 1).Border(panelBorder).BorderForeground(border)
	s.panelActive = s.panel.BorderForeground(accent)
	s.panelTitle = lipgloss.NewStyle().Foreground(accent).Bold(true)
	s.panelTitleDim = lipgloss.NewStyle().Foreground(muted).Bold(true)

	s.text = lipgloss.NewStyle().Foreground(text)
	s.muted = lipgloss.NewStyle().Foreground(muted)
	s.danger = lipgloss.NewStyle().Foreground(lipgloss.Color(p.Danger))

	s.status = lipgloss.NewStyle().Foreground(text).Background(surface).Padding(0, 1)
	s.statusBar = lipgloss.NewStyle().Background(surface)
	s.searchBar = lipgloss.NewStyle().Foreground(text).Background(surface).Padding(0, 1)
	s.emptyState = lipgloss.NewStyle().Foreground(muted).Padding(2, 4)

	s.table = table.Styles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(border),
		Cell: lipgloss.NewStyle().Foreground(text).Padding(0, 1),
		Selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(bg).
			Background(accent),
	}

	s.help = help.Styles{
		ShortKey:       lipgloss.NewStyle().Foreground(text).Bold(true),
		ShortDesc:      lipgloss.NewStyle().Foreground(muted),
		ShortSeparator: lipgloss.NewStyle().Foreground(border),
		Ellipsis:       lipgloss.NewStyle().Foreground(muted),
		FullKey:        lipgloss.NewStyle().Foreground(text).Bold(true),
		FullDesc:       lipgloss.NewStyle().Foreground(muted),
		FullSeparator:  lipgloss.NewStyle().Foreground(border),
	}
	return s
}

// band renders a health band label in its status color.
func (s styles) band(health float64, label string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(s.palette.HealthColor(health))).Render(label)
}

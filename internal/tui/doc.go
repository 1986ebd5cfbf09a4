// Package tui implements the Pulse terminal dashboard.
//
// Built with Charmbracelet's BubbleTea, Lipgloss and Bubbles. The chart
// panel follows the theme signal through a chart.Controller; every
// scheduled controller step is delivered to Update as a message, so chart
// state is only touched on the program's goroutine.
//
// Component architecture:
//
//	model.go      — root model, message routing, Init/Update/View
//	theme.go      — palette-derived color + style definitions
//	header.go     — KPI bar, footer and key hints
//	tables.go     — leaderboard and industry tables
//	chartpanel.go — chart widget lifecycle and error fallback
//	keys.go       — key bindings
//	relay.go      — scheduler callbacks → tea messages
//	helpers.go    — filtering, truncation, etc.
package tui

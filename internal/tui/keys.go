package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Focus   key.Binding
	Filter  key.Binding
	Toggle  key.Binding
	System  key.Binding
	Metric  key.Binding
	Refresh key.Binding
	Retry   key.Binding
	Quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Focus:   key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "table")),
		Filter:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		Toggle:  key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "theme")),
		System:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "system")),
		Metric:  key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "metric")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Retry:   key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "retry chart")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Focus, k.Filter, k.Toggle, k.System, k.Metric, k.Refresh, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Focus, k.Filter},
		{k.Toggle, k.System, k.Metric},
		{k.Refresh, k.Retry, k.Quit},
	}
}

// filterKeys are shown while the filter input has focus.
func filterKeys() []key.Binding {
	return []key.Binding{
		key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply")),
		key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear")),
	}
}

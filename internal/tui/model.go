package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Mr-Dark-debug/pulse/internal/analytics"
	"github.com/Mr-Dark-debug/pulse/internal/config"
	"github.com/Mr-Dark-debug/pulse/internal/database"
	"github.com/Mr-Dark-debug/pulse/internal/schedule"
	"github.com/Mr-Dark-debug/pulse/internal/theme"
)

// wideLayout is the terminal width at which tables and chart sit side by side.
const wideLayout = 110

// ────────────────────────────────────────────────────────────
// Model
// ────────────────────────────────────────────────────────────

// Model is the root BubbleTea model for the Pulse dashboard.
// State is organized by concern; rendering is delegated
// to component functions in separate files.
type Model struct {
	store  database.Store
	signal *theme.Signal
	logger *zap.Logger

	relay       *relay
	panel       *chartPanel
	unsubscribe func()

	// Chrome
	styles styles
	keys   keyMap
	help   help.Model
	filter textinput.Model

	// Data
	clients []*database.Client
	visible []*database.Client
	summary analytics.Summary
	leaders table.Model
	sectors table.Model

	// UI state
	activePane Pane
	filtering  bool
	width      int
	height     int

	// Status
	statusMsg string
	err       error
}

// Option customizes a Model.
type Option func(*settings)

type settings struct {
	sched schedule.Scheduler
}

// WithScheduler replaces the timer-backed scheduler driving the chart.
// Callbacks of a custom scheduler run wherever it runs them.
func WithScheduler(s schedule.Scheduler) Option {
	return func(st *settings) { st.sched = s }
}

// NewModel creates the dashboard model. The signal must already be
// initialized. Call Close when the program has exited.
func NewModel(store database.Store, signal *theme.Signal, cfg config.ThemeConfig, logger *zap.Logger, opts ...Option) Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := newRelay()
	st := settings{sched: schedule.NewTimers(r.Post)}
	for _, opt := range opts {
		opt(&st)
	}

	s := newStyles(theme.PaletteFor(signal.Theme()))
	m := Model{
		store:     store,
		signal:    signal,
		logger:    logger,
		relay:     r,
		styles:    s,
		keys:      newKeyMap(),
		help:      help.New(),
		filter:    textinput.New(),
		leaders:   newTable(leaderColumns(), s, true),
		sectors:   newTable(industryColumns(), s, false),
		statusMsg: "Loading clients...",
	}
	m.help.Styles = s.help
	m.filter.Prompt = "/ "
	m.filter.Placeholder = "manager"
	m.panel = newChartPanel(signal, st.sched, cfg, logger.Named("chart"))
	m.unsubscribe = signal.Subscribe(func(t theme.Theme) {
		r.Send(themeChangedMsg(t))
	})
	return m
}

// Close releases the theme subscription and the chart.
func (m Model) Close() {
	m.unsubscribe()
	m.panel.close()
}

// ────────────────────────────────────────────────────────────
// Messages
// ────────────────────────────────────────────────────────────

type clientsLoadedMsg []*database.Client
type themeChangedMsg theme.Theme
type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

// ────────────────────────────────────────────────────────────
// Init
// ────────────────────────────────────────────────────────────

func (m Model) Init() tea.Cmd {
	return m.loadClients()
}

func (m Model) loadClients() tea.Cmd {
	return func() tea.Msg {
		clients, err := m.store.QueryClients(database.ClientFilter{})
		if err != nil {
			return errMsg{err}
		}
		return clientsLoadedMsg(clients)
	}
}

// ────────────────────────────────────────────────────────────
// Update
// ────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case runMsg:
		msg()
		return m, nil

	case themeChangedMsg:
		m.applyTheme(theme.Theme(msg))
		return m, nil

	case clientsLoadedMsg:
		m.clients = []*database.Client(msg)
		m.err = nil
		m.recompute()
		if len(m.clients) > 0 {
			m.statusMsg = fmt.Sprintf("%d clients", len(m.clients))
		} else {
			m.statusMsg = "No clients"
		}
		return m, nil

	case errMsg:
		m.err = msg.err
		m.statusMsg = fmt.Sprintf("Error: %v", msg.err)
		m.logger.Error("dashboard error", zap.Error(msg.err))
		return m, nil
	}

	return m, nil
}

// handleKey routes keyboard input based on current mode.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// ── Filter mode ──

	if m.filtering {
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			m.filtering = false
			m.filter.Blur()
			m.filter.SetValue("")
			m.recompute()
			return m, nil
		case "enter":
			m.filtering = false
			m.filter.Blur()
			m.statusMsg = fmt.Sprintf("%d of %d clients", len(m.visible), len(m.clients))
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.recompute()
		return m, cmd
	}

	// ── Global ──

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Focus):
		m.activePane = (m.activePane + 1) % 2
		if m.activePane == PaneLeaderboard {
			m.leaders.Focus()
			m.sectors.Blur()
		} else {
			m.sectors.Focus()
			m.leaders.Blur()
		}
		return m, nil

	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		cmd := m.filter.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Toggle):
		m.applyTheme(m.signal.Toggle())
		m.statusMsg = fmt.Sprintf("Theme: %s", m.signal.Theme())
		return m, nil

	case key.Matches(msg, m.keys.System):
		if err := m.signal.SetMode(theme.ModeSystem); err != nil {
			m.statusMsg = fmt.Sprintf("Error: %v", err)
			return m, nil
		}
		m.applyTheme(m.signal.Theme())
		m.statusMsg = fmt.Sprintf("Theme: following system (%s)", m.signal.Theme())
		return m, nil

	case key.Matches(msg, m.keys.Metric):
		m.panel.nextMetric()
		m.statusMsg = m.panel.metric.String()
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		m.statusMsg = "Refreshing..."
		return m, m.loadClients()

	case key.Matches(msg, m.keys.Retry):
		switch {
		case m.panel.retry():
			m.statusMsg = "Chart restored"
		case m.panel.boundary.Failed():
			m.statusMsg = "Chart still unavailable"
		}
		return m, nil
	}

	// ── Focused table ──

	var cmd tea.Cmd
	switch m.activePane {
	case PaneLeaderboard:
		m.leaders, cmd = m.leaders.Update(msg)
	case PaneIndustries:
		m.sectors, cmd = m.sectors.Update(msg)
	}
	return m, cmd
}

// recompute derives tables, KPIs and chart data from the filtered clients.
func (m *Model) recompute() {
	m.visible = filterByManager(m.clients, m.filter.Value())
	m.summary = analytics.Summarize(m.visible)
	m.leaders.SetRows(leaderRows(analytics.Leaderboard(m.visible)))
	m.sectors.SetRows(industryRows(analytics.IndustryPerformance(m.visible)))
	m.panel.load(m.visible)
}

// applyTheme rebuilds the chrome for t. The chart follows on its own
// through its controller.
func (m *Model) applyTheme(t theme.Theme) {
	if m.styles.palette.Theme == t {
		return
	}
	m.styles = newStyles(theme.PaletteFor(t))
	m.help.Styles = m.styles.help
	m.leaders.SetStyles(m.styles.table)
	m.sectors.SetStyles(m.styles.table)
}

// layout sizes tables and chart for the terminal.
func (m *Model) layout() {
	tableHeight := clamp((m.height-10)/2, 3, 12)
	m.leaders.SetHeight(tableHeight)
	m.sectors.SetHeight(tableHeight)

	chartWidth := m.width - 4
	if m.width >= wideLayout {
		chartWidth = m.width - lipgloss.Width(m.leaders.View()) - 6
	}
	m.panel.resize(clamp(chartWidth, 24, 96))
}

// ────────────────────────────────────────────────────────────
// View
// ────────────────────────────────────────────────────────────

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	header := renderHeader(&m)
	footer := renderFooter(&m)

	var body string
	switch {
	case m.err != nil && len(m.clients) == 0:
		body = m.renderEmpty(fmt.Sprintf("Could not load clients.\n\n%v", m.err))
	case len(m.clients) == 0:
		body = m.renderEmpty("No clients yet.\n\nRun `pulse seed` to load the sample dataset.")
	default:
		body = m.renderMainLayout()
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) renderEmpty(text string) string {
	return lipgloss.Place(
		m.width,
		m.height-2, // minus header + footer
		lipgloss.Center,
		lipgloss.Center,
		m.styles.emptyState.Render(text),
	)
}

// renderMainLayout places the tables beside the chart, or above it on
// narrow terminals.
func (m Model) renderMainLayout() string {
	tables := lipgloss.JoinVertical(lipgloss.Left,
		m.renderTable("Leaderboard", m.leaders, PaneLeaderboard),
		m.renderTable("Industries", m.sectors, PaneIndustries),
	)
	chartView := m.styles.panel.Render(m.panel.view(m.styles))

	if m.width < wideLayout {
		return lipgloss.JoinVertical(lipgloss.Left, tables, chartView)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tables, chartView)
}

func (m Model) renderTable(title string, t table.Model, pane Pane) string {
	frame, heading := m.styles.panel, m.styles.panelTitleDim
	if m.activePane == pane {
		frame, heading = m.styles.panelActive, m.styles.panelTitle
	}
	return frame.Render(heading.Render(title) + "\n" + t.View())
}

// ────────────────────────────────────────────────────────────
// Run
// ────────────────────────────────────────────────────────────

// Run drives m in a BubbleTea program until it quits or ctx is done, then
// closes the model.
func Run(ctx context.Context, m Model, opts ...tea.ProgramOption) error {
	defer m.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(m, opts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := m.relay.Run(gctx, p.Send); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("running dashboard: %w", err)
		}
		return nil
	})
	return g.Wait()
}

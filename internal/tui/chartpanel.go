package tui

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Mr-Dark-debug/pulse/internal/analytics"
	"github.com/Mr-Dark-debug/pulse/internal/chart"
	"github.com/Mr-Dark-debug/pulse/internal/chart/termchart"
	"github.com/Mr-Dark-debug/pulse/internal/config"
	"github.com/Mr-Dark-debug/pulse/internal/database"
	"github.com/Mr-Dark-debug/pulse/internal/schedule"
	"github.com/Mr-Dark-debug/pulse/internal/theme"
	"github.com/Mr-Dark-debug/pulse/pkg/format"
)

// ────────────────────────────────────────────────────────────
// Metrics
// ────────────────────────────────────────────────────────────

// metric selects the dimension the revenue chart groups by.
type metric int

const (
	metricIndustry metric = iota
	metricRegion
	metricManager
	metricCount
)

func (mt metric) String() string {
	switch mt {
	case metricRegion:
		return "Revenue by region"
	case metricManager:
		return "Revenue by manager"
	default:
		return "Revenue by industry"
	}
}

func (mt metric) series(clients []*database.Client) chart.Series {
	s := chart.Series{Name: mt.String()}
	switch mt {
	case metricIndustry:
		for _, r := range analytics.IndustryPerformance(clients) {
			s.Points = append(s.Points, chart.Point{Label: r.Industry, Value: r.Revenue})
		}
	case metricManager:
		for _, r := range analytics.Leaderboard(clients) {
			s.Points = append(s.Points, chart.Point{Label: r.Manager, Value: r.Revenue})
		}
	case metricRegion:
		s.Points = regionRevenue(clients)
	}
	return s
}

// regionRevenue sums revenue per region, largest first.
func regionRevenue(clients []*database.Client) []chart.Point {
	totals := make(map[string]float64)
	for _, c := range clients {
		region := c.Region
		if region == "" {
			region = "Unknown"
		}
		totals[region] += c.Revenue
	}
	points := make([]chart.Point, 0, len(totals))
	for region, v := range totals {
		points = append(points, chart.Point{Label: region, Value: v})
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].Value != points[j].Value {
			return points[i].Value > points[j].Value
		}
		return points[i].Label < points[j].Label
	})
	return points
}

// ────────────────────────────────────────────────────────────
// Chart panel
// ────────────────────────────────────────────────────────────

const defaultChartWidth = 44

// chartPanel owns the terminal chart and its lifecycle controller. It is
// the controller's container: opacity is read back when drawing. All
// fields are touched only on the program goroutine.
type chartPanel struct {
	widget   *termchart.Widget
	ctrl     *chart.Controller
	boundary *chart.Boundary
	logger   *zap.Logger

	opacity float64
	metric  metric
	clients []*database.Client
	width   int
}

func newChartPanel(source chart.Source, sched schedule.Scheduler, cfg config.ThemeConfig, logger *zap.Logger) *chartPanel {
	p := &chartPanel{
		widget:   termchart.New(),
		boundary: chart.NewBoundary(logger),
		logger:   logger,
		opacity:  1,
		width:    defaultChartWidth,
	}
	p.ctrl = chart.NewController(source, sched, p.widget,
		chart.WithThrottle(cfg.Throttle),
		chart.WithTransitionDelay(cfg.TransitionDelay),
		chart.WithDimOpacity(cfg.DimOpacity),
		chart.WithContainer(p),
		chart.WithLogger(logger),
		chart.OnRebuild(p.build),
	)
	return p
}

// SetOpacity implements chart.Container.
func (p *chartPanel) SetOpacity(v float64) { p.opacity = v }

// load replaces the panel's data. The first load builds the chart; later
// loads are plain data updates.
func (p *chartPanel) load(clients []*database.Client) {
	p.clients = clients
	p.sync()
}

// nextMetric switches the grouping without rebuilding the widget.
func (p *chartPanel) nextMetric() {
	p.metric = (p.metric + 1) % metricCount
	p.sync()
}

func (p *chartPanel) sync() {
	if p.ctrl.Handle() == nil {
		if p.ctrl.Phase() == chart.PhaseIdle && !p.boundary.Failed() {
			p.build(p.ctrl.AppliedTheme())
		}
		return
	}
	p.ctrl.UpdateData(p.metric.series(p.clients))
}

// resize redraws the chart at width when no transition is running.
func (p *chartPanel) resize(width int) {
	if width < 1 || width == p.width {
		return
	}
	p.width = width
	if p.ctrl.Handle() != nil && p.ctrl.Phase() == chart.PhaseIdle {
		p.build(p.ctrl.AppliedTheme())
	}
}

// build renders the chart for th and registers it. It is also the
// controller's rebuild callback.
func (p *chartPanel) build(th theme.Theme) {
	_ = p.boundary.Guard(func() error {
		h, err := p.widget.Render(p.metric.series(p.clients), chart.Options{
			Palette: theme.PaletteFor(th),
			Width:   p.width,
			Format:  format.CompactCurrency,
		})
		if err != nil {
			return err
		}
		p.ctrl.RegisterChart(h)
		return nil
	})
}

// retry clears a failed chart and builds it again.
func (p *chartPanel) retry() bool {
	if !p.boundary.Failed() {
		return false
	}
	p.boundary.Reset()
	p.build(p.ctrl.AppliedTheme())
	return !p.boundary.Failed()
}

func (p *chartPanel) close() {
	p.ctrl.Dispose()
}

func (p *chartPanel) view(s styles) string {
	var b strings.Builder
	b.WriteString(s.panelTitle.Render(p.metric.String()))
	if phase := p.ctrl.Phase(); phase != chart.PhaseIdle {
		b.WriteString(s.muted.Render(fmt.Sprintf("  %s", phase)))
	}
	b.WriteString("\n\n")

	if p.boundary.Failed() {
		b.WriteString(s.danger.Render("Chart unavailable"))
		b.WriteString("\n")
		b.WriteString(s.muted.Render(truncate(p.boundary.Err().Error(), p.width)))
		b.WriteString("\n\n")
		b.WriteString(s.muted.Render("press R to retry"))
		return b.String()
	}

	inst, ok := p.ctrl.Handle().(*termchart.Instance)
	if !ok || inst == nil {
		b.WriteString(s.muted.Render("Loading chart..."))
		return b.String()
	}
	b.WriteString(inst.ViewAt(p.opacity))
	return b.String()
}

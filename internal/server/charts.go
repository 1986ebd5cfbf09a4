package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Mr-Dark-debug/pulse/internal/analytics"
	"github.com/Mr-Dark-debug/pulse/internal/chart"
	"github.com/Mr-Dark-debug/pulse/internal/chart/svgchart"
	"github.com/Mr-Dark-debug/pulse/internal/config"
	"github.com/Mr-Dark-debug/pulse/internal/database"
	"github.com/Mr-Dark-debug/pulse/internal/schedule"
	"github.com/Mr-Dark-debug/pulse/internal/theme"
	"github.com/Mr-Dark-debug/pulse/pkg/format"
)

var (
	// ErrUnknownChart is returned for a chart name that is not served.
	ErrUnknownChart = errors.New("unknown chart")
	// ErrChartFailed is returned while a chart's error boundary holds a failure.
	ErrChartFailed = errors.New("chart unavailable")
)

// chartDef describes one dashboard chart.
type chartDef struct {
	name   string
	title  string
	series func([]*database.Client) chart.Series
	format func(float64) string
}

var chartDefs = []chartDef{
	{
		name:  "revenue",
		title: "Revenue by industry",
		series: func(clients []*database.Client) chart.Series {
			s := chart.Series{Name: "revenue"}
			for _, r := range analytics.IndustryPerformance(clients) {
				s.Points = append(s.Points, chart.Point{Label: r.Industry, Value: r.Revenue})
			}
			return s
		},
		format: format.CompactCurrency,
	},
	{
		name:  "health",
		title: "Average health by manager",
		series: func(clients []*database.Client) chart.Series {
			s := chart.Series{Name: "health"}
			for _, r := range analytics.Leaderboard(clients) {
				s.Points = append(s.Points, chart.Point{Label: r.Manager, Value: r.AvgHealth})
			}
			return s
		},
		format: format.Percent,
	},
}

// opacity is the chart container as seen by the browser: the controller
// sets it and the page mirrors it from stream events.
type opacity struct{ bits atomic.Uint64 }

func newOpacity() *opacity {
	o := &opacity{}
	o.SetOpacity(1)
	return o
}

func (o *opacity) SetOpacity(v float64) { o.bits.Store(math.Float64bits(v)) }
func (o *opacity) Opacity() float64     { return math.Float64frombits(o.bits.Load()) }

// liveChart is one chart with its controller. data is owned by the loop.
type liveChart struct {
	def       chartDef
	ctrl      *chart.Controller
	container *opacity
	boundary  *chart.Boundary
	data      chart.Series
}

// ChartStatus reports a chart's lifecycle state.
type ChartStatus struct {
	Name        string  `json:"name"`
	Phase       string  `json:"phase"`
	Theme       string  `json:"theme"`
	Opacity     float64 `json:"opacity"`
	Transitions int     `json:"transitions"`
	Failed      bool    `json:"failed"`
	Error       string  `json:"error,omitempty"`
}

// ChartSet owns the server's chart controllers. Every controller callback
// and every data change runs on its loop.
type ChartSet struct {
	loop    *schedule.Loop
	widget  *svgchart.Widget
	source  chart.Source
	broker  *Broker
	metrics *Metrics
	logger  *zap.Logger
	charts  map[string]*liveChart
	order   []string
}

// NewChartSet mounts a controller per chart against source.
func NewChartSet(source chart.Source, cfg config.ThemeConfig, broker *Broker, m *Metrics, logger *zap.Logger) *ChartSet {
	cs := &ChartSet{
		loop:    schedule.NewLoop(),
		widget:  svgchart.New(),
		source:  source,
		broker:  broker,
		metrics: m,
		logger:  logger,
		charts:  make(map[string]*liveChart),
	}
	sched := schedule.NewTimers(cs.loop.Post)

	for _, def := range chartDefs {
		lc := &liveChart{
			def:       def,
			container: newOpacity(),
			boundary:  chart.NewBoundary(logger.With(zap.String("chart", def.name))),
		}
		lc.ctrl = chart.NewController(source, sched, cs.widget,
			chart.WithThrottle(cfg.Throttle),
			chart.WithTransitionDelay(cfg.TransitionDelay),
			chart.WithDimOpacity(cfg.DimOpacity),
			chart.WithContainer(lc.container),
			chart.WithLogger(logger.With(zap.String("chart", def.name))),
			chart.OnRebuild(func(th theme.Theme) { cs.build(lc, th) }),
			chart.OnPhaseChange(func(p chart.Phase) { cs.phaseChanged(lc, p) }),
		)
		cs.charts[def.name] = lc
		cs.order = append(cs.order, def.name)
	}
	return cs
}

// Run executes chart work until ctx is done.
func (cs *ChartSet) Run(ctx context.Context) error {
	return cs.loop.Run(ctx)
}

// Load replaces every chart's data. Charts without a live widget are
// built; live ones receive a data update.
func (cs *ChartSet) Load(ctx context.Context, clients []*database.Client) error {
	return cs.loop.Do(ctx, func() {
		for _, name := range cs.order {
			lc := cs.charts[name]
			lc.data = lc.def.series(clients)
			if lc.boundary.Failed() {
				lc.boundary.Reset()
			}
			if lc.ctrl.Handle() == nil {
				cs.build(lc, lc.ctrl.AppliedTheme())
			} else {
				lc.ctrl.UpdateData(lc.data)
			}
		}
	})
}

// Retry clears a failed chart and builds it again.
func (cs *ChartSet) Retry(ctx context.Context, name string) error {
	lc, ok := cs.charts[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChart, name)
	}
	var err error
	doErr := cs.loop.Do(ctx, func() {
		lc.boundary.Reset()
		cs.build(lc, lc.ctrl.AppliedTheme())
		err = lc.boundary.Err()
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// SVG returns the live chart document for name.
func (cs *ChartSet) SVG(ctx context.Context, name string) ([]byte, error) {
	lc, ok := cs.charts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChart, name)
	}

	var (
		svg []byte
		err error
	)
	doErr := cs.loop.Do(ctx, func() {
		if lc.boundary.Failed() {
			err = fmt.Errorf("%w: %v", ErrChartFailed, lc.boundary.Err())
			return
		}
		inst, ok := lc.ctrl.Handle().(*svgchart.Instance)
		if !ok || inst == nil {
			err = fmt.Errorf("%w: %s not built", ErrChartFailed, name)
			return
		}
		svg = inst.SVG()
	})
	if doErr != nil {
		return nil, doErr
	}
	return svg, err
}

// Names lists served charts in display order.
func (cs *ChartSet) Names() []string {
	return append([]string(nil), cs.order...)
}

// Status reports every chart.
func (cs *ChartSet) Status() []ChartStatus {
	out := make([]ChartStatus, 0, len(cs.charts))
	for _, name := range cs.order {
		out = append(out, cs.status(cs.charts[name]))
	}
	return out
}

func (cs *ChartSet) status(lc *liveChart) ChartStatus {
	st := ChartStatus{
		Name:        lc.def.name,
		Phase:       string(lc.ctrl.Phase()),
		Theme:       string(lc.ctrl.AppliedTheme()),
		Opacity:     lc.container.Opacity(),
		Transitions: lc.ctrl.Transitions(),
		Failed:      lc.boundary.Failed(),
	}
	if err := lc.boundary.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

// Dispose tears down every controller.
func (cs *ChartSet) Dispose() {
	for _, lc := range cs.charts {
		lc.ctrl.Dispose()
	}
}

// build renders lc for th and registers it. Runs on the loop.
func (cs *ChartSet) build(lc *liveChart, th theme.Theme) {
	err := lc.boundary.Guard(func() error {
		h, err := cs.widget.Render(lc.data, chart.Options{
			Title:   lc.def.title,
			Palette: theme.PaletteFor(th),
			Format:  lc.def.format,
		})
		if err != nil {
			return err
		}
		lc.ctrl.RegisterChart(h)
		return nil
	})
	if err != nil {
		atomic.AddInt64(&cs.metrics.ChartErrors, 1)
		return
	}
	atomic.AddInt64(&cs.metrics.ChartRenders, 1)
}

func (cs *ChartSet) phaseChanged(lc *liveChart, p chart.Phase) {
	if p == chart.PhaseIdle {
		atomic.AddInt64(&cs.metrics.ChartTransitions, 1)
	}
	cs.broker.Publish(Event{Type: "chart", Data: map[string]any{
		"name":    lc.def.name,
		"phase":   string(p),
		"opacity": lc.container.Opacity(),
	}})
}

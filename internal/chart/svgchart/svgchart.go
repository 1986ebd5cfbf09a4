// Package svgchart renders bar charts to SVG with go-chart for the web
// dashboard.
package svgchart

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/Mr-Dark-debug/pulse/internal/chart"
)

const (
	defaultWidth  = 720
	defaultHeight = 320
	barSpacing    = 12
)

// ErrDestroyed is returned when drawing a destroyed instance.
var ErrDestroyed = errors.New("svgchart: instance destroyed")

// Widget is a chart.Widget producing SVG documents.
type Widget struct {
	mu   sync.Mutex
	live map[string]*Instance
}

func New() *Widget {
	return &Widget{live: make(map[string]*Instance)}
}

// Instance is a rendered SVG chart.
type Instance struct {
	id string

	mu        sync.Mutex
	opts      chart.Options
	svg       []byte
	destroyed bool
}

func (i *Instance) ID() string { return i.id }

// SVG returns a copy of the rendered document.
func (i *Instance) SVG() []byte {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]byte(nil), i.svg...)
}

// Render draws data into a new instance.
func (w *Widget) Render(data chart.Series, opts chart.Options) (chart.Handle, error) {
	svg, err := Draw(data, opts)
	if err != nil {
		return nil, err
	}
	inst := &Instance{id: uuid.NewString(), opts: opts, svg: svg}

	w.mu.Lock()
	w.live[inst.id] = inst
	w.mu.Unlock()
	return inst, nil
}

// Update redraws h. SVG output is static, so mode is ignored.
func (w *Widget) Update(h chart.Handle, data chart.Series, _ chart.UpdateMode) error {
	inst, ok := h.(*Instance)
	if !ok {
		return fmt.Errorf("svgchart: foreign handle %T", h)
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.destroyed {
		return ErrDestroyed
	}
	svg, err := Draw(data, inst.opts)
	if err != nil {
		return err
	}
	inst.svg = svg
	return nil
}

// Destroy releases h. Unknown or destroyed handles are ignored.
func (w *Widget) Destroy(h chart.Handle) error {
	inst, ok := h.(*Instance)
	if !ok || inst == nil {
		return nil
	}
	w.mu.Lock()
	delete(w.live, inst.id)
	w.mu.Unlock()

	inst.mu.Lock()
	inst.destroyed = true
	inst.svg = nil
	inst.mu.Unlock()
	return nil
}

func (w *Widget) Live() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.live)
}

// Draw renders a single-series bar chart as SVG.
func Draw(data chart.Series, opts chart.Options) ([]byte, error) {
	if len(data.Points) == 0 {
		return nil, fmt.Errorf("svgchart: series %q has no points", data.Name)
	}
	p := opts.Palette

	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}

	bars := make([]gochart.Value, 0, len(data.Points))
	for i, pt := range data.Points {
		col := color(p.SeriesColor(i))
		bars = append(bars, gochart.Value{
			Label: pt.Label,
			Value: pt.Value,
			Style: gochart.Style{FillColor: col, StrokeColor: col, StrokeWidth: 1},
		})
	}

	top := data.Max()
	if top <= 0 {
		top = 1
	}

	barWidth := (width-120)/len(bars) - barSpacing
	if barWidth < 8 {
		barWidth = 8
	}

	text := color(p.Text)
	muted := color(p.Muted)
	bc := gochart.BarChart{
		Title:      opts.Title,
		TitleStyle: gochart.Style{FontColor: text, Hidden: opts.Title == ""},
		Width:      width,
		Height:     height,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		Background: gochart.Style{
			FillColor: color(p.Background),
			Padding:   gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16},
		},
		Canvas: gochart.Style{FillColor: color(p.Surface)},
		XAxis:  gochart.Style{FontColor: muted, StrokeColor: color(p.Border)},
		YAxis: gochart.YAxis{
			Style: gochart.Style{FontColor: muted, StrokeColor: color(p.Border)},
			Range: &gochart.ContinuousRange{Min: 0, Max: top * 1.1},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return opts.FormatValue(f)
				}
				return ""
			},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := bc.Render(gochart.SVG, &buf); err != nil {
		return nil, fmt.Errorf("rendering %s chart: %w", data.Name, err)
	}
	return buf.Bytes(), nil
}

func color(hex string) drawing.Color {
	hex = strings.TrimPrefix(hex, "#")
	if hex == "" {
		return drawing.ColorBlack
	}
	return drawing.ColorFromHex(hex)
}

// Package termchart draws horizontal bar charts with lipgloss for the
// terminal dashboard.
package termchart

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/mattn/go-runewidth"

	"github.com/Mr-Dark-debug/pulse/internal/chart"
	"github.com/Mr-Dark-debug/pulse/internal/theme"
)

const (
	barRune   = "█"
	trackRune = "░"
	minWidth  = 24
	maxLabel  = 18
)

// ErrDestroyed is returned when drawing a destroyed instance.
var ErrDestroyed = errors.New("termchart: instance destroyed")

// Widget is a chart.Widget producing terminal strings.
type Widget struct {
	mu   sync.Mutex
	live map[string]*Instance
}

// New returns an empty Widget.
func New() *Widget {
	return &Widget{live: make(map[string]*Instance)}
}

// Instance is a live terminal chart.
type Instance struct {
	id string

	mu        sync.Mutex
	data      chart.Series
	opts      chart.Options
	view      string
	destroyed bool
}

func (i *Instance) ID() string { return i.id }

// View returns the last rendered chart.
func (i *Instance) View() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.view
}

// ViewAt returns the chart as seen through a container at opacity.
// Terminals cannot blend, so anything below 1 redraws in muted colors.
func (i *Instance) ViewAt(opacity float64) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	if opacity >= 1 || i.destroyed {
		return i.view
	}
	opts := i.opts
	opts.Palette = fade(opts.Palette)
	return draw(i.data, opts)
}

// Data returns the series currently drawn.
func (i *Instance) Data() chart.Series {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.data
}

// Render creates and draws a new instance.
func (w *Widget) Render(data chart.Series, opts chart.Options) (chart.Handle, error) {
	inst := &Instance{id: uuid.NewString(), data: data, opts: opts}
	inst.view = draw(data, opts)

	w.mu.Lock()
	w.live[inst.id] = inst
	w.mu.Unlock()
	return inst, nil
}

// Update redraws h with data. Terminal bars do not animate, so mode is
// ignored.
func (w *Widget) Update(h chart.Handle, data chart.Series, _ chart.UpdateMode) error {
	inst, ok := h.(*Instance)
	if !ok {
		return fmt.Errorf("termchart: foreign handle %T", h)
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.destroyed {
		return ErrDestroyed
	}
	inst.data = data
	inst.view = draw(data, inst.opts)
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
	inst.view = ""
	inst.mu.Unlock()
	return nil
}

// Live returns the number of instances not yet destroyed.
func (w *Widget) Live() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.live)
}

func fade(p theme.Palette) theme.Palette {
	p.Text = p.Muted
	p.Series = []string{p.Border}
	return p
}

func draw(data chart.Series, opts chart.Options) string {
	p := opts.Palette
	width := opts.Width
	if width < minWidth {
		width = minWidth
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(p.Text))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Muted))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Text))
	trackStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Border))

	var b strings.Builder
	if opts.Title != "" {
		b.WriteString(titleStyle.Render(opts.Title))
		b.WriteString("\n")
	}
	if len(data.Points) == 0 {
		b.WriteString(labelStyle.Render("no data"))
		return b.String()
	}

	labelWidth, valueWidth := 0, 0
	values := make([]string, len(data.Points))
	for i, pt := range data.Points {
		if w := runewidth.StringWidth(pt.Label); w > labelWidth {
			labelWidth = w
		}
		values[i] = opts.FormatValue(pt.Value)
		if w := runewidth.StringWidth(values[i]); w > valueWidth {
			valueWidth = w
		}
	}
	if labelWidth > maxLabel {
		labelWidth = maxLabel
	}

	barWidth := width - labelWidth - valueWidth - 2
	if barWidth < 4 {
		barWidth = 4
	}
	top := math.Max(data.Max(), 0)

	rows := opts.Height
	if rows <= 0 || rows > len(data.Points) {
		rows = len(data.Points)
	}
	for i, pt := range data.Points[:rows] {
		filled := 0
		if top > 0 && pt.Value > 0 {
			filled = int(math.Round(pt.Value / top * float64(barWidth)))
		}
		label := runewidth.FillRight(runewidth.Truncate(pt.Label, labelWidth, "…"), labelWidth)
		bar := lipgloss.NewStyle().Foreground(lipgloss.Color(p.SeriesColor(i))).Render(strings.Repeat(barRune, filled))
		track := trackStyle.Render(strings.Repeat(trackRune, barWidth-filled))

		b.WriteString(labelStyle.Render(label))
		b.WriteString(" ")
		b.WriteString(bar)
		b.WriteString(track)
		b.WriteString(" ")
		b.WriteString(valueStyle.Render(runewidth.FillLeft(values[i], valueWidth)))
		if i < rows-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

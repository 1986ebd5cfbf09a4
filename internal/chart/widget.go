// Package chart manages the lifecycle of chart widgets that follow the theme
// signal.
//
// A Controller owns at most one live widget Handle. When the resolved theme
// changes it dims the chart's container, waits a frame and a short delay,
// destroys the old widget, restores the container and asks its owner to
// rebuild with the new palette. Data updates bypass that sequence and are
// applied to the live handle in place.
package chart

import (
	"fmt"

	"github.com/Mr-Dark-debug/pulse/internal/theme"
)

// Point is one labelled value.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Series is the data a widget draws.
type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// Max returns the largest value in the series, or 0 when empty.
func (s Series) Max() float64 {
	var top float64
	for i, p := range s.Points {
		if i == 0 || p.Value > top {
			top = p.Value
		}
	}
	return top
}

// Options configure how a widget renders.
type Options struct {
	Title   string
	Palette theme.Palette
	Width   int
	Height  int
	// Format renders a value label. Nil uses %.0f.
	Format func(float64) string
}

// FormatValue applies Format.
func (o Options) FormatValue(v float64) string {
	if o.Format != nil {
		return o.Format(v)
	}
	return fmt.Sprintf("%.0f", v)
}

// UpdateMode selects how Update applies new data.
type UpdateMode int

const (
	// UpdateImmediate replaces data without animation.
	UpdateImmediate UpdateMode = iota
	// UpdateAnimated lets the widget animate toward the new data.
	UpdateAnimated
)

// Handle is a live widget instance.
type Handle interface {
	ID() string
}

// Widget creates, updates and destroys chart instances. Destroying an
// unknown or already destroyed handle is a no-op.
type Widget interface {
	Render(data Series, opts Options) (Handle, error)
	Update(h Handle, data Series, mode UpdateMode) error
	Destroy(h Handle) error
}

// Container is the visual element wrapping a chart.
type Container interface {
	SetOpacity(opacity float64)
}

// Source is the theme signal a Controller follows.
type Source interface {
	Theme() theme.Theme
	Subscribe(fn func(theme.Theme)) func()
}

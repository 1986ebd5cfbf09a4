package svgchart

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr-Dark-debug/pulse/internal/chart"
	"github.com/Mr-Dark-debug/pulse/internal/theme"
)

func series() chart.Series {
	return chart.Series{Name: "revenue", Points: []chart.Point{
		{Label: "Retail", Value: 4200},
		{Label: "Tech", Value: 9100},
	}}
}

func TestRenderProducesSVG(t *testing.T) {
	w := New()
	h, err := w.Render(series(), chart.Options{Title: "Revenue", Palette: theme.PaletteFor(theme.Light)})
	require.NoError(t, err)

	svg := string(h.(*Instance).SVG())
	assert.True(t, strings.HasPrefix(strings.TrimSpace(svg), "<svg"), svg[:min(len(svg), 40)])
	assert.Contains(t, svg, "Retail")
	assert.Contains(t, svg, "Tech")
	assert.Equal(t, 1, w.Live())
}

func TestPaletteChangesOutput(t *testing.T) {
	light, err := Draw(series(), chart.Options{Palette: theme.PaletteFor(theme.Light)})
	require.NoError(t, err)
	dark, err := Draw(series(), chart.Options{Palette: theme.PaletteFor(theme.Dark)})
	require.NoError(t, err)

	assert.NotEqual(t, string(light), string(dark))
}

func TestDrawRejectsEmptySeries(t *testing.T) {
	_, err := Draw(chart.Series{Name: "empty"}, chart.Options{})
	assert.Error(t, err)
}

func TestZeroValuesStillRender(t *testing.T) {
	_, err := Draw(chart.Series{Points: []chart.Point{{Label: "a"}, {Label: "b"}}}, chart.Options{})
	assert.NoError(t, err)
}

func TestUpdateAndDestroy(t *testing.T) {
	w := New()
	h, err := w.Render(series(), chart.Options{})
	require.NoError(t, err)

	next := chart.Series{Points: []chart.Point{{Label: "Energy", Value: 1}}}
	require.NoError(t, w.Update(h, next, chart.UpdateAnimated))
	assert.Contains(t, string(h.(*Instance).SVG()), "Energy")

	require.NoError(t, w.Destroy(h))
	require.NoError(t, w.Destroy(h))
	assert.Zero(t, w.Live())
	assert.ErrorIs(t, w.Update(h, next, chart.UpdateImmediate), ErrDestroyed)
}

package theme

// Palette is the set of colors derived from a theme. Colors are hex strings
// ("#rrggbb") so both lipgloss and SVG renderers can use them directly.
type Palette struct {
	Theme      Theme
	Background string
	Surface    string
	Text       string
	Muted      string
	Accent     string
	Border     string
	Grid       string
	Success    string
	Warning    string
	Danger     string
	// Series colors, cycled by chart widgets.
	Series []string
}

// PaletteFor derives the palette of t. It is a pure function and returns a
// fresh value on every call.
func PaletteFor(t Theme) Palette {
	if t == Dark {
		return Palette{
			Theme:      Dark,
			Background: "#0F172A",
			Surface:    "#1E293B",
			Text:       "#E2E8F0",
			Muted:      "#94A3B8",
			Accent:     "#818CF8",
			Border:     "#334155",
			Grid:       "#1F2A3D",
			Success:    "#34D399",
			Warning:    "#FBBF24",
			Danger:     "#F87171",
			Series:     []string{"#818CF8", "#34D399", "#FBBF24", "#F472B6", "#38BDF8", "#A78BFA"},
		}
	}
	return Palette{
		Theme:      Light,
		Background: "#FFFFFF",
		Surface:    "#F8FAFC",
		Text:       "#0F172A",
		Muted:      "#64748B",
		Accent:     "#4F46E5",
		Border:     "#E2E8F0",
		Grid:       "#F1F5F9",
		Success:    "#059669",
		Warning:    "#D97706",
		Danger:     "#DC2626",
		Series:     []string{"#4F46E5", "#059669", "#D97706", "#DB2777", "#0284C7", "#7C3AED"},
	}
}

// SeriesColor returns the i-th series color, cycling.
func (p Palette) SeriesColor(i int) string {
	if len(p.Series) == 0 {
		return p.Accent
	}
	if i < 0 {
		i = -i
	}
	return p.Series[i%len(p.Series)]
}

// HealthColor returns the status color for a 0-100 health score.
func (p Palette) HealthColor(health float64) string {
	switch {
	case health >= 75:
		return p.Success
	case health >= 50:
		return p.Warning
	default:
		return p.Danger
	}
}

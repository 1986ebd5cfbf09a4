package theme

import (
	"context"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Detector reports the operating system's theme.
type Detector interface {
	Name() string
	// Priority orders detectors; higher runs first.
	Priority() int
	// Available reports whether the detector can run in this environment.
	Available() bool
	// Detect returns the theme, or false when it cannot tell.
	Detect() (Theme, bool)
}

// Watcher is implemented by detectors that can push changes. Watch blocks
// until ctx is done, calling onChange for every observed theme.
type Watcher interface {
	Watch(ctx context.Context, onChange func(Theme)) error
}

// detect runs the detectors in priority order and returns the first answer.
// The fallback is light.
func detect(detectors []Detector) (Theme, string) {
	sorted := make([]Detector, len(detectors))
	copy(sorted, detectors)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() > sorted[j].Priority()
	})

	for _, d := range sorted {
		if !d.Available() {
			continue
		}
		if t, ok := d.Detect(); ok {
			return t, d.Name()
		}
	}
	return Light, "fallback"
}

// EnvDetector reads COLORFGBG, which many terminals export as "fg;bg" using
// ANSI color indexes.
type EnvDetector struct{}

func NewEnvDetector() *EnvDetector { return &EnvDetector{} }

func (*EnvDetector) Name() string  { return "COLORFGBG" }
func (*EnvDetector) Priority() int { return 20 }

func (*EnvDetector) Available() bool {
	return os.Getenv("COLORFGBG") != ""
}

// Detect treats background indexes 0-6 and 8 as dark.
func (*EnvDetector) Detect() (Theme, bool) {
	v := os.Getenv("COLORFGBG")
	if v == "" {
		return "", false
	}
	parts := strings.Split(v, ";")
	bg, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-1]))
	if err != nil || bg < 0 || bg > 15 {
		return "", false
	}
	if bg <= 6 || bg == 8 {
		return Dark, true
	}
	return Light, true
}

// TerminalDetector queries the terminal's background color.
type TerminalDetector struct {
	out *os.File
}

// NewTerminalDetector detects against stdout.
func NewTerminalDetector() *TerminalDetector {
	return &TerminalDetector{out: os.Stdout}
}

func (*TerminalDetector) Name() string  { return "terminal" }
func (*TerminalDetector) Priority() int { return 10 }

func (d *TerminalDetector) Available() bool {
	return d.out != nil && term.IsTerminal(int(d.out.Fd()))
}

func (d *TerminalDetector) Detect() (Theme, bool) {
	if termenv.NewOutput(d.out).HasDarkBackground() {
		return Dark, true
	}
	return Light, true
}

// Package theme owns the process-wide light/dark signal that every chart and
// page in Pulse follows.
//
// A Signal resolves the user's Mode (light, dark or system) against the
// operating system's reported theme and notifies subscribers whenever the
// resolved Theme changes. Consumers never observe "system": Theme() is always
// light or dark.
package theme

import (
	"errors"
	"fmt"
	"strings"
)

// Theme is a resolved color theme.
type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

// Valid reports whether t is light or dark.
func (t Theme) Valid() bool {
	return t == Light || t == Dark
}

// Opposite returns the other theme.
func (t Theme) Opposite() Theme {
	if t == Dark {
		return Light
	}
	return Dark
}

func (t Theme) String() string { return string(t) }

// Mode is the user's theme preference.
type Mode string

const (
	ModeLight  Mode = "light"
	ModeDark   Mode = "dark"
	ModeSystem Mode = "system"
)

// ErrInvalidMode is returned for a mode other than light, dark or system.
var ErrInvalidMode = errors.New("invalid theme mode")

// ParseMode parses a persisted or user-supplied mode string.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeLight, ModeDark, ModeSystem:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// ParseTheme parses free-form text such as "dark", "prefer-dark" or
// "Adwaita-dark". Text naming neither light nor dark reports false.
func ParseTheme(s string) (Theme, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(s, "dark"):
		return Dark, true
	case strings.Contains(s, "light"):
		return Light, true
	default:
		return "", false
	}
}

// Resolve maps a mode to a theme given the system's theme.
func Resolve(mode Mode, system Theme) Theme {
	switch mode {
	case ModeLight:
		return Light
	case ModeDark:
		return Dark
	default:
		if system.Valid() {
			return system
		}
		return Light
	}
}

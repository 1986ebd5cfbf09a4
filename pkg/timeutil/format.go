// Package timeutil provides time formatting utilities for Pulse.
//
// All timestamps in Pulse are stored as Unix nanoseconds (int64).
// This package handles conversion to human-readable formats
// for the dashboards and reports.
package timeutil

import (
	"fmt"
	"time"
)

// FromNano converts a Unix nanosecond timestamp to time.Time.
func FromNano(ns int64) time.Time {
	return time.Unix(0, ns)
}

// ToNano converts a time.Time to Unix nanoseconds.
func ToNano(t time.Time) int64 {
	return t.UnixNano()
}

// NowNano returns the current time as Unix nanoseconds.
func NowNano() int64 {
	return time.Now().UnixNano()
}

// FormatDate formats a Unix nanosecond timestamp as "2006-01-02".
func FormatDate(ns int64) string {
	if ns == 0 {
		return "-"
	}
	return FromNano(ns).Format("2006-01-02")
}

// FormatDuration formats a duration for status lines.
// Examples: "450ms", "1.2s", "2m 15.3s"
func FormatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	seconds := float64(ms) / 1000.0
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}
	minutes := int(seconds / 60)
	remaining := seconds - float64(minutes*60)
	return fmt.Sprintf("%dm %.1fs", minutes, remaining)
}

// RelativeTime returns a human-readable relative time string.
// Examples: "just now", "5s ago", "2m ago", "1h ago"
func RelativeTime(ns int64) string {
	return RelativeTo(ns, time.Now())
}

// RelativeTo is RelativeTime against an explicit reference time.
func RelativeTo(ns int64, now time.Time) string {
	diff := now.Sub(FromNano(ns))

	switch {
	case diff < time.Second:
		return "just now"
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		days := int(diff.Hours() / 24)
		return fmt.Sprintf("%dd ago", days)
	}
}

// Package format renders business figures (currency, percentages, counts)
// consistently across the terminal dashboard, the web pages and reports.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Currency formats an amount as whole dollars with thousands separators.
// Examples: "$500", "$12,400", "-$1,050"
func Currency(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return sign + "$" + groupThousands(int64(math.Round(v)))
}

// CompactCurrency abbreviates large amounts for narrow columns and chart labels.
// Examples: "$950", "$12.4k", "$3.1M"
func CompactCurrency(v float64) string {
	abs := math.Abs(v)
	sign := ""
	if v < 0 {
		sign = "-"
	}
	switch {
	case abs >= 1_000_000:
		return fmt.Sprintf("%s$%.1fM", sign, abs/1_000_000)
	case abs >= 10_000:
		return fmt.Sprintf("%s$%.1fk", sign, abs/1_000)
	default:
		return Currency(v)
	}
}

// Percent formats a 0-100 value with no decimals: "70%".
func Percent(v float64) string {
	return strconv.FormatFloat(math.Round(v), 'f', 0, 64) + "%"
}

// Count formats an integer with thousands separators.
func Count(n int) string {
	return groupThousands(int64(n))
}

func groupThousands(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 && !(neg && b.Len() == 1) {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

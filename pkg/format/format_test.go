package format

import "testing"

func TestCurrency(t *testing.T) {
	tests := map[float64]string{
		0:        "$0",
		500:      "$500",
		2000:     "$2,000",
		1234567:  "$1,234,567",
		-1050.4:  "-$1,050",
		999.5:    "$1,000",
		100000:   "$100,000",
		12345678: "$12,345,678",
	}
	for in, want := range tests {
		if got := Currency(in); got != want {
			t.Errorf("Currency(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestCompactCurrency(t *testing.T) {
	tests := map[float64]string{
		950:     "$950",
		9999:    "$9,999",
		12400:   "$12.4k",
		3100000: "$3.1M",
	}
	for in, want := range tests {
		if got := CompactCurrency(in); got != want {
			t.Errorf("CompactCurrency(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(69.6); got != "70%" {
		t.Errorf("Percent(69.6) = %q, want 70%%", got)
	}
	if got := Count(1234); got != "1,234" {
		t.Errorf("Count(1234) = %q, want 1,234", got)
	}
}

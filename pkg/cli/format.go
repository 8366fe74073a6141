package cli

import (
	"fmt"
	"math"
	"time"
)

// FormatDuration renders d as 850ms, 2.5s or 1m3.0s.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	secs := d.Seconds()
	if secs < 60 {
		return fmt.Sprintf("%.1fs", secs)
	}
	mins := int(secs / 60)
	return fmt.Sprintf("%dm%.1fs", mins, secs-float64(mins*60))
}

// FormatSamples renders a sample count at rate Hz as a duration.
func FormatSamples(n, rate int) string {
	if rate <= 0 {
		return FormatDuration(0)
	}
	return FormatDuration(time.Duration(int64(n) * int64(time.Second) / int64(rate)))
}

// FormatSize renders a model blob size.
func FormatSize(n int) string {
	const (
		KB = 1024
		MB = KB * 1024
	)
	switch {
	case n >= MB:
		return fmt.Sprintf("%.2f MB", float64(n)/MB)
	case n >= KB:
		return fmt.Sprintf("%.1f KB", float64(n)/KB)
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// FormatScore renders a mean log-likelihood. The score of an empty
// registry is -inf.
func FormatScore(s float64) string {
	switch {
	case math.IsInf(s, -1):
		return "-inf"
	case math.IsInf(s, 1):
		return "+inf"
	case math.IsNaN(s):
		return "nan"
	}
	return fmt.Sprintf("%.2f", s)
}

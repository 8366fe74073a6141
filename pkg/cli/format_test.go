package cli

import (
	"math"
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0ms"},
		{25 * time.Millisecond, "25ms"},
		{999 * time.Millisecond, "999ms"},
		{time.Second, "1.0s"},
		{1500 * time.Millisecond, "1.5s"},
		{59 * time.Second, "59.0s"},
		{time.Minute, "1m0.0s"},
		{125500 * time.Millisecond, "2m5.5s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatDuration(tt.d); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestFormatSamples(t *testing.T) {
	tests := []struct {
		n, rate int
		want    string
	}{
		{0, 16000, "0ms"},
		{400, 16000, "25ms"},
		{16000, 16000, "1.0s"},
		{48000, 16000, "3.0s"},
		{24000, 8000, "3.0s"},
		{100, 0, "0ms"},
	}
	for _, tt := range tests {
		if got := FormatSamples(tt.n, tt.rate); got != tt.want {
			t.Errorf("FormatSamples(%d, %d) = %q, want %q", tt.n, tt.rate, got, tt.want)
		}
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{3 * 1024, "3.0 KB"},
		{1536, "1.5 KB"},
		{1024 * 1024, "1.00 MB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.n); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestFormatScore(t *testing.T) {
	tests := []struct {
		s    float64
		want string
	}{
		{-31.254, "-31.25"},
		{0, "0.00"},
		{math.Inf(-1), "-inf"},
		{math.Inf(1), "+inf"},
		{math.NaN(), "nan"},
	}
	for _, tt := range tests {
		if got := FormatScore(tt.s); got != tt.want {
			t.Errorf("FormatScore(%v) = %q, want %q", tt.s, got, tt.want)
		}
	}
}

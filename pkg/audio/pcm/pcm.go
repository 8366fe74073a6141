package pcm

import (
	"fmt"
	"math"
)

const (
	// L16Mono16K represents audio/L16; rate=16000; channels=1
	L16Mono16K Format = iota
	// L16Mono24K represents audio/L16; rate=24000; channels=1
	L16Mono24K
	// L16Mono48K represents audio/L16; rate=48000; channels=1
	L16Mono48K
)

// Format is a 16-bit little-endian mono PCM layout.
type Format int

// FormatForRate returns the Format with the given sample rate.
func FormatForRate(rate int) (Format, error) {
	switch rate {
	case 16000:
		return L16Mono16K, nil
	case 24000:
		return L16Mono24K, nil
	case 48000:
		return L16Mono48K, nil
	}
	return 0, fmt.Errorf("pcm: unsupported sample rate %d", rate)
}

// SampleRate returns the sample rate in Hz for this format.
func (f Format) SampleRate() int {
	switch f {
	case L16Mono16K:
		return 16000
	case L16Mono24K:
		return 24000
	case L16Mono48K:
		return 48000
	}
	panic("pcm: invalid audio type")
}

// String returns the MIME-style name of the format.
func (f Format) String() string {
	return fmt.Sprintf("audio/L16; rate=%d; channels=1", f.SampleRate())
}

// Decode converts 16-bit little-endian PCM to float32 samples in [-1, 1).
// A trailing odd byte is ignored.
func Decode(b []byte) []float32 {
	n := len(b) / 2
	out := make([]float32, n)
	for i := range out {
		s := int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
		out[i] = float32(s) / 32768
	}
	return out
}

// Encode converts float32 samples to 16-bit little-endian PCM, clipping to
// the int16 range.
func Encode(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		s := int16(max(math.MinInt16, min(math.MaxInt16, math.Round(float64(v)*32768))))
		out[2*i] = byte(s)
		out[2*i+1] = byte(uint16(s) >> 8)
	}
	return out
}

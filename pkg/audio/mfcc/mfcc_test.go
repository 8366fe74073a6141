package mfcc

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func sine(n int, freq float64, sampleRate int) []float32 {
	pcm := make([]float32, n)
	for i := range pcm {
		pcm[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return pcm
}

func TestHammingWindow(t *testing.T) {
	w := hammingWindow(400)
	if len(w) != 400 {
		t.Fatalf("expected 400, got %d", len(w))
	}
	if math.Abs(w[0]-0.08) > 1e-9 || math.Abs(w[399]-0.08) > 1e-9 {
		t.Errorf("endpoints = %f, %f, want 0.08", w[0], w[399])
	}
	if math.Abs(w[199]-1.0) > 0.001 {
		t.Errorf("w[199] = %f, want ~1.0", w[199])
	}

	if w := hammingWindow(1); len(w) != 1 || w[0] != 1 {
		t.Errorf("hammingWindow(1) = %v, want [1]", w)
	}
}

func TestMelConversion(t *testing.T) {
	mel := hzToMel(1000)
	if math.Abs(mel-1000.0) > 1.0 {
		t.Errorf("hzToMel(1000) = %f, want ~1000", mel)
	}
	if hz := melToHz(mel); math.Abs(hz-1000) > 1e-6 {
		t.Errorf("melToHz(hzToMel(1000)) = %f, want 1000", hz)
	}
}

func TestPreEmphasize(t *testing.T) {
	y := PreEmphasize([]float32{1, 1, 1}, 0.97)
	want := []float64{1, 0.03, 0.03}
	for i := range want {
		if math.Abs(y[i]-want[i]) > 1e-6 {
			t.Errorf("y[%d] = %f, want %f", i, y[i], want[i])
		}
	}
	if y := PreEmphasize(nil, 0.97); len(y) != 0 {
		t.Errorf("empty input: got %d samples", len(y))
	}
}

func TestFrameCount(t *testing.T) {
	tests := []struct {
		n, l, s, want int
	}{
		{1, 400, 160, 1},
		{400, 400, 160, 1},
		{401, 400, 160, 2},
		{560, 400, 160, 2},
		{561, 400, 160, 3},
		{16000, 400, 160, 99},
		{48000, 400, 160, 299},
	}
	for _, tt := range tests {
		if got := FrameCount(tt.n, tt.l, tt.s); got != tt.want {
			t.Errorf("FrameCount(%d, %d, %d) = %d, want %d", tt.n, tt.l, tt.s, got, tt.want)
		}
	}
}

func TestFramePadsTail(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	frames := Frame(x, 4, 2)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	want := [][]float64{{1, 2, 3, 4}, {3, 4, 5, 0}}
	for i := range want {
		for j := range want[i] {
			if frames[i][j] != want[i][j] {
				t.Errorf("frames[%d][%d] = %f, want %f", i, j, frames[i][j], want[i][j])
			}
		}
	}
}

func TestPowerSpectrum(t *testing.T) {
	// DC + first harmonic in an 8-sample window
	n := 8
	frame := make([]float64, n)
	for i := range frame {
		frame[i] = 1.0 + math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	p := PowerSpectrum([][]float64{frame}, n)
	rows, cols := p.Dims()
	if rows != 1 || cols != n/2+1 {
		t.Fatalf("dims = %dx%d, want 1x%d", rows, cols, n/2+1)
	}
	if math.Abs(p.At(0, 0)-64) > 1e-9 {
		t.Errorf("DC power = %f, want 64", p.At(0, 0))
	}
	if math.Abs(p.At(0, 1)-16) > 1e-9 {
		t.Errorf("H1 power = %f, want 16", p.At(0, 1))
	}
	if p.At(0, 2) > 1e-9 {
		t.Errorf("H2 power = %f, want 0", p.At(0, 2))
	}
}

func TestPowerSpectrumTruncates(t *testing.T) {
	frame := []float64{1, 1, 1, 1, 9, 9, 9, 9}
	p := PowerSpectrum([][]float64{frame}, 4)
	if math.Abs(p.At(0, 0)-16) > 1e-9 {
		t.Errorf("DC power = %f, want 16", p.At(0, 0))
	}
}

func TestMelFilterBank(t *testing.T) {
	bank := MelFilterBank(26, 512, 16000, 0, 8000)
	rows, cols := bank.Dims()
	if rows != 26 || cols != 257 {
		t.Fatalf("dims = %dx%d, want 26x257", rows, cols)
	}
	for m := 0; m < rows; m++ {
		row := bank.RawRowView(m)
		peak := 0.0
		for _, v := range row {
			if v < 0 || v > 1 {
				t.Fatalf("filter %d has weight %f outside [0,1]", m, v)
			}
			peak = max(peak, v)
		}
		if peak != 1 {
			t.Errorf("filter %d peaks at %f, want 1", m, peak)
		}
	}
}

func TestDCTBasisOrthonormal(t *testing.T) {
	d := DCTBasis(26, 26)
	var g mat.Dense
	g.Mul(d, d.T())
	for i := 0; i < 26; i++ {
		for j := 0; j < 26; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(g.At(i, j)-want) > 1e-9 {
				t.Fatalf("DDᵀ[%d][%d] = %g, want %g", i, j, g.At(i, j), want)
			}
		}
	}
}

func TestExtract(t *testing.T) {
	ext, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	for _, n := range []int{1, 399, 400, 401, 8000, 16000} {
		features, err := ext.Extract(sine(n, 440, 16000))
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if want := FrameCount(n, 400, 160); features.Rows() != want {
			t.Errorf("n=%d: got %d frames, want %d", n, features.Rows(), want)
		}
		if len(features[0]) != 13 {
			t.Errorf("n=%d: got %d coefficients, want 13", n, len(features[0]))
		}
		for i, row := range features {
			for j, v := range row {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Fatalf("n=%d: features[%d][%d] = %f (not finite)", n, i, j, v)
				}
			}
		}
	}
}

func TestExtractSilenceIsFinite(t *testing.T) {
	ext, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	features, err := ext.Extract(make([]float32, 1600))
	if err != nil {
		t.Fatal(err)
	}
	// ln(1e-10) projected onto the zeroth basis vector
	want := math.Log(1e-10) * math.Sqrt(26)
	if math.Abs(features[0][0]-want) > 1e-6 {
		t.Errorf("c0 = %f, want %f", features[0][0], want)
	}
	for c := 1; c < 13; c++ {
		if math.Abs(features[0][c]) > 1e-6 {
			t.Errorf("c%d = %f, want 0", c, features[0][c])
		}
	}
}

func TestExtractEmpty(t *testing.T) {
	ext, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ext.Extract(nil); !errors.Is(err, ErrEmptySignal) {
		t.Errorf("err = %v, want ErrEmptySignal", err)
	}
}

func TestExtractInt16(t *testing.T) {
	ext, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	n := 8000
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		s := int16(math.Sin(2*math.Pi*440*float64(i)/16000) * 32767)
		pcm[i*2] = byte(s)
		pcm[i*2+1] = byte(s >> 8)
	}

	features, err := ext.ExtractInt16(pcm)
	if err != nil {
		t.Fatal(err)
	}
	if features.Rows() != FrameCount(n, 400, 160) {
		t.Errorf("got %d frames", features.Rows())
	}
}

func TestExtractDeterministic(t *testing.T) {
	ext, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	pcm := sine(4000, 300, 16000)
	a, _ := ext.Extract(pcm)
	b, _ := ext.Extract(pcm)
	for i := range a {
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				t.Fatalf("features differ at [%d][%d]", i, j)
			}
		}
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	mutate := []func(*Config){
		func(c *Config) { c.SampleRate = 0 },
		func(c *Config) { c.FrameSize = 0 },
		func(c *Config) { c.FrameStep = 0 },
		func(c *Config) { c.FFTSize = 1 },
		func(c *Config) { c.NumFilters = 0 },
		func(c *Config) { c.NumCeps = 27 },
		func(c *Config) { c.HighFreq = 9000 },
		func(c *Config) { c.LowFreq = 8000 },
	}
	for i, m := range mutate {
		cfg := DefaultConfig()
		m(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("case %d: err = %v, want ErrInvalidConfig", i, err)
		}
		if _, err := New(cfg); err == nil {
			t.Errorf("case %d: New accepted invalid config", i)
		}
	}
}

func BenchmarkExtract(b *testing.B) {
	ext, err := New(DefaultConfig())
	if err != nil {
		b.Fatal(err)
	}
	pcm := sine(48000, 440, 16000)

	b.ResetTimer()
	b.ReportAllocs()
	for range b.N {
		_, _ = ext.Extract(pcm)
	}
}

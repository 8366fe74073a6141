// Package mfcc computes mel-frequency cepstral coefficients from PCM audio.
//
// The pipeline runs in a fixed order:
//
//	pre-emphasis → framing → Hamming window → power spectrum →
//	mel filterbank → log compression → DCT-II (orthonormal)
//
// Default parameters match the classic speaker identification front end:
//
//	SampleRate:  16000
//	FrameSize:   0.025 s (400 samples)
//	FrameStep:   0.010 s (160 samples)
//	FFTSize:     512
//	NumFilters:  26
//	NumCeps:     13
//	PreEmphasis: 0.97
//	LowFreq:     0
//	HighFreq:    SampleRate/2
//
// The output is a [T][NumCeps] float64 matrix where T follows the padded
// framing rule T = max(1, ceil((N-L)/S) + 1).
package mfcc

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"

	"github.com/haivivi/speakerid/pkg/audio/pcm"
)

// Sentinel errors.
var (
	// ErrEmptySignal is returned when Extract is called with no samples.
	ErrEmptySignal = errors.New("mfcc: empty signal")

	// ErrNoFrames is returned when framing produces no frames.
	ErrNoFrames = errors.New("mfcc: no frames")

	// ErrInvalidConfig is returned by Config.Validate and New.
	ErrInvalidConfig = errors.New("mfcc: invalid config")
)

// Config controls MFCC extraction parameters. It is comparable and can be
// used as a map key.
type Config struct {
	SampleRate  int     // audio sample rate in Hz (default 16000)
	FrameSize   float64 // frame length in seconds (default 0.025)
	FrameStep   float64 // hop length in seconds (default 0.01)
	FFTSize     int     // FFT size (default 512)
	NumFilters  int     // number of mel filters (default 26)
	NumCeps     int     // cepstral coefficients kept (default 13)
	PreEmphasis float64 // pre-emphasis coefficient (default 0.97)
	LowFreq     float64 // lowest filterbank frequency in Hz (default 0)
	HighFreq    float64 // highest filterbank frequency in Hz (0 = SampleRate/2)
	LogFloor    float64 // epsilon added before the log (default 1e-10)
}

// DefaultConfig returns the standard 13-coefficient MFCC config.
func DefaultConfig() Config {
	return Config{
		SampleRate:  16000,
		FrameSize:   0.025,
		FrameStep:   0.01,
		FFTSize:     512,
		NumFilters:  26,
		NumCeps:     13,
		PreEmphasis: 0.97,
		LogFloor:    1e-10,
	}
}

// FrameLength returns the frame length in samples, round(FrameSize*SampleRate).
func (c Config) FrameLength() int {
	return int(math.Round(c.FrameSize * float64(c.SampleRate)))
}

// FrameHop returns the frame step in samples, round(FrameStep*SampleRate).
func (c Config) FrameHop() int {
	return int(math.Round(c.FrameStep * float64(c.SampleRate)))
}

func (c Config) highFreq() float64 {
	if c.HighFreq <= 0 {
		return float64(c.SampleRate) / 2
	}
	return c.HighFreq
}

// Validate reports whether the config describes a usable pipeline.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, c.SampleRate)
	case c.FrameLength() <= 0:
		return fmt.Errorf("%w: frame size %gs", ErrInvalidConfig, c.FrameSize)
	case c.FrameHop() <= 0:
		return fmt.Errorf("%w: frame step %gs", ErrInvalidConfig, c.FrameStep)
	case c.FFTSize < 2:
		return fmt.Errorf("%w: fft size %d", ErrInvalidConfig, c.FFTSize)
	case c.NumFilters <= 0:
		return fmt.Errorf("%w: num filters %d", ErrInvalidConfig, c.NumFilters)
	case c.NumCeps <= 0 || c.NumCeps > c.NumFilters:
		return fmt.Errorf("%w: num ceps %d (filters %d)", ErrInvalidConfig, c.NumCeps, c.NumFilters)
	case c.LowFreq < 0 || c.LowFreq >= c.highFreq():
		return fmt.Errorf("%w: frequency range [%g, %g]", ErrInvalidConfig, c.LowFreq, c.highFreq())
	case c.highFreq() > float64(c.SampleRate)/2:
		return fmt.Errorf("%w: high freq %g above nyquist", ErrInvalidConfig, c.highFreq())
	case c.LogFloor < 0:
		return fmt.Errorf("%w: log floor %g", ErrInvalidConfig, c.LogFloor)
	}
	return nil
}

// Matrix is a feature matrix: one row per frame, in time order.
type Matrix [][]float64

// Rows returns the number of frames.
func (m Matrix) Rows() int { return len(m) }

// Extractor computes MFCC features. The window, filterbank and DCT basis
// are derived from the config once and shared by every call. An Extractor
// is safe for concurrent use.
type Extractor struct {
	cfg      Config
	frameLen int
	hop      int
	window   []float64
	melBank  *mat.Dense // NumFilters × (FFTSize/2+1)
	dctBasis *mat.Dense // NumCeps × NumFilters
	ffts     sync.Pool
}

// New creates an Extractor for cfg.
func New(cfg Config) (*Extractor, error) {
	if cfg.LogFloor == 0 {
		cfg.LogFloor = DefaultConfig().LogFloor
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Extractor{
		cfg:      cfg,
		frameLen: cfg.FrameLength(),
		hop:      cfg.FrameHop(),
	}
	e.window = hammingWindow(e.frameLen)
	e.melBank = MelFilterBank(cfg.NumFilters, cfg.FFTSize, cfg.SampleRate, cfg.LowFreq, cfg.highFreq())
	e.dctBasis = DCTBasis(cfg.NumCeps, cfg.NumFilters)
	nfft := cfg.FFTSize
	e.ffts.New = func() any { return fourier.NewFFT(nfft) }
	return e, nil
}

// Config returns the extractor's config.
func (e *Extractor) Config() Config { return e.cfg }

// Extract computes MFCC features from float32 samples in [-1, 1].
// Output: [T][NumCeps] where T = FrameCount(len(samples), FrameLength, FrameHop).
func (e *Extractor) Extract(samples []float32) (Matrix, error) {
	if len(samples) == 0 {
		return nil, ErrEmptySignal
	}

	emphasized := PreEmphasize(samples, e.cfg.PreEmphasis)
	frames := Frame(emphasized, e.frameLen, e.hop)
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	applyWindow(frames, e.window)

	fft := e.ffts.Get().(*fourier.FFT)
	power := powerSpectrum(fft, frames, e.cfg.FFTSize)
	e.ffts.Put(fft)

	mel := ApplyFilterBank(power, e.melBank)
	LogCompress(mel, e.cfg.LogFloor)
	return Cepstrum(mel, e.dctBasis), nil
}

// ExtractInt16 is a convenience wrapper for raw PCM16 little-endian bytes.
func (e *Extractor) ExtractInt16(data []byte) (Matrix, error) {
	return e.Extract(pcm.Decode(data))
}

// Package voiceprint identifies speakers from short audio clips by comparing
// MFCC features against per-speaker Gaussian mixture voiceprints.
//
// # Architecture
//
// A Service owns three stages:
//
//  1. Enroll: samples → MFCC matrix (package mfcc) → GMM (package gmm) →
//     model blob + speaker record in a kv.Store
//  2. Recognize: samples → MFCC matrix → mean log-likelihood under every
//     enrolled model → best speaker, optionally rejected by a threshold
//  3. Session: a growing buffer of streamed chunks that is re-recognized
//     once it holds at least one frame
//
// # Storage Layout
//
// With the default prefix "speakerid":
//
//	speakerid:speaker:{id}            → SpeakerRecord (JSON)
//	speakerid:model:{id}:{version}    → gmm model blob (msgpack)
//
// The speaker record is written after the model blob and is the commit
// point: readers only follow records, so a half-finished enrollment is
// never visible. Stale model versions are swept after the record is
// replaced.
//
// # Stabilization
//
// Detector smooths a stream of outcomes over a sliding window and reports
// a speaker only when recent winners agree.
package voiceprint

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/haivivi/speakerid/pkg/audio/mfcc"
	"github.com/haivivi/speakerid/pkg/kv"
)

var (
	// ErrInvalidAudio is returned for empty or undecodable audio.
	ErrInvalidAudio = errors.New("voiceprint: invalid audio")

	// ErrFeatureExtraction is returned when audio yields no feature frames.
	ErrFeatureExtraction = errors.New("voiceprint: feature extraction failed")

	// ErrStorage wraps failures of the underlying kv.Store.
	ErrStorage = errors.New("voiceprint: storage error")

	// ErrSpeakerNotFound is returned by GetSpeaker for unknown ids.
	ErrSpeakerNotFound = errors.New("voiceprint: speaker not found")

	// ErrInvalidSpeakerID is returned for empty ids and ids containing
	// ':', '/' or '\'.
	ErrInvalidSpeakerID = errors.New("voiceprint: invalid speaker id")

	// ErrSessionClosed is returned by Consume after Close.
	ErrSessionClosed = errors.New("voiceprint: session closed")

	// ErrSessionFull is returned by Consume when a chunk would grow the
	// session past SessionOptions.MaxSamples.
	ErrSessionFull = errors.New("voiceprint: session full")
)

// Config holds the feature and model parameters shared by enrollment and
// recognition. Zero fields take the defaults from DefaultConfig.
type Config struct {
	SampleRate int     `json:"sample_rate" yaml:"sample_rate"`
	FrameSize  float64 `json:"frame_size" yaml:"frame_size"`
	FrameStep  float64 `json:"frame_step" yaml:"frame_step"`
	FFTSize    int     `json:"fft_size" yaml:"fft_size"`
	NumFilters int     `json:"num_filters" yaml:"num_filters"`
	NumCeps    int     `json:"num_ceps" yaml:"num_ceps"`
	Mixtures   int     `json:"mixtures" yaml:"mixtures"`
	MaxIter    int     `json:"max_iter" yaml:"max_iter"`

	// ScoreThreshold rejects recognitions whose best score is below it.
	// Nil accepts every best match.
	ScoreThreshold *float64 `json:"score_threshold,omitempty" yaml:"score_threshold,omitempty"`
}

// DefaultConfig returns 16 kHz, 25/10 ms frames, 512-point FFT, 26 mel
// filters, 13 coefficients and 8 mixtures.
func DefaultConfig() Config {
	return Config{
		SampleRate: 16000,
		FrameSize:  0.025,
		FrameStep:  0.01,
		FFTSize:    512,
		NumFilters: 26,
		NumCeps:    13,
		Mixtures:   8,
		MaxIter:    100,
	}
}

// WithDefaults returns c with zero fields replaced by DefaultConfig values.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.SampleRate == 0 {
		c.SampleRate = d.SampleRate
	}
	if c.FrameSize == 0 {
		c.FrameSize = d.FrameSize
	}
	if c.FrameStep == 0 {
		c.FrameStep = d.FrameStep
	}
	if c.FFTSize == 0 {
		c.FFTSize = d.FFTSize
	}
	if c.NumFilters == 0 {
		c.NumFilters = d.NumFilters
	}
	if c.NumCeps == 0 {
		c.NumCeps = d.NumCeps
	}
	if c.Mixtures == 0 {
		c.Mixtures = d.Mixtures
	}
	if c.MaxIter == 0 {
		c.MaxIter = d.MaxIter
	}
	return c
}

// Features returns the MFCC config for c.
func (c Config) Features() mfcc.Config {
	f := mfcc.DefaultConfig()
	f.SampleRate = c.SampleRate
	f.FrameSize = c.FrameSize
	f.FrameStep = c.FrameStep
	f.FFTSize = c.FFTSize
	f.NumFilters = c.NumFilters
	f.NumCeps = c.NumCeps
	return f
}

// Validate checks c after defaults are applied.
func (c Config) Validate() error {
	c = c.WithDefaults()
	if err := c.Features().Validate(); err != nil {
		return err
	}
	if c.Mixtures < 0 || c.MaxIter < 0 {
		return fmt.Errorf("%w: mixtures=%d max_iter=%d", mfcc.ErrInvalidConfig, c.Mixtures, c.MaxIter)
	}
	return nil
}

// MinSamples returns the number of samples in one analysis frame,
// round(SampleRate * FrameSize).
func (c Config) MinSamples() int {
	c = c.WithDefaults()
	return c.Features().FrameLength()
}

// Outcome is the result of one recognition.
type Outcome struct {
	// Speaker is the best matching speaker, or empty when nobody is
	// enrolled or the best score fell below the threshold.
	Speaker string

	// Score is the best mean log-likelihood (-Inf when nobody is enrolled).
	Score float64

	// Scores holds the score of every enrolled speaker.
	Scores map[string]float64

	Rejected bool
}

type outcomeJSON struct {
	Speaker  *string            `json:"speaker"`
	Score    *float64           `json:"score"`
	Scores   map[string]float64 `json:"scores"`
	Rejected bool               `json:"rejected"`
}

// MarshalJSON encodes an empty speaker and a non-finite score as null.
func (o Outcome) MarshalJSON() ([]byte, error) {
	v := outcomeJSON{Scores: o.Scores, Rejected: o.Rejected}
	if o.Speaker != "" {
		v.Speaker = &o.Speaker
	}
	if !math.IsInf(o.Score, 0) && !math.IsNaN(o.Score) {
		v.Score = &o.Score
	}
	if v.Scores == nil {
		v.Scores = map[string]float64{}
	}
	return json.Marshal(v)
}

// UnmarshalJSON decodes a null score as -Inf.
func (o *Outcome) UnmarshalJSON(b []byte) error {
	var v outcomeJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*o = Outcome{Scores: v.Scores, Rejected: v.Rejected, Score: math.Inf(-1)}
	if v.Speaker != nil {
		o.Speaker = *v.Speaker
	}
	if v.Score != nil {
		o.Score = *v.Score
	}
	return nil
}

// DefaultPrefix is the key prefix used when Options.Prefix is empty.
const DefaultPrefix = "speakerid"

// Options configures a Service.
type Options struct {
	// Store holds speaker records and model blobs. Required.
	Store kv.Store

	// Prefix is the first key segment of every key (DefaultPrefix if empty).
	Prefix string

	Logger *slog.Logger
}

// Service enrolls and recognizes speakers. It is safe for concurrent use.
type Service struct {
	store  kv.Store
	prefix string
	logger *slog.Logger

	extractors *extractorCache
	models     *modelCache
	locks      *keyedMutex
}

// New creates a Service over opts.Store.
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("voiceprint: store is required")
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if err := validateID(prefix); err != nil {
		return nil, fmt.Errorf("voiceprint: prefix: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      opts.Store,
		prefix:     prefix,
		logger:     logger,
		extractors: newExtractorCache(),
		models:     newModelCache(),
		locks:      newKeyedMutex(),
	}, nil
}

// extract computes features for samples, mapping mfcc errors to the
// package's sentinels.
func (s *Service) extract(cfg Config, samples []float32) (mfcc.Matrix, error) {
	ext, err := s.extractors.get(cfg.Features())
	if err != nil {
		return nil, err
	}
	feats, err := ext.Extract(samples)
	switch {
	case errors.Is(err, mfcc.ErrEmptySignal):
		return nil, fmt.Errorf("%w: %w", ErrInvalidAudio, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrFeatureExtraction, err)
	case feats.Rows() == 0:
		return nil, fmt.Errorf("%w: %w", ErrFeatureExtraction, mfcc.ErrNoFrames)
	}
	return feats, nil
}

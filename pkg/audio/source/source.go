// Package source provides audio sources: finite streams read from WAV or
// raw PCM files, in-memory sample slices, and (in package capture) live
// microphones. Every source yields mono float32 chunks in [-1, 1] at a
// fixed sample rate.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"path"
	"strings"

	"github.com/haivivi/speakerid/pkg/audio/pcm"
	"github.com/haivivi/speakerid/pkg/storage"
)

// DefaultChunkSize is the number of samples per chunk for file sources
// (100 ms at 16 kHz).
const DefaultChunkSize = 1600

var (
	// ErrUnsupportedFormat is returned for audio files that cannot be decoded.
	ErrUnsupportedFormat = errors.New("source: unsupported audio format")

	// ErrConsumed is yielded when a single-use source is streamed twice.
	ErrConsumed = errors.New("source: already consumed")
)

// Source is a single-use stream of audio chunks.
type Source interface {
	// SampleRate returns the rate of the yielded samples in Hz.
	SampleRate() int

	// Stream yields chunks until the source is exhausted, an error occurs,
	// or ctx is canceled. Chunks are owned by the receiver.
	Stream(ctx context.Context) iter.Seq2[[]float32, error]
}

// Collect drains src into one contiguous signal.
func Collect(ctx context.Context, src Source) ([]float32, error) {
	var out []float32
	for chunk, err := range src.Stream(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

// Samples is a Source over an in-memory signal. Unlike file sources it can
// be streamed any number of times.
type Samples struct {
	data      []float32
	rate      int
	chunkSize int
}

// NewSamples creates a Source that yields data in chunks of chunkSize
// samples (DefaultChunkSize if <= 0).
func NewSamples(data []float32, rate, chunkSize int) *Samples {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Samples{data: data, rate: rate, chunkSize: chunkSize}
}

func (s *Samples) SampleRate() int { return s.rate }

func (s *Samples) Stream(ctx context.Context) iter.Seq2[[]float32, error] {
	return func(yield func([]float32, error) bool) {
		for start := 0; start < len(s.data); start += s.chunkSize {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			end := min(start+s.chunkSize, len(s.data))
			if !yield(append([]float32(nil), s.data[start:end]...), nil) {
				return
			}
		}
	}
}

// PCM is a Source over a raw 16-bit little-endian mono PCM reader, such as
// stdin or a .pcm file.
type PCM struct {
	r         io.Reader
	format    pcm.Format
	chunkSize int
	used      bool
}

// NewPCM creates a PCM source reading from r.
func NewPCM(r io.Reader, format pcm.Format, chunkSize int) *PCM {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &PCM{r: r, format: format, chunkSize: chunkSize}
}

func (p *PCM) SampleRate() int { return p.format.SampleRate() }

func (p *PCM) Stream(ctx context.Context) iter.Seq2[[]float32, error] {
	return func(yield func([]float32, error) bool) {
		if p.used {
			yield(nil, ErrConsumed)
			return
		}
		p.used = true
		buf := make([]byte, p.chunkSize*2)
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			n, err := io.ReadFull(p.r, buf)
			if n >= 2 {
				if !yield(pcm.Decode(buf[:n]), nil) {
					return
				}
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("source: read pcm: %w", err))
				return
			}
		}
	}
}

// Open opens an audio file from store by extension: ".wav" is decoded and
// resampled to rate; ".pcm" and ".raw" are read as 16-bit mono PCM that
// must already be at rate.
func Open(ctx context.Context, store storage.FileStore, name string, rate int) (Source, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".wav":
		w, err := OpenWAV(ctx, store, name, WAVOptions{TargetRate: rate})
		if err != nil {
			return nil, err
		}
		return w, nil
	case ".pcm", ".raw":
		format, err := pcm.FormatForRate(rate)
		if err != nil {
			return nil, err
		}
		rc, err := store.Read(ctx, name)
		if err != nil {
			return nil, err
		}
		return &closingSource{Source: NewPCM(rc, format, 0), c: rc}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

// closingSource closes c once its stream ends.
type closingSource struct {
	Source
	c io.Closer
}

func (s *closingSource) Stream(ctx context.Context) iter.Seq2[[]float32, error] {
	return func(yield func([]float32, error) bool) {
		defer s.c.Close()
		for chunk, err := range s.Source.Stream(ctx) {
			if !yield(chunk, err) {
				return
			}
		}
	}
}

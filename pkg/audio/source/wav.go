package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/haivivi/speakerid/pkg/audio/resampler"
	"github.com/haivivi/speakerid/pkg/storage"
)

// WAVOptions configures a WAV source.
type WAVOptions struct {
	// TargetRate resamples the file to this rate. Zero keeps the file rate.
	TargetRate int

	// ChunkSize is the number of output samples per chunk before
	// resampling (DefaultChunkSize if zero).
	ChunkSize int
}

// WAV is a Source over a 16, 24 or 32-bit integer PCM WAV file.
// Multi-channel audio is downmixed to mono.
type WAV struct {
	dec       *wav.Decoder
	rate      int
	channels  int
	bitDepth  int
	target    int
	chunkSize int
	used      bool
}

// OpenWAV reads the WAV file at name from store and validates its header.
func OpenWAV(ctx context.Context, store storage.FileStore, name string, opts WAVOptions) (*WAV, error) {
	rc, err := store.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("source: read %s: %w", name, err)
	}
	w, err := NewWAV(data, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return w, nil
}

// NewWAV creates a WAV source from an in-memory file.
func NewWAV(data []byte, opts WAVOptions) (*WAV, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid wav file", ErrUnsupportedFormat)
	}
	if dec.WavAudioFormat != 1 {
		return nil, fmt.Errorf("%w: wav audio format %d (only integer PCM)", ErrUnsupportedFormat, dec.WavAudioFormat)
	}
	switch dec.BitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d-bit wav", ErrUnsupportedFormat, dec.BitDepth)
	}
	if dec.NumChans == 0 || dec.SampleRate == 0 {
		return nil, fmt.Errorf("%w: wav header %d ch, %d Hz, %d bit", ErrUnsupportedFormat, dec.NumChans, dec.SampleRate, dec.BitDepth)
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	w := &WAV{
		dec:       dec,
		rate:      int(dec.SampleRate),
		channels:  int(dec.NumChans),
		bitDepth:  int(dec.BitDepth),
		target:    opts.TargetRate,
		chunkSize: opts.ChunkSize,
	}
	if w.target <= 0 {
		w.target = w.rate
	}
	return w, nil
}


// SampleRate returns the rate of the yielded samples.
func (w *WAV) SampleRate() int { return w.target }

func (w *WAV) Stream(ctx context.Context) iter.Seq2[[]float32, error] {
	return func(yield func([]float32, error) bool) {
		if w.used {
			yield(nil, ErrConsumed)
			return
		}
		w.used = true

		rs, err := resampler.New(resampler.Format{SampleRate: w.rate}, resampler.Format{SampleRate: w.target})
		if err != nil {
			yield(nil, err)
			return
		}

		scale := float32(int64(1) << (w.bitDepth - 1))
		buf := &audio.IntBuffer{
			Format: &audio.Format{NumChannels: w.channels, SampleRate: w.rate},
			Data:   make([]int, w.chunkSize*w.channels),
		}
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			n, err := w.dec.PCMBuffer(buf)
			if n > 0 {
				frames := make([]float32, n)
				for i, v := range buf.Data[:n] {
					frames[i] = float32(v) / scale
				}
				out, rerr := rs.Process(resampler.Downmix(frames, w.channels))
				if rerr != nil {
					yield(nil, rerr)
					return
				}
				if len(out) > 0 && !yield(out, nil) {
					return
				}
			}
			if err == io.EOF || (err == nil && n == 0) {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("source: decode wav: %w", err))
				return
			}
		}
	}
}

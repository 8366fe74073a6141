package source

import (
	"context"
	"iter"
)

// Segmenter splits one source into consecutive sources of at least n
// samples each (the last may be shorter). Chunks are never split, so a
// segment can overshoot n by up to one chunk. Segments must be consumed
// one after another; a Segmenter is not safe for concurrent use.
type Segmenter struct {
	rate int
	n    int
	next func() ([]float32, error, bool)
	stop func()
	done bool
}

// NewSegmenter starts streaming src under ctx and returns a Segmenter
// cutting it every n samples.
func NewSegmenter(ctx context.Context, src Source, n int) *Segmenter {
	next, stop := iter.Pull2(src.Stream(ctx))
	return &Segmenter{rate: src.SampleRate(), n: max(n, 1), next: next, stop: stop}
}

// Next returns the next segment, or false once the underlying source has
// ended or failed.
func (s *Segmenter) Next() (Source, bool) {
	if s.done {
		return nil, false
	}
	chunk, err, ok := s.next()
	if !ok {
		s.done = true
		return nil, false
	}
	return &segment{parent: s, first: chunk, err: err}, true
}

// Close stops the underlying stream.
func (s *Segmenter) Close() {
	s.done = true
	s.stop()
}

type segment struct {
	parent *Segmenter
	first  []float32
	err    error
	used   bool
}

func (g *segment) SampleRate() int { return g.parent.rate }

func (g *segment) Stream(ctx context.Context) iter.Seq2[[]float32, error] {
	return func(yield func([]float32, error) bool) {
		if g.used {
			yield(nil, ErrConsumed)
			return
		}
		g.used = true
		s := g.parent
		chunk, err := g.first, g.err
		for total := 0; ; {
			if err != nil {
				s.done = true
				yield(nil, err)
				return
			}
			if ctx.Err() != nil {
				yield(nil, ctx.Err())
				return
			}
			if !yield(chunk, nil) {
				return
			}
			if total += len(chunk); total >= s.n {
				return
			}
			var ok bool
			if chunk, err, ok = s.next(); !ok {
				s.done = true
				return
			}
		}
	}
}

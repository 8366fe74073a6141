package source

import (
	"context"
	"errors"
	"iter"
	"testing"
)

func TestSegmenter(t *testing.T) {
	ctx := context.Background()
	seg := NewSegmenter(ctx, NewSamples(make([]float32, 3500), 16000, 1000), 1500)
	defer seg.Close()

	var sizes []int
	for {
		src, ok := seg.Next()
		if !ok {
			break
		}
		if src.SampleRate() != 16000 {
			t.Errorf("SampleRate() = %d", src.SampleRate())
		}
		got, err := Collect(ctx, src)
		if err != nil {
			t.Fatal(err)
		}
		sizes = append(sizes, len(got))
		if _, err := Collect(ctx, src); !errors.Is(err, ErrConsumed) {
			t.Errorf("second stream: err = %v", err)
		}
	}
	if len(sizes) != 2 || sizes[0] != 2000 || sizes[1] != 1500 {
		t.Errorf("segment sizes = %v, want [2000 1500]", sizes)
	}
	if _, ok := seg.Next(); ok {
		t.Error("Next after end returned a segment")
	}
}

type brokenSource struct{ err error }

func (brokenSource) SampleRate() int { return 16000 }

func (b brokenSource) Stream(context.Context) iter.Seq2[[]float32, error] {
	return func(yield func([]float32, error) bool) {
		if !yield(make([]float32, 100), nil) {
			return
		}
		yield(nil, b.err)
	}
}

func TestSegmenterError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("unplugged")
	seg := NewSegmenter(ctx, brokenSource{err: boom}, 1000)
	defer seg.Close()

	src, ok := seg.Next()
	if !ok {
		t.Fatal("no segment")
	}
	if _, err := Collect(ctx, src); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if _, ok := seg.Next(); ok {
		t.Error("Next after error returned a segment")
	}
}

package resampler

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resampler converts mono float32 audio from one sample rate to another.
// It keeps filter state between calls, so a stream is processed chunk by
// chunk with the same Resampler. It is not safe for concurrent use.
type Resampler struct {
	src, dst Format
	r        resampling.Resampler
	in       []float64
}

// New creates a Resampler from src to dst. Channel layouts are handled by
// Downmix before resampling; both formats are treated as mono here.
func New(src, dst Format) (*Resampler, error) {
	if src.SampleRate <= 0 || dst.SampleRate <= 0 {
		return nil, fmt.Errorf("resampler: invalid rates %d -> %d", src.SampleRate, dst.SampleRate)
	}
	rs := &Resampler{src: src, dst: dst}
	if src.SampleRate == dst.SampleRate {
		return rs, nil
	}
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(src.SampleRate),
		OutputRate: float64(dst.SampleRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resampler: %w", err)
	}
	rs.r = r
	return rs, nil
}


// Process resamples the next chunk of the stream. The output length is
// roughly len(in)·dst/src; the filter delay means early calls may return
// fewer samples.
func (rs *Resampler) Process(in []float32) ([]float32, error) {
	if rs.r == nil {
		return append([]float32(nil), in...), nil
	}
	if cap(rs.in) < len(in) {
		rs.in = make([]float64, len(in))
	}
	buf := rs.in[:len(in)]
	for i, v := range in {
		buf[i] = float64(v)
	}
	out, err := rs.r.Process(buf)
	if err != nil {
		return nil, fmt.Errorf("resampler: %w", err)
	}
	res := make([]float32, len(out))
	for i, v := range out {
		res[i] = float32(max(-1, min(1, v)))
	}
	return res, nil
}

// Downmix averages interleaved multi-channel samples into mono.
func Downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}
	n := len(interleaved) / channels
	out := make([]float32, n)
	for i := range out {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

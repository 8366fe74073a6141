package voiceprint

import (
	"cmp"
	"fmt"
	"slices"
)

// SpeakerStatus indicates the stabilized detection result.
type SpeakerStatus int

const (
	// StatusUnknown means no speaker dominates the recent window
	// (rejections, silence or constant switching).
	StatusUnknown SpeakerStatus = iota

	// StatusSingle means a single stable speaker is detected.
	StatusSingle

	// StatusOverlap means two speakers alternate within the window.
	StatusOverlap
)

func (s SpeakerStatus) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusSingle:
		return "single"
	case StatusOverlap:
		return "overlap"
	default:
		return fmt.Sprintf("SpeakerStatus(%d)", int(s))
	}
}

// SpeakerState is the stabilized view of the most recent outcomes.
type SpeakerState struct {
	Status SpeakerStatus

	// Speaker is the dominant speaker. Empty when Status is StatusUnknown.
	Speaker string

	// Candidates lists the dominant speakers, most frequent first.
	Candidates []string

	// Confidence is the fraction of the window covered by Candidates.
	Confidence float32
}

// Detector uses a sliding window of recognition winners to decide whether
// one speaker is stably talking. Rejected outcomes occupy a slot but never
// win.
//
//   - 1 dominant speaker with ratio >= minRatio → StatusSingle
//   - top 2 speakers together >= minRatio → StatusOverlap
//   - otherwise, or too few outcomes → StatusUnknown
//
// Equal counts resolve to the smaller speaker id. A Detector is not safe
// for concurrent use.
type Detector struct {
	window []string // circular buffer of recent winners
	pos    int      // next write position
	filled int      // number of slots filled (up to len(window))

	minRatio float32
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithWindowSize sets the sliding window size (default 5).
func WithWindowSize(n int) DetectorOption {
	return func(d *Detector) {
		if n > 0 {
			d.window = make([]string, n)
		}
	}
}

// WithMinRatio sets the minimum dominance ratio (default 0.6). Must be in
// (0, 1].
func WithMinRatio(r float32) DetectorOption {
	return func(d *Detector) {
		if r > 0 && r <= 1 {
			d.minRatio = r
		}
	}
}

// NewDetector creates a Detector with the given options.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{
		window:   make([]string, 5),
		minRatio: 0.6,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Feed adds an outcome to the window and returns the current state, or nil
// while the window holds fewer than 2 entries. A nil outcome is ignored.
func (d *Detector) Feed(o *Outcome) *SpeakerState {
	if o == nil {
		return nil
	}
	winner := ""
	if !o.Rejected {
		winner = o.Speaker
	}
	d.window[d.pos] = winner
	d.pos = (d.pos + 1) % len(d.window)
	if d.filled < len(d.window) {
		d.filled++
	}
	if d.filled < 2 {
		return nil
	}

	counts := make(map[string]int, 4)
	for i := range d.filled {
		idx := (d.pos - d.filled + i + len(d.window)) % len(d.window)
		if w := d.window[idx]; w != "" {
			counts[w]++
		}
	}
	type tally struct {
		id string
		n  int
	}
	ranked := make([]tally, 0, len(counts))
	for id, n := range counts {
		ranked = append(ranked, tally{id, n})
	}
	slices.SortFunc(ranked, func(a, b tally) int {
		if c := cmp.Compare(b.n, a.n); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})

	total := float32(d.filled)
	if len(ranked) == 0 {
		return &SpeakerState{Status: StatusUnknown}
	}
	top := ranked[0]
	if ratio := float32(top.n) / total; ratio >= d.minRatio {
		return &SpeakerState{
			Status:     StatusSingle,
			Speaker:    top.id,
			Candidates: []string{top.id},
			Confidence: ratio,
		}
	}
	if len(ranked) > 1 {
		second := ranked[1]
		if ratio := float32(top.n+second.n) / total; ratio >= d.minRatio {
			return &SpeakerState{
				Status:     StatusOverlap,
				Speaker:    top.id,
				Candidates: []string{top.id, second.id},
				Confidence: ratio,
			}
		}
	}
	return &SpeakerState{
		Status:     StatusUnknown,
		Confidence: float32(top.n) / total,
	}
}

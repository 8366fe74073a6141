package voiceprint

import (
	"context"
	"fmt"
	"sync"

	"github.com/haivivi/speakerid/pkg/buffer"
)

// SessionState is the lifecycle state of a Session.
type SessionState int

const (
	// SessionCollecting means fewer than one frame of samples is buffered.
	SessionCollecting SessionState = iota

	// SessionReady means every Consume re-recognizes the whole buffer.
	SessionReady

	// SessionClosed means the buffer was released.
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionCollecting:
		return "collecting"
	case SessionReady:
		return "ready"
	case SessionClosed:
		return "closed"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// SessionOptions configures a Session.
type SessionOptions struct {
	Config Config

	// Threshold overrides Config.ScoreThreshold when non-nil.
	Threshold *float64

	// MaxSamples caps the buffered samples (0 = unlimited).
	MaxSamples int
}

// Session accumulates streamed chunks and recognizes the full buffer each
// time it grows past one frame. Methods are serialized.
type Session struct {
	svc        *Service
	cfg        Config
	threshold  *float64
	minSamples int
	maxSamples int

	mu     sync.Mutex
	buf    *buffer.Buffer[float32]
	closed bool
}

// StartSession creates a streaming recognition session.
func (s *Service) StartSession(opts SessionOptions) (*Session, error) {
	cfg := opts.Config.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	threshold := opts.Threshold
	if threshold == nil {
		threshold = cfg.ScoreThreshold
	}
	if opts.MaxSamples < 0 {
		return nil, fmt.Errorf("voiceprint: negative max samples %d", opts.MaxSamples)
	}
	return &Session{
		svc:        s,
		cfg:        cfg,
		threshold:  threshold,
		minSamples: cfg.MinSamples(),
		maxSamples: opts.MaxSamples,
		buf:        buffer.N[float32](cfg.SampleRate),
	}, nil
}

// SampleRate returns the rate chunks must be sampled at.
func (ss *Session) SampleRate() int { return ss.cfg.SampleRate }

// Consume appends chunk and returns the outcome for everything buffered so
// far, or nil while less than one frame has been collected. An empty chunk
// adds nothing but still re-recognizes a ready session.
func (ss *Session) Consume(ctx context.Context, chunk []float32) (*Outcome, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.closed {
		return nil, ErrSessionClosed
	}
	if len(chunk) > 0 {
		if ss.maxSamples > 0 && ss.buf.Len()+len(chunk) > ss.maxSamples {
			return nil, fmt.Errorf("%w: %d + %d samples exceeds %d", ErrSessionFull, ss.buf.Len(), len(chunk), ss.maxSamples)
		}
		if _, err := ss.buf.Write(chunk); err != nil {
			return nil, err
		}
	}
	if ss.buf.Len() < ss.minSamples {
		return nil, nil
	}
	feats, err := ss.svc.extract(ss.cfg, ss.buf.Snapshot())
	if err != nil {
		return nil, err
	}
	return ss.svc.RecognizeFeatures(ctx, feats, ss.threshold)
}

// Buffered returns the number of buffered samples.
func (ss *Session) Buffered() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.closed {
		return 0
	}
	return ss.buf.Len()
}

// State returns the session state.
func (ss *Session) State() SessionState {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	switch {
	case ss.closed:
		return SessionClosed
	case ss.buf.Len() < ss.minSamples:
		return SessionCollecting
	default:
		return SessionReady
	}
}

// Close releases the buffer. Closing twice is a no-op.
func (ss *Session) Close() error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.closed {
		return nil
	}
	ss.closed = true
	return ss.buf.Close()
}

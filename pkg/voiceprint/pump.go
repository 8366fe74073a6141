package voiceprint

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/haivivi/speakerid/pkg/audio/source"
	"github.com/haivivi/speakerid/pkg/buffer"
)

// DefaultPumpQueue is the default number of chunks queued between a source
// and its session.
const DefaultPumpQueue = 32

// PumpOptions configures Pump.
type PumpOptions struct {
	// QueueSize bounds the chunks read ahead of the session
	// (DefaultPumpQueue if zero). A full queue blocks the reader.
	QueueSize int

	// OnOutcome is called in order with every non-nil outcome.
	OnOutcome func(*Outcome)
}

// Pump streams src into sess until the source ends, and returns the last
// outcome (nil if the source never filled one frame). A reader goroutine
// feeds a bounded queue; the calling goroutine drives the session. If ctx
// is canceled the session is closed.
func Pump(ctx context.Context, src source.Source, sess *Session, opts PumpOptions) (*Outcome, error) {
	if src.SampleRate() != sess.SampleRate() {
		return nil, fmt.Errorf("%w: source rate %d Hz, session rate %d Hz", ErrInvalidAudio, src.SampleRate(), sess.SampleRate())
	}
	size := opts.QueueSize
	if size <= 0 {
		size = DefaultPumpQueue
	}
	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	q := buffer.BlockN[[]float32](size)
	stop := context.AfterFunc(ctx, func() { q.CloseWithError(ctx.Err()) })
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for chunk, err := range src.Stream(ctx) {
			if err != nil {
				q.CloseWithError(err)
				return
			}
			if q.Add(chunk) != nil {
				return
			}
		}
		q.CloseWrite()
	}()

	var last *Outcome
	for {
		chunk, err := q.Next()
		if errors.Is(err, buffer.ErrIteratorDone) {
			return last, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				sess.Close()
			}
			return last, err
		}
		out, err := sess.Consume(ctx, chunk)
		if err != nil {
			q.Close()
			return last, err
		}
		if out != nil {
			last = out
			if opts.OnOutcome != nil {
				opts.OnOutcome(out)
			}
		}
	}
}

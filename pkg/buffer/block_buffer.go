package buffer

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrIteratorDone is returned by Next once the write side is closed and
// every queued element has been consumed.
var ErrIteratorDone = errors.New("iterator done")

// BlockBuffer is a thread-safe fixed-capacity circular queue. Producers
// block in Add while it is full; consumers block in Next while it is empty.
type BlockBuffer[T any] struct {
	cond *sync.Cond

	mu         sync.Mutex
	buf        []T
	head, tail int64
	closeWrite bool
	closeErr   error
}

// Block creates a BlockBuffer using buf as storage; its length is the
// capacity.
func Block[T any](buf []T) *BlockBuffer[T] {
	v := &BlockBuffer[T]{buf: buf}
	v.cond = sync.NewCond(&v.mu)
	return v
}

// BlockN creates a BlockBuffer holding at most size elements.
func BlockN[T any](size int) *BlockBuffer[T] {
	return Block(make([]T, size))
}

func (bb *BlockBuffer[T]) writableLocked() error {
	if bb.closeErr != nil {
		return fmt.Errorf("buffer: write to closed buffer: %w", bb.closeErr)
	}
	if bb.closeWrite {
		return fmt.Errorf("buffer: write to closed buffer: %w", io.ErrClosedPipe)
	}
	return nil
}

func (bb *BlockBuffer[T]) pushLocked(t T) {
	bb.buf[bb.tail%int64(len(bb.buf))] = t
	bb.tail++
	bb.cond.Broadcast()
}

// Add appends t, blocking while the queue is full. It fails once the
// buffer is closed, including while blocked.
func (bb *BlockBuffer[T]) Add(t T) error {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	if err := bb.writableLocked(); err != nil {
		return err
	}
	for bb.tail-bb.head == int64(len(bb.buf)) {
		bb.cond.Wait()
		if err := bb.writableLocked(); err != nil {
			return err
		}
	}
	bb.pushLocked(t)
	return nil
}

// TryAdd appends t without blocking. It reports false, leaving the queue
// unchanged, when the queue is full or closed.
func (bb *BlockBuffer[T]) TryAdd(t T) bool {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	if bb.writableLocked() != nil || bb.tail-bb.head == int64(len(bb.buf)) {
		return false
	}
	bb.pushLocked(t)
	return true
}

// Next removes and returns the oldest element, blocking while the queue is
// empty. It returns ErrIteratorDone after CloseWrite once drained.
func (bb *BlockBuffer[T]) Next() (t T, err error) {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	for bb.head == bb.tail {
		if bb.closeErr != nil {
			return t, fmt.Errorf("buffer: read from closed buffer: %w", bb.closeErr)
		}
		if bb.closeWrite {
			return t, ErrIteratorDone
		}
		bb.cond.Wait()
	}
	if bb.closeErr != nil {
		return t, fmt.Errorf("buffer: read from closed buffer: %w", bb.closeErr)
	}
	i := bb.head % int64(len(bb.buf))
	t = bb.buf[i]
	var zero T
	bb.buf[i] = zero
	bb.head++
	bb.cond.Broadcast()
	return t, nil
}

// CloseWrite stops further writes. Queued elements remain readable.
// Blocked producers fail with io.ErrClosedPipe.
func (bb *BlockBuffer[T]) CloseWrite() error {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	bb.closeWrite = true
	bb.cond.Broadcast()
	return nil
}

// CloseWithError closes both sides. Pending and future calls fail with err
// (io.ErrClosedPipe if nil). Only the first error is kept.
func (bb *BlockBuffer[T]) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	bb.mu.Lock()
	defer bb.mu.Unlock()
	if bb.closeErr == nil {
		bb.closeErr = err
		bb.closeWrite = true
		bb.cond.Broadcast()
	}
	return nil
}

// Close is CloseWithError(io.ErrClosedPipe).
func (bb *BlockBuffer[T]) Close() error {
	return bb.CloseWithError(io.ErrClosedPipe)
}

// Error returns the error the buffer was closed with, if any.
func (bb *BlockBuffer[T]) Error() error {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	return bb.closeErr
}

// Len returns the number of queued elements.
func (bb *BlockBuffer[T]) Len() int {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	return int(bb.tail - bb.head)
}

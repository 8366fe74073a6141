package buffer

import (
	"fmt"
	"io"
	"slices"
	"sync"
)

// Buffer is a thread-safe growable buffer. Writes append; readers take
// snapshots of the whole content.
type Buffer[T any] struct {
	mu       sync.Mutex
	buf      []T
	closeErr error
}

// N creates a Buffer with initial capacity n.
func N[T any](n int) *Buffer[T] {
	return &Buffer[T]{buf: make([]T, 0, n)}
}

// Write appends p. It implements io.Writer for T = byte.
func (b *Buffer[T]) Write(p []T) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeErr != nil {
		return 0, fmt.Errorf("buffer: write to closed buffer: %w", b.closeErr)
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Len returns the number of buffered elements.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Snapshot returns a copy of the buffered elements.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.buf)
}

// Close releases the content. Further writes fail with io.ErrClosedPipe.
// Closing twice is a no-op.
func (b *Buffer[T]) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeErr == nil {
		b.closeErr = io.ErrClosedPipe
		b.buf = nil
	}
	return nil
}

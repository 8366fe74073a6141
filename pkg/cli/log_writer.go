package cli

import (
	"strings"
	"sync"
)

// LogWriter implements io.Writer and keeps the most recent lines for the
// live view's log section.
type LogWriter struct {
	mu    sync.Mutex
	lines []string
	head  int
	full  bool
}

// NewLogWriter creates a new log writer with the given max lines.
func NewLogWriter(maxLines int) *LogWriter {
	if maxLines <= 0 {
		maxLines = 1
	}
	return &LogWriter{lines: make([]string, maxLines)}
}

// Write implements io.Writer.
// Handles multi-line input by splitting on newlines.
func (w *LogWriter) Write(p []byte) (n int, err error) {
	text := strings.TrimRight(string(p), "\n")
	w.mu.Lock()
	defer w.mu.Unlock()
	for line := range strings.SplitSeq(text, "\n") {
		w.lines[w.head] = line
		w.head = (w.head + 1) % len(w.lines)
		if w.head == 0 {
			w.full = true
		}
	}
	return len(p), nil
}

// Lines returns the buffered lines, oldest first.
func (w *LogWriter) Lines() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.full {
		return append([]string(nil), w.lines[:w.head]...)
	}
	out := make([]string, 0, len(w.lines))
	out = append(out, w.lines[w.head:]...)
	return append(out, w.lines[:w.head]...)
}

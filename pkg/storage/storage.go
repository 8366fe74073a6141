// Package storage defines the FileStore interface for reading and writing
// files on local disk or an S3-compatible object store.
//
// speakerid uses it in two places: kv.Files persists the speaker registry
// as one file per key, and audio sources read WAV input from either
// backend.
package storage

import (
	"context"
	"io"
)

// FileStore is a minimal interface for file-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file for reading.
	// The caller must close the returned ReadCloser when done.
	// If the file does not exist, an error wrapping os.ErrNotExist is returned.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing. The new content replaces the
	// old one only when Close returns nil; concurrent readers see either
	// the previous content or the complete new content.
	// Parent directories are created automatically.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the named file.
	// If the file does not exist, Delete returns nil (idempotent).
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns the paths of all files under the directory prefix, in
	// lexicographic order. A missing prefix yields an empty list.
	List(ctx context.Context, prefix string) ([]string, error)
}

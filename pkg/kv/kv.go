// Package kv provides the key-value store that holds speaker records and
// voiceprint model blobs. Keys are hierarchical paths represented as string
// slices (e.g., ["speakerid", "speaker", "alice"]) and encoded with a
// configurable separator (default ':').
//
// Three backends are provided: Memory for tests and ephemeral registries,
// Badger for an embedded on-disk database, and Files for any
// storage.FileStore (a local directory or an S3 bucket).
package kv

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a key does not exist in the store.
	ErrNotFound = errors.New("kv: not found")
)

// Key is a hierarchical path represented as a slice of string segments.
// Key{"speakerid", "speaker", "alice"} encodes to "speakerid:speaker:alice"
// with the default separator.
//
// Segments must not contain the configured separator character; encoding
// such a key panics.
type Key []string

// String returns the key joined with ':' for display.
func (k Key) String() string {
	return strings.Join(k, ":")
}

// Append returns a new key with segs appended. The receiver is not modified.
func (k Key) Append(segs ...string) Key {
	out := make(Key, 0, len(k)+len(segs))
	out = append(out, k...)
	return append(out, segs...)
}

// HasPrefix reports whether k starts with every segment of prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, seg := range prefix {
		if k[i] != seg {
			return false
		}
	}
	return true
}

// Entry is a key-value pair returned by List and used by BatchSet.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is the interface for a key-value store with path-based keys.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores a key-value pair, overwriting any existing value. A reader
	// observes either the old or the new value, never a partial one.
	Set(ctx context.Context, key Key, value []byte) error

	// Delete removes a key. No error if the key does not exist.
	Delete(ctx context.Context, key Key) error

	// List iterates over all entries strictly below prefix, in
	// lexicographic order of the encoded key. An empty prefix lists
	// everything.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// BatchSet stores multiple key-value pairs.
	BatchSet(ctx context.Context, entries []Entry) error

	// BatchDelete removes multiple keys.
	BatchDelete(ctx context.Context, keys []Key) error

	// Close releases any resources held by the store.
	Close() error
}

// DefaultSeparator is the default separator byte used to encode key segments.
const DefaultSeparator byte = ':'

// Options configures store behavior.
type Options struct {
	// Separator joins key segments when encoding. Default ':' if zero.
	Separator byte
}

func (o *Options) sep() byte {
	if o != nil && o.Separator != 0 {
		return o.Separator
	}
	return DefaultSeparator
}

// encode joins the key segments with the separator.
// It panics if a segment contains the separator.
func (o *Options) encode(k Key) []byte {
	s := o.sep()
	var b strings.Builder
	for i, seg := range k {
		if strings.IndexByte(seg, s) >= 0 {
			panic(fmt.Sprintf("kv: key segment %q contains separator %q", seg, s))
		}
		if i > 0 {
			b.WriteByte(s)
		}
		b.WriteString(seg)
	}
	return []byte(b.String())
}

// listPrefix returns the encoded prefix plus a trailing separator, so that
// "a:b" does not match "a:bc". An empty prefix matches everything.
func (o *Options) listPrefix(prefix Key) []byte {
	if len(prefix) == 0 {
		return nil
	}
	return append(o.encode(prefix), o.sep())
}

// decode splits an encoded key back into segments.
func (o *Options) decode(b []byte) Key {
	return Key(strings.Split(string(b), string(o.sep())))
}

package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"slices"
	"strings"

	"github.com/haivivi/speakerid/pkg/storage"
)

// fileExt is appended to every key path so a key never collides with the
// directory holding its children.
const fileExt = ".kv"

// Files is a Store that keeps one file per key in a storage.FileStore.
// Key{"speakerid", "speaker", "alice"} lives at "speakerid/speaker/alice.kv".
//
// Single-key writes inherit the atomicity of the FileStore (temp + rename
// for storage.Local, a single PutObject for storage.S3Store). Batch
// operations are applied key by key and are not atomic.
type Files struct {
	fs storage.FileStore
}

// NewFiles creates a Store over store.
func NewFiles(store storage.FileStore) *Files {
	return &Files{fs: store}
}

func keyPath(key Key) (string, error) {
	if len(key) == 0 {
		return "", errors.New("kv: empty key")
	}
	for _, seg := range key {
		if seg == "" || seg == "." || seg == ".." || strings.ContainsAny(seg, `/\`) {
			return "", fmt.Errorf("kv: key segment %q is not a valid path element", seg)
		}
	}
	return strings.Join(key, "/") + fileExt, nil
}

func (f *Files) Get(ctx context.Context, key Key) ([]byte, error) {
	p, err := keyPath(key)
	if err != nil {
		return nil, err
	}
	return f.read(ctx, p)
}

func (f *Files) read(ctx context.Context, p string) ([]byte, error) {
	r, err := f.fs.Read(ctx, p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (f *Files) Set(ctx context.Context, key Key, value []byte) error {
	p, err := keyPath(key)
	if err != nil {
		return err
	}
	w, err := f.fs.Write(ctx, p)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, bytes.NewReader(value)); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (f *Files) Delete(ctx context.Context, key Key) error {
	p, err := keyPath(key)
	if err != nil {
		return err
	}
	return f.fs.Delete(ctx, p)
}

// List reads values lazily while iterating. A file deleted after the
// directory listing is skipped.
func (f *Files) List(ctx context.Context, prefix Key) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		paths, err := f.fs.List(ctx, strings.Join(prefix, "/"))
		if err != nil {
			yield(Entry{}, err)
			return
		}

		keys := make([]Key, 0, len(paths))
		for _, p := range paths {
			if !strings.HasSuffix(p, fileExt) {
				continue
			}
			k := Key(strings.Split(strings.TrimSuffix(p, fileExt), "/"))
			if len(k) > len(prefix) && k.HasPrefix(prefix) {
				keys = append(keys, k)
			}
		}
		slices.SortFunc(keys, func(a, b Key) int { return slices.Compare(a, b) })

		for _, k := range keys {
			v, err := f.read(ctx, strings.Join(k, "/")+fileExt)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				yield(Entry{}, err)
				return
			}
			if !yield(Entry{Key: k, Value: v}, nil) {
				return
			}
		}
	}
}

func (f *Files) BatchSet(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		if err := f.Set(ctx, e.Key, e.Value); err != nil {
			return err
		}
	}
	return nil
}

func (f *Files) BatchDelete(ctx context.Context, keys []Key) error {
	for _, k := range keys {
		if err := f.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op; the FileStore owns no handles.
func (f *Files) Close() error {
	return nil
}

var _ Store = (*Files)(nil)

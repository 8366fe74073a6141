package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func writeFile(t *testing.T, s FileStore, path, data string) {
	t.Helper()
	w, err := s.Write(context.Background(), path)
	if err != nil {
		t.Fatalf("Write %s: %v", path, err)
	}
	if _, err := io.WriteString(w, data); err != nil {
		t.Fatalf("Write %s: %v", path, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close %s: %v", path, err)
	}
}

func readFile(t *testing.T, s FileStore, path string) string {
	t.Helper()
	r, err := s.Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read %s: %v", path, err)
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("Read %s: %v", path, err)
	}
	return string(b)
}

// stores returns every FileStore backend under test.
func stores(t *testing.T) map[string]FileStore {
	local, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return map[string]FileStore{
		"local": local,
		"s3":    NewS3(newMockS3(), "bucket", "prefix"),
	}
}

func TestFileStore(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := s.Read(ctx, "speaker/alice.kv"); !errors.Is(err, os.ErrNotExist) {
				t.Fatalf("Read missing: err = %v", err)
			}

			writeFile(t, s, "speaker/alice.kv", "first version, longer")
			writeFile(t, s, "speaker/alice.kv", "second")
			if got := readFile(t, s, "speaker/alice.kv"); got != "second" {
				t.Errorf("after overwrite = %q", got)
			}

			ok, err := s.Exists(ctx, "speaker/alice.kv")
			if err != nil || !ok {
				t.Errorf("Exists = %v, %v", ok, err)
			}

			writeFile(t, s, "speaker/bob.kv", "b")
			writeFile(t, s, "model/alice/v1.kv", "m")
			writeFile(t, s, "speakers.kv", "not under speaker/")

			paths, err := s.List(ctx, "speaker")
			if err != nil {
				t.Fatal(err)
			}
			if want := []string{"speaker/alice.kv", "speaker/bob.kv"}; !slices.Equal(paths, want) {
				t.Errorf("List speaker = %v, want %v", paths, want)
			}

			paths, err = s.List(ctx, "nothing-here")
			if err != nil || len(paths) != 0 {
				t.Errorf("List missing = %v, %v", paths, err)
			}

			if err := s.Delete(ctx, "speaker/alice.kv"); err != nil {
				t.Fatal(err)
			}
			if err := s.Delete(ctx, "speaker/alice.kv"); err != nil {
				t.Errorf("second Delete: %v", err)
			}
			ok, _ = s.Exists(ctx, "speaker/alice.kv")
			if ok {
				t.Error("file still exists after Delete")
			}
		})
	}
}

func TestLocalWriteIsAtomic(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocal(dir)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, s, "rec.kv", "old")

	w, err := s.Write(context.Background(), "rec.kv")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(w, "new"); err != nil {
		t.Fatal(err)
	}
	// Until Close, readers still see the previous content and List hides
	// the staging file.
	if got := readFile(t, s, "rec.kv"); got != "old" {
		t.Errorf("before Close = %q, want old", got)
	}
	paths, err := s.List(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(paths, []string{"rec.kv"}) {
		t.Errorf("List = %v, want [rec.kv]", paths)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, s, "rec.kv"); got != "new" {
		t.Errorf("after Close = %q, want new", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("leftover files: %v", entries)
	}
}

func TestNewLocalCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if _, err := NewLocal(dir); err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("root not created: %v", err)
	}
}

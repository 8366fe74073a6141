package buffer

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

func TestBlockBufferFIFO(t *testing.T) {
	q := BlockN[int](2)
	go func() {
		for i := 1; i <= 100; i++ {
			if err := q.Add(i); err != nil {
				t.Errorf("Add %d: %v", i, err)
				return
			}
		}
		q.CloseWrite()
	}()

	for want := 1; ; want++ {
		v, err := q.Next()
		if errors.Is(err, ErrIteratorDone) {
			if want != 101 {
				t.Fatalf("done after %d elements", want-1)
			}
			return
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if v != want {
			t.Fatalf("Next = %d, want %d", v, want)
		}
	}
}

func TestBlockBufferAddBlocksWhenFull(t *testing.T) {
	q := BlockN[int](1)
	if err := q.Add(1); err != nil {
		t.Fatal(err)
	}

	added := make(chan struct{})
	go func() {
		q.Add(2)
		close(added)
	}()
	select {
	case <-added:
		t.Fatal("Add returned while queue was full")
	case <-time.After(20 * time.Millisecond):
	}

	if v, _ := q.Next(); v != 1 {
		t.Fatalf("Next = %d, want 1", v)
	}
	select {
	case <-added:
	case <-time.After(time.Second):
		t.Fatal("Add still blocked after Next")
	}
	if q.Len() != 1 {
		t.Errorf("Len = %d, want 1", q.Len())
	}
}

func TestBlockBufferTryAdd(t *testing.T) {
	q := BlockN[string](2)
	if !q.TryAdd("a") || !q.TryAdd("b") {
		t.Fatal("TryAdd failed with free space")
	}
	if q.TryAdd("c") {
		t.Fatal("TryAdd succeeded on a full queue")
	}
	if v, _ := q.Next(); v != "a" {
		t.Fatalf("Next = %q, want a", v)
	}
	if !q.TryAdd("c") {
		t.Fatal("TryAdd failed after Next freed a slot")
	}
	q.CloseWrite()
	if q.TryAdd("d") {
		t.Fatal("TryAdd succeeded after CloseWrite")
	}
	for _, want := range []string{"b", "c"} {
		if v, err := q.Next(); err != nil || v != want {
			t.Fatalf("Next = %q, %v; want %q", v, err, want)
		}
	}
	if _, err := q.Next(); !errors.Is(err, ErrIteratorDone) {
		t.Fatalf("err = %v, want ErrIteratorDone", err)
	}
}

func TestBlockBufferCloseWithErrorUnblocks(t *testing.T) {
	q := BlockN[int](1)
	boom := errors.New("boom")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := q.Next(); !errors.Is(err, boom) {
			t.Errorf("Next err = %v, want boom", err)
		}
	}()
	time.Sleep(10 * time.Millisecond)
	q.CloseWithError(boom)
	wg.Wait()

	if err := q.Add(1); !errors.Is(err, boom) {
		t.Errorf("Add err = %v, want boom", err)
	}
	if !errors.Is(q.Error(), boom) {
		t.Errorf("Error() = %v", q.Error())
	}
	// Only the first error is kept.
	q.Close()
	if !errors.Is(q.Error(), boom) {
		t.Errorf("Error() after Close = %v", q.Error())
	}
}

func TestBlockBufferCloseWriteFailsBlockedAdd(t *testing.T) {
	q := BlockN[int](1)
	q.Add(1)
	errc := make(chan error, 1)
	go func() { errc <- q.Add(2) }()
	time.Sleep(10 * time.Millisecond)
	q.CloseWrite()
	if err := <-errc; !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("blocked Add err = %v, want io.ErrClosedPipe", err)
	}
	if v, err := q.Next(); err != nil || v != 1 {
		t.Fatalf("Next = %d, %v", v, err)
	}
}

func TestBuffer(t *testing.T) {
	b := N[float32](4)
	b.Write([]float32{1, 2})
	b.Write([]float32{3})
	if b.Len() != 3 {
		t.Fatalf("Len = %d, want 3", b.Len())
	}

	snap := b.Snapshot()
	snap[0] = 99
	if got := b.Snapshot(); got[0] != 1 || len(got) != 3 {
		t.Fatalf("Snapshot aliases buffer: %v", got)
	}

	b.Close()
	b.Close()
	if _, err := b.Write([]float32{1}); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("Write after Close: err = %v", err)
	}
}

// Package buffer provides the thread-safe queues used on the streaming
// recognition path.
//
//   - BlockBuffer: a fixed-capacity circular queue. Add blocks while the
//     queue is full, TryAdd fails instead, and Next blocks while it is empty.
//     It carries audio chunks from a producer goroutine to the session
//     consumer with bounded memory.
//
//   - Buffer: a growable sample buffer. A streaming session appends every
//     chunk to it and scores a snapshot of the whole buffer.
//
// Both support graceful shutdown: CloseWrite lets readers drain what is
// queued, CloseWithError fails pending and future calls immediately.
//
//	q := buffer.BlockN[[]float32](32)
//	go func() {
//		defer q.CloseWrite()
//		for chunk := range chunks {
//			if err := q.Add(chunk); err != nil {
//				return
//			}
//		}
//	}()
//	for {
//		chunk, err := q.Next()
//		if errors.Is(err, buffer.ErrIteratorDone) {
//			break
//		}
//		...
//	}
package buffer

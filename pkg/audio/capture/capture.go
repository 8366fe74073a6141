// Package capture records mono float32 audio from a microphone through
// miniaudio (github.com/gen2brain/malgo).
//
// The device callback runs on the audio thread and must never block, so
// captured chunks go into a bounded queue with drop-newest semantics: when
// the consumer falls behind, new chunks are discarded and counted.
//
//	mic, err := capture.Open(capture.Config{SampleRate: 16000})
//	if err != nil {
//	    return err
//	}
//	defer mic.Close()
//	for chunk, err := range mic.Stream(ctx) {
//	    ...
//	}
package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/haivivi/speakerid/pkg/buffer"
)

// DefaultQueueSize is the number of device callbacks buffered between the
// audio thread and the consumer.
const DefaultQueueSize = 64

// ErrDeviceNotFound is returned when Config.Device matches no capture device.
var ErrDeviceNotFound = errors.New("capture: device not found")

// Config configures a Microphone.
type Config struct {
	// SampleRate is the capture rate in Hz. miniaudio converts from the
	// device's native rate.
	SampleRate int

	// Device selects a capture device by case-insensitive name substring.
	// Empty uses the system default.
	Device string

	// QueueSize bounds the number of pending chunks (DefaultQueueSize if
	// zero).
	QueueSize int

	Logger *slog.Logger
}

// device is the part of *malgo.Device a Microphone drives.
type device interface {
	Start() error
	Stop() error
	Uninit()
}

// Microphone is a live source.Source. Stream may be called once.
type Microphone struct {
	cfg     Config
	logger  *slog.Logger
	dev     device
	release func()
	sink    *sink

	// mu guards the device lifecycle: once closed, dev must not be touched.
	mu      sync.Mutex
	started bool
	closed  bool
}

// Open initializes miniaudio and the capture device without starting it.
func Open(cfg Config) (*Microphone, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("capture: invalid sample rate %d", cfg.SampleRate)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		logger.Debug("miniaudio", "msg", strings.TrimSpace(msg))
	})
	if err != nil {
		return nil, fmt.Errorf("capture: init context: %w", err)
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.Capture.Format = malgo.FormatF32
	devCfg.Capture.Channels = 1
	devCfg.SampleRate = uint32(cfg.SampleRate)
	devCfg.Alsa.NoMMap = 1

	if cfg.Device != "" {
		id, err := findDevice(mctx, cfg.Device)
		if err != nil {
			freeContext(mctx)
			return nil, err
		}
		devCfg.Capture.DeviceID = id.Pointer()
	}

	s := newSink(cfg.QueueSize)
	dev, err := malgo.InitDevice(mctx.Context, devCfg, malgo.DeviceCallbacks{
		Data: func(_, input []byte, frames uint32) {
			s.push(input, frames)
		},
	})
	if err != nil {
		freeContext(mctx)
		return nil, fmt.Errorf("capture: init device: %w", err)
	}

	return &Microphone{
		cfg:     cfg,
		logger:  logger,
		dev:     dev,
		release: func() { freeContext(mctx) },
		sink:    s,
	}, nil
}

func findDevice(mctx *malgo.AllocatedContext, name string) (*malgo.DeviceID, error) {
	devices, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("capture: enumerate devices: %w", err)
	}
	want := strings.ToLower(name)
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Name()), want) {
			id := d.ID
			return &id, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
}

// Devices lists the names of the available capture devices.
func Devices() ([]string, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("capture: init context: %w", err)
	}
	defer freeContext(mctx)
	devices, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("capture: enumerate devices: %w", err)
	}
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name()
	}
	return names, nil
}

func freeContext(mctx *malgo.AllocatedContext) {
	_ = mctx.Uninit()
	mctx.Free()
}

func (m *Microphone) SampleRate() int { return m.cfg.SampleRate }

// Dropped returns the number of chunks discarded because the queue was full.
func (m *Microphone) Dropped() uint64 { return m.sink.dropped.Load() }

// Stream starts the device and yields captured chunks until ctx is
// canceled or the microphone is closed.
func (m *Microphone) Stream(ctx context.Context) iter.Seq2[[]float32, error] {
	return func(yield func([]float32, error) bool) {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			yield(nil, fmt.Errorf("capture: %w", errClosed))
			return
		}
		if m.started {
			m.mu.Unlock()
			yield(nil, fmt.Errorf("capture: stream already started"))
			return
		}
		m.started = true
		err := m.dev.Start()
		m.mu.Unlock()
		if err != nil {
			yield(nil, fmt.Errorf("capture: start device: %w", err))
			return
		}
		m.logger.Info("capture started", "rate", m.cfg.SampleRate, "device", m.cfg.Device)

		stop := context.AfterFunc(ctx, func() { m.sink.q.CloseWrite() })
		defer stop()
		defer m.stopDevice()

		for {
			chunk, err := m.sink.q.Next()
			if err != nil {
				if errors.Is(err, buffer.ErrIteratorDone) {
					if cerr := ctx.Err(); cerr != nil {
						yield(nil, cerr)
					}
					return
				}
				yield(nil, err)
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// stopDevice stops a device that Close has not already released.
func (m *Microphone) stopDevice() {
	m.mu.Lock()
	if !m.closed {
		if err := m.dev.Stop(); err != nil {
			m.logger.Warn("capture stop failed", "err", err)
		}
	}
	m.mu.Unlock()
	if n := m.Dropped(); n > 0 {
		m.logger.Warn("capture dropped chunks", "dropped", n)
	}
}

// Close releases the device and the miniaudio context. A running Stream
// ends after its buffered chunks and leaves the released device alone.
func (m *Microphone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.sink.q.CloseWrite()
	m.dev.Uninit()
	m.release()
	return nil
}

var errClosed = errors.New("microphone closed")

// sink receives device callbacks.
type sink struct {
	q       *buffer.BlockBuffer[[]float32]
	dropped atomic.Uint64
}

func newSink(size int) *sink {
	return &sink{q: buffer.BlockN[[]float32](size)}
}

// push decodes one callback of mono float32 frames and queues it without
// blocking.
func (s *sink) push(input []byte, frames uint32) {
	samples := decodeF32(input, int(frames))
	if len(samples) == 0 {
		return
	}
	if !s.q.TryAdd(samples) {
		s.dropped.Add(1)
	}
}

// decodeF32 decodes up to n little-endian float32 samples.
func decodeF32(b []byte, n int) []float32 {
	n = min(n, len(b)/4)
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// Package server exposes a voiceprint.Service over HTTP.
//
//	GET    /v1/speakers         list enrolled speakers
//	GET    /v1/speakers/{id}    one speaker record
//	PUT    /v1/speakers/{id}    enroll from a WAV or PCM16 body
//	DELETE /v1/speakers/{id}    delete a speaker
//	POST   /v1/recognize        recognize a WAV or PCM16 body (?threshold=)
//	GET    /v1/stream           WebSocket streaming recognition
//
// Audio bodies are WAV (Content-Type audio/wav or a RIFF header) or raw
// 16-bit little-endian mono PCM at the configured sample rate.
//
// On /v1/stream the client sends binary PCM16 messages and receives one
// JSON StreamEvent per message.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/haivivi/speakerid/pkg/audio/mfcc"
	"github.com/haivivi/speakerid/pkg/audio/pcm"
	"github.com/haivivi/speakerid/pkg/audio/source"
	"github.com/haivivi/speakerid/pkg/gmm"
	"github.com/haivivi/speakerid/pkg/voiceprint"
)

// DefaultMaxBodyBytes caps uploaded audio (about 5 minutes of 16 kHz PCM16).
const DefaultMaxBodyBytes = 10 << 20

// Options configures a Server.
type Options struct {
	// Config is used for every enrollment and recognition.
	Config voiceprint.Config

	// MaxBodyBytes caps request bodies (DefaultMaxBodyBytes if zero).
	MaxBodyBytes int64

	// MaxSessionSamples caps each streaming session (0 = unlimited).
	MaxSessionSamples int

	Logger *slog.Logger
}

// Server serves the HTTP API.
type Server struct {
	svc      *voiceprint.Service
	opts     Options
	logger   *slog.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// New creates a Server for svc.
func New(svc *voiceprint.Service, opts Options) *Server {
	opts.Config = opts.Config.WithDefaults()
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:    svc,
		opts:   opts,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /v1/speakers", s.handleList)
	s.mux.HandleFunc("GET /v1/speakers/{id}", s.handleGet)
	s.mux.HandleFunc("PUT /v1/speakers/{id}", s.handleEnroll)
	s.mux.HandleFunc("DELETE /v1/speakers/{id}", s.handleDelete)
	s.mux.HandleFunc("POST /v1/recognize", s.handleRecognize)
	s.mux.HandleFunc("GET /v1/stream", s.handleStream)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	recs, err := s.svc.ListSpeakers(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if recs == nil {
		recs = []voiceprint.SpeakerRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"speakers": recs})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.GetSpeaker(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	cfg := s.opts.Config
	if v := r.URL.Query().Get("mixtures"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid mixtures " + strconv.Quote(v)})
			return
		}
		cfg.Mixtures = n
	}
	samples, err := s.readAudio(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.svc.Enroll(r.Context(), r.PathValue("id"), samples, cfg)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteSpeaker(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecognize(w http.ResponseWriter, r *http.Request) {
	threshold, err := parseThreshold(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	samples, err := s.readAudio(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out, err := s.svc.Recognize(r.Context(), samples, s.opts.Config, threshold)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func parseThreshold(r *http.Request) (*float64, error) {
	v := r.URL.Query().Get("threshold")
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid threshold %q", v)
	}
	return &f, nil
}

// readAudio decodes the request body into samples at the configured rate.
func (s *Server) readAudio(w http.ResponseWriter, r *http.Request) ([]float32, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errBodyTooLarge
		}
		return nil, fmt.Errorf("%w: read body: %v", voiceprint.ErrInvalidAudio, err)
	}
	return s.decodeAudio(r.Context(), r.Header.Get("Content-Type"), data)
}

var errBodyTooLarge = errors.New("request body too large")

func (s *Server) decodeAudio(ctx context.Context, contentType string, data []byte) ([]float32, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	isWAV := bytes.HasPrefix(data, []byte("RIFF"))
	switch mediaType {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		isWAV = true
	}
	if !isWAV {
		if len(data) < 2 {
			return nil, fmt.Errorf("%w: empty body", voiceprint.ErrInvalidAudio)
		}
		return pcm.Decode(data), nil
	}
	src, err := source.NewWAV(data, source.WAVOptions{TargetRate: s.opts.Config.SampleRate})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", voiceprint.ErrInvalidAudio, err)
	}
	samples, err := source.Collect(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", voiceprint.ErrInvalidAudio, err)
	}
	return samples, nil
}

type errorBody struct {
	Error string `json:"error"`
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, voiceprint.ErrSpeakerNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBodyTooLarge), errors.Is(err, voiceprint.ErrSessionFull):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, voiceprint.ErrInvalidSpeakerID),
		errors.Is(err, voiceprint.ErrInvalidAudio),
		errors.Is(err, voiceprint.ErrFeatureExtraction),
		errors.Is(err, mfcc.ErrInvalidConfig),
		errors.Is(err, gmm.ErrDimension):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusOf(err)
	if code >= 500 {
		s.logger.Error("request failed", "err", err)
	}
	writeJSON(w, code, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// StreamEvent is sent for every binary message on /v1/stream.
type StreamEvent struct {
	Session  string              `json:"session"`
	State    string              `json:"state"`
	Buffered int                 `json:"buffered"`
	Outcome  *voiceprint.Outcome `json:"outcome,omitempty"`
	Error    string              `json:"error,omitempty"`
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	threshold, err := parseThreshold(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	sess, err := s.svc.StartSession(voiceprint.SessionOptions{
		Config:     s.opts.Config,
		Threshold:  threshold,
		MaxSamples: s.opts.MaxSessionSamples,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer sess.Close()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	id := uuid.NewString()
	logger := s.logger.With("session", id)
	logger.Info("stream opened", "remote", r.RemoteAddr)
	defer logger.Info("stream closed")

	ctx := r.Context()
	for {
		typ, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("stream read", "err", err)
			}
			return
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		ev := StreamEvent{Session: id}
		out, cerr := sess.Consume(ctx, pcm.Decode(data))
		if cerr != nil {
			ev.Error = cerr.Error()
		}
		ev.Outcome = out
		ev.State = sess.State().String()
		ev.Buffered = sess.Buffered()
		if err := ws.WriteJSON(ev); err != nil {
			logger.Debug("stream write", "err", err)
			return
		}
		if cerr != nil && statusOf(cerr) >= 500 {
			return
		}
	}
}

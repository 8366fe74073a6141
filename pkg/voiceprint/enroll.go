package voiceprint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/haivivi/speakerid/pkg/audio/mfcc"
	"github.com/haivivi/speakerid/pkg/audio/source"
	"github.com/haivivi/speakerid/pkg/gmm"
	"github.com/haivivi/speakerid/pkg/jsontime"
)

// EnrollResult describes a committed enrollment.
type EnrollResult struct {
	SpeakerID    string            `json:"speaker_id"`
	ModelPath    string            `json:"model_path"`
	MetadataPath string            `json:"metadata_path"`
	Version      string            `json:"version"`
	Frames       int               `json:"frames"`
	Converged    bool              `json:"converged"`
	Elapsed      jsontime.Duration `json:"elapsed"` // extraction, training and commit
}

// Enroll trains a voiceprint for id from samples at cfg.SampleRate and
// stores it, replacing any previous enrollment of id.
func (s *Service) Enroll(ctx context.Context, id string, samples []float32, cfg Config) (*EnrollResult, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	feats, err := s.extract(cfg, samples)
	if err != nil {
		return nil, err
	}
	model, err := gmm.Train(feats, gmm.Config{
		Components: cfg.Mixtures,
		MaxIter:    cfg.MaxIter,
	})
	if err != nil {
		return nil, trainErr(id, err)
	}
	blob, err := model.MarshalBinary()
	if err != nil {
		return nil, err
	}

	version, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("voiceprint: new version: %w", err)
	}
	rec := SpeakerRecord{
		SpeakerID:    id,
		ModelPath:    s.modelKey(id, version.String()).String(),
		MetadataPath: s.speakerKey(id).String(),
		Version:      version.String(),
		ModelDigest:  digest(blob),
		ModelSize:    len(blob),
		Frames:       feats.Rows(),
		Mixtures:     model.Components,
		Converged:    model.Converged,
		Config:       cfg,
		CreatedAt:    jsontime.NowEpochMilli(),
	}
	recData, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(id)
	defer unlock()

	modelKey := s.modelKey(id, rec.Version)
	if err := s.store.Set(ctx, modelKey, blob); err != nil {
		return nil, storageErr("set", modelKey, err)
	}
	recKey := s.speakerKey(id)
	if err := s.store.Set(ctx, recKey, recData); err != nil {
		return nil, storageErr("set", recKey, err)
	}
	s.models.invalidate(id)
	s.sweep(ctx, id, rec.Version)

	elapsed := time.Since(start)
	s.logger.Info("speaker enrolled",
		"speaker", id,
		"version", rec.Version,
		"frames", rec.Frames,
		"mixtures", rec.Mixtures,
		"converged", rec.Converged,
		"elapsed", elapsed)

	return &EnrollResult{
		SpeakerID:    id,
		ModelPath:    rec.ModelPath,
		MetadataPath: rec.MetadataPath,
		Version:      rec.Version,
		Frames:       rec.Frames,
		Converged:    rec.Converged,
		Elapsed:      jsontime.Duration(elapsed),
	}, nil
}

// sweep deletes every model version of id except keep. The record already
// points at keep, so a failure leaves only unreferenced blobs that the next
// enroll or delete of id removes.
func (s *Service) sweep(ctx context.Context, id, keep string) {
	versions, err := s.modelVersions(ctx, id)
	if err != nil {
		s.logger.Warn("sweep stale models", "speaker", id, "err", err)
		return
	}
	for _, v := range versions {
		if v == keep {
			continue
		}
		if err := s.store.Delete(ctx, s.modelKey(id, v)); err != nil {
			s.logger.Warn("sweep stale models", "speaker", id, "version", v, "err", err)
			return
		}
		s.logger.Debug("stale model removed", "speaker", id, "version", v)
	}
}

// trainErr separates bad training settings from features EM cannot fit.
func trainErr(id string, err error) error {
	if errors.Is(err, gmm.ErrInvalidConfig) || errors.Is(err, gmm.ErrUnsupportedCovariance) {
		return fmt.Errorf("%w: train %s: %w", mfcc.ErrInvalidConfig, id, err)
	}
	return fmt.Errorf("%w: train %s: %w", ErrFeatureExtraction, id, err)
}

// EnrollSource drains src and enrolls the collected samples.
func (s *Service) EnrollSource(ctx context.Context, id string, src source.Source, cfg Config) (*EnrollResult, error) {
	cfg = cfg.WithDefaults()
	if src.SampleRate() != cfg.SampleRate {
		return nil, fmt.Errorf("%w: source rate %d Hz, want %d Hz", ErrInvalidAudio, src.SampleRate(), cfg.SampleRate)
	}
	samples, err := source.Collect(ctx, src)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidAudio, err)
	}
	return s.Enroll(ctx, id, samples, cfg)
}

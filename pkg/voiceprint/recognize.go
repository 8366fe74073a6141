package voiceprint

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/haivivi/speakerid/pkg/audio/mfcc"
)

// Recognize scores samples at cfg.SampleRate against every enrolled
// speaker. threshold overrides cfg.ScoreThreshold when non-nil.
//
// With nobody enrolled the outcome is rejected with Score -Inf. Equal best
// scores resolve to the lexicographically smallest speaker id.
func (s *Service) Recognize(ctx context.Context, samples []float32, cfg Config, threshold *float64) (*Outcome, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	feats, err := s.extract(cfg, samples)
	if err != nil {
		return nil, err
	}
	if threshold == nil {
		threshold = cfg.ScoreThreshold
	}
	return s.RecognizeFeatures(ctx, feats, threshold)
}

// RecognizeFeatures scores a precomputed feature matrix.
func (s *Service) RecognizeFeatures(ctx context.Context, feats mfcc.Matrix, threshold *float64) (*Outcome, error) {
	if feats.Rows() == 0 {
		return nil, fmt.Errorf("%w: %w", ErrFeatureExtraction, mfcc.ErrNoFrames)
	}
	recs, err := s.listRecords(ctx)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return &Outcome{
			Score:    math.Inf(-1),
			Scores:   map[string]float64{},
			Rejected: true,
		}, nil
	}

	type result struct {
		score float64
		ok    bool
	}
	results := make([]result, len(recs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range recs {
		g.Go(func() error {
			rec := &recs[i]
			model, err := s.loadModel(gctx, rec)
			if errors.Is(err, errModelVanished) {
				s.logger.Debug("model vanished, skipping", "speaker", rec.SpeakerID)
				return nil
			}
			if err != nil {
				return err
			}
			score, err := model.Score(feats)
			if err != nil {
				return fmt.Errorf("voiceprint: score %s: %w", rec.SpeakerID, err)
			}
			results[i] = result{score: score, ok: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Outcome{
		Score:  math.Inf(-1),
		Scores: make(map[string]float64, len(recs)),
	}
	// recs is sorted by id, so a strict comparison keeps the smallest id
	// among equal scores.
	for i, r := range results {
		if !r.ok {
			continue
		}
		id := recs[i].SpeakerID
		out.Scores[id] = r.score
		if out.Speaker == "" || r.score > out.Score {
			out.Speaker = id
			out.Score = r.score
		}
	}
	if out.Speaker == "" {
		out.Rejected = true
		return out, nil
	}
	s.logger.Debug("recognized", "speaker", out.Speaker, "score", out.Score, "frames", len(feats))

	if threshold != nil && out.Score < *threshold {
		out.Rejected = true
		out.Speaker = ""
	}
	return out, nil
}

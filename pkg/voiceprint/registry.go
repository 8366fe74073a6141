package voiceprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/haivivi/speakerid/pkg/gmm"
	"github.com/haivivi/speakerid/pkg/jsontime"
	"github.com/haivivi/speakerid/pkg/kv"
)

// SpeakerRecord is the persisted metadata of one enrolled speaker.
type SpeakerRecord struct {
	SpeakerID    string         `json:"speaker_id"`
	ModelPath    string         `json:"model_path"`
	MetadataPath string         `json:"metadata_path"`
	Version      string         `json:"version"`
	ModelDigest  string         `json:"model_digest"` // hex sha256 of the model blob
	ModelSize    int            `json:"model_size"`
	Frames       int            `json:"frames"`
	Mixtures     int            `json:"mixtures"`
	Converged    bool           `json:"converged"`
	Config       Config         `json:"config"`
	CreatedAt    jsontime.Milli `json:"created_at"`
}

// errModelVanished marks a record whose model blob was removed by a
// concurrent delete between listing and loading.
var errModelVanished = errors.New("voiceprint: model vanished")

// validateID rejects ids that cannot be used as a single key segment in
// every kv backend.
func validateID(id string) error {
	switch {
	case id == "", id == ".", id == "..":
		return fmt.Errorf("%w: %q", ErrInvalidSpeakerID, id)
	case strings.ContainsAny(id, ":/\\"):
		return fmt.Errorf("%w: %q contains a reserved character", ErrInvalidSpeakerID, id)
	}
	return nil
}

func (s *Service) speakersPrefix() kv.Key {
	return kv.Key{s.prefix, "speaker"}
}

func (s *Service) speakerKey(id string) kv.Key {
	return s.speakersPrefix().Append(id)
}

func (s *Service) modelsPrefix(id string) kv.Key {
	return kv.Key{s.prefix, "model", id}
}

func (s *Service) modelKey(id, version string) kv.Key {
	return s.modelsPrefix(id).Append(version)
}

func storageErr(op string, key kv.Key, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrStorage, op, key, err)
}

// readRecord loads the record for id.
func (s *Service) readRecord(ctx context.Context, id string) (*SpeakerRecord, error) {
	key := s.speakerKey(id)
	data, err := s.store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSpeakerNotFound, id)
	}
	if err != nil {
		return nil, storageErr("get", key, err)
	}
	return decodeRecord(key, data)
}

func decodeRecord(key kv.Key, data []byte) (*SpeakerRecord, error) {
	var rec SpeakerRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, storageErr("decode", key, err)
	}
	return &rec, nil
}

// listRecords returns every speaker record sorted by id.
func (s *Service) listRecords(ctx context.Context) ([]SpeakerRecord, error) {
	prefix := s.speakersPrefix()
	var recs []SpeakerRecord
	for e, err := range s.store.List(ctx, prefix) {
		if err != nil {
			return nil, storageErr("list", prefix, err)
		}
		if len(e.Key) != len(prefix)+1 {
			continue
		}
		rec, err := decodeRecord(e.Key, e.Value)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	slices.SortFunc(recs, func(a, b SpeakerRecord) int {
		return strings.Compare(a.SpeakerID, b.SpeakerID)
	})
	return recs, nil
}

// modelVersions lists the stored model versions of id.
func (s *Service) modelVersions(ctx context.Context, id string) ([]string, error) {
	prefix := s.modelsPrefix(id)
	var versions []string
	for e, err := range s.store.List(ctx, prefix) {
		if err != nil {
			return nil, storageErr("list", prefix, err)
		}
		if len(e.Key) == len(prefix)+1 {
			versions = append(versions, e.Key[len(prefix)])
		}
	}
	return versions, nil
}

// loadModel returns the model referenced by rec, from cache when the
// cached version matches.
func (s *Service) loadModel(ctx context.Context, rec *SpeakerRecord) (*gmm.Model, error) {
	if m, ok := s.models.get(rec.SpeakerID, rec.Version); ok {
		return m, nil
	}
	key := s.modelKey(rec.SpeakerID, rec.Version)
	blob, err := s.store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", errModelVanished, key)
	}
	if err != nil {
		return nil, storageErr("get", key, err)
	}
	if rec.ModelDigest != "" {
		if len(blob) != rec.ModelSize || digest(blob) != rec.ModelDigest {
			return nil, fmt.Errorf("%w: %s: digest mismatch", gmm.ErrCorrupt, key)
		}
	}
	m, err := gmm.Unmarshal(blob)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	s.models.put(rec.SpeakerID, rec.Version, m)
	return m, nil
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// ListSpeakers returns every enrolled speaker sorted by id.
func (s *Service) ListSpeakers(ctx context.Context) ([]SpeakerRecord, error) {
	return s.listRecords(ctx)
}

// GetSpeaker returns the record of id, or ErrSpeakerNotFound.
func (s *Service) GetSpeaker(ctx context.Context, id string) (*SpeakerRecord, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return s.readRecord(ctx, id)
}

// DeleteSpeaker removes the record and every model version of id.
// Deleting an unknown speaker is not an error.
func (s *Service) DeleteSpeaker(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	unlock := s.locks.lock(id)
	defer unlock()
	defer s.models.invalidate(id)

	key := s.speakerKey(id)
	if err := s.store.Delete(ctx, key); err != nil {
		return storageErr("delete", key, err)
	}
	versions, err := s.modelVersions(ctx, id)
	if err != nil {
		return err
	}
	if len(versions) > 0 {
		keys := make([]kv.Key, len(versions))
		for i, v := range versions {
			keys[i] = s.modelKey(id, v)
		}
		if err := s.store.BatchDelete(ctx, keys); err != nil {
			return storageErr("delete", s.modelsPrefix(id), err)
		}
	}
	s.logger.Info("speaker deleted", "speaker", id, "versions", len(versions))
	return nil
}

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/haivivi/speakerid/pkg/voiceprint"
)

// EnrollManifest lists speakers to enroll in one run.
type EnrollManifest struct {
	// Voiceprint overrides the context settings for this manifest
	Voiceprint *voiceprint.Config `yaml:"voiceprint,omitempty" json:"voiceprint,omitempty"`

	Speakers []ManifestSpeaker `yaml:"speakers" json:"speakers"`
}

// ManifestSpeaker is one speaker in an EnrollManifest. Multiple files are
// concatenated before training.
type ManifestSpeaker struct {
	ID    string   `yaml:"id" json:"id"`
	Files []string `yaml:"files" json:"files"`
}

// LoadManifest reads a YAML or JSON manifest. Relative local file paths
// are resolved against the manifest's directory.
func LoadManifest(path string) (*EnrollManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := ParseManifest(data, path)
	if err != nil {
		return nil, err
	}
	base := filepath.Dir(path)
	for i := range m.Speakers {
		for j, f := range m.Speakers[i].Files {
			m.Speakers[i].Files[j] = resolveAudioPath(base, f)
		}
	}
	return m, nil
}

// ParseManifest decodes and validates manifest data. The format follows
// the file extension; unknown extensions try YAML, then JSON.
func ParseManifest(data []byte, filename string) (*EnrollManifest, error) {
	var m EnrollManifest
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse YAML manifest: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse JSON manifest: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &m); err != nil {
			m = EnrollManifest{}
			if err2 := json.Unmarshal(data, &m); err2 != nil {
				return nil, fmt.Errorf("failed to parse manifest (tried YAML and JSON)")
			}
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that every speaker has an id and at least one file.
func (m *EnrollManifest) Validate() error {
	if len(m.Speakers) == 0 {
		return fmt.Errorf("manifest lists no speakers")
	}
	seen := make(map[string]bool, len(m.Speakers))
	for i, sp := range m.Speakers {
		switch {
		case sp.ID == "":
			return fmt.Errorf("manifest speaker %d has no id", i)
		case len(sp.Files) == 0:
			return fmt.Errorf("manifest speaker %q has no files", sp.ID)
		case seen[sp.ID]:
			return fmt.Errorf("manifest lists speaker %q twice", sp.ID)
		}
		seen[sp.ID] = true
	}
	return nil
}

// VoiceprintConfig returns the manifest's settings, or base when it has
// none.
func (m *EnrollManifest) VoiceprintConfig(base voiceprint.Config) voiceprint.Config {
	if m.Voiceprint == nil {
		return base
	}
	return m.Voiceprint.WithDefaults()
}

func resolveAudioPath(base, p string) string {
	if strings.HasPrefix(p, "s3://") || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

package cli

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/haivivi/speakerid/pkg/voiceprint"
)

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "speakers.yaml")
	data := `voiceprint:
  mixtures: 16
speakers:
  - id: alice
    files: [alice-1.wav, /abs/alice-2.wav]
  - id: bob
    files: [s3://voices/bob.wav]
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest error: %v", err)
	}
	if m.Voiceprint == nil || m.Voiceprint.Mixtures != 16 {
		t.Errorf("voiceprint = %+v", m.Voiceprint)
	}
	if len(m.Speakers) != 2 || m.Speakers[0].ID != "alice" || m.Speakers[1].ID != "bob" {
		t.Fatalf("speakers = %+v", m.Speakers)
	}
	wantAlice := []string{filepath.Join(dir, "alice-1.wav"), "/abs/alice-2.wav"}
	if !slices.Equal(m.Speakers[0].Files, wantAlice) {
		t.Errorf("alice files = %v, want %v", m.Speakers[0].Files, wantAlice)
	}
	if !slices.Equal(m.Speakers[1].Files, []string{"s3://voices/bob.wav"}) {
		t.Errorf("bob files = %v", m.Speakers[1].Files)
	}

	cfg := m.VoiceprintConfig(voiceprint.DefaultConfig())
	if cfg.Mixtures != 16 || cfg.SampleRate != voiceprint.DefaultConfig().SampleRate {
		t.Errorf("manifest config = %+v", cfg)
	}
}

func TestLoadManifest_Missing(t *testing.T) {
	if _, err := LoadManifest(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadManifest should fail for a missing file")
	}
}

func TestParseManifest_Formats(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     string
	}{
		{"yaml", "m.yml", "speakers:\n  - id: alice\n    files: [a.wav]\n"},
		{"json", "m.json", `{"speakers": [{"id": "alice", "files": ["a.wav"]}]}`},
		{"guess yaml", "m.txt", "speakers:\n  - id: alice\n    files: [a.wav]\n"},
		{"guess json", "m", `{"speakers": [{"id": "alice", "files": ["a.wav"]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseManifest([]byte(tt.data), tt.filename)
			if err != nil {
				t.Fatalf("ParseManifest error: %v", err)
			}
			if len(m.Speakers) != 1 || m.Speakers[0].ID != "alice" || !slices.Equal(m.Speakers[0].Files, []string{"a.wav"}) {
				t.Errorf("speakers = %+v", m.Speakers)
			}
			if m.Voiceprint != nil {
				t.Errorf("voiceprint = %+v, want nil", m.Voiceprint)
			}
			base := voiceprint.DefaultConfig()
			if got := m.VoiceprintConfig(base); got.Mixtures != base.Mixtures {
				t.Errorf("VoiceprintConfig() = %+v, want base", got)
			}
		})
	}
}

func TestParseManifest_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"no speakers", "speakers: []\n", "no speakers"},
		{"no id", "speakers:\n  - files: [a.wav]\n", "no id"},
		{"no files", "speakers:\n  - id: alice\n", "no files"},
		{"duplicate", "speakers:\n  - id: alice\n    files: [a.wav]\n  - id: alice\n    files: [b.wav]\n", "twice"},
		{"bad json", "{speakers: [", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filename := "m.yaml"
			if tt.name == "bad json" {
				filename = "m.json"
			}
			_, err := ParseManifest([]byte(tt.data), filename)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

package cli

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/haivivi/speakerid/pkg/jsontime"
	"github.com/haivivi/speakerid/pkg/voiceprint"
)

func testOutcome() *voiceprint.Outcome {
	return &voiceprint.Outcome{
		Speaker: "alice",
		Score:   -31.25,
		Scores:  map[string]float64{"alice": -31.25, "bob": -44.5},
	}
}

func TestOutput_OutcomeJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Output(testOutcome(), OutputOptions{Format: FormatJSON, Writer: &buf}); err != nil {
		t.Fatalf("Output error: %v", err)
	}

	var got voiceprint.Outcome
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Invalid JSON output: %v\n%s", err, buf.String())
	}
	if got.Speaker != "alice" || got.Score != -31.25 || got.Scores["bob"] != -44.5 {
		t.Errorf("decoded = %+v", got)
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Errorf("Output should be indented, got: %s", buf.String())
	}
}

func TestOutput_SpeakerYAML(t *testing.T) {
	var buf bytes.Buffer
	rec := voiceprint.SpeakerRecord{SpeakerID: "alice", Mixtures: 8, Frames: 298}
	if err := Output(rec, OutputOptions{Format: FormatYAML, Writer: &buf}); err != nil {
		t.Fatalf("Output error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "alice") || !strings.Contains(out, "298") {
		t.Errorf("YAML output missing fields:\n%s", out)
	}
}

func TestOutput_OutcomeTable(t *testing.T) {
	o := testOutcome()
	o.Scores["carol"] = math.Inf(-1)

	var buf bytes.Buffer
	if err := Output(o, OutputOptions{Format: FormatTable, Writer: &buf}); err != nil {
		t.Fatalf("Output error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5:\n%s", len(lines), buf.String())
	}
	if lines[0] != "alice (score -31.25)" {
		t.Errorf("summary = %q", lines[0])
	}
	if f := strings.Fields(lines[1]); !slices.Equal(f, []string{"MATCH", "SPEAKER", "SCORE"}) {
		t.Errorf("header = %q", lines[1])
	}
	want := [][]string{
		{"*", "alice", "-31.25"},
		{"bob", "-44.50"},
		{"carol", "-inf"},
	}
	for i, w := range want {
		if f := strings.Fields(lines[i+2]); !slices.Equal(f, w) {
			t.Errorf("row %d = %q, want %q", i, f, w)
		}
	}
}

func TestOutput_RejectedTable(t *testing.T) {
	o := testOutcome()
	o.Speaker, o.Rejected = "", true

	var buf bytes.Buffer
	if err := Output(o, OutputOptions{Format: FormatTable, Writer: &buf}); err != nil {
		t.Fatalf("Output error: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "rejected (best -31.25)\n") {
		t.Errorf("output = %q", buf.String())
	}
	if strings.Contains(buf.String(), "*") {
		t.Errorf("rejected outcome marks a match:\n%s", buf.String())
	}
}

func TestOutput_EmptyTables(t *testing.T) {
	var buf bytes.Buffer
	if err := Output(&voiceprint.Outcome{Score: math.Inf(-1)}, OutputOptions{Format: FormatTable, Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "no speakers enrolled\n" {
		t.Errorf("empty outcome = %q", buf.String())
	}

	buf.Reset()
	if err := Output([]voiceprint.SpeakerRecord(nil), OutputOptions{Format: FormatTable, Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "No speakers enrolled\n" {
		t.Errorf("empty speakers = %q", buf.String())
	}
}

func TestOutput_SpeakersTable(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	recs := []voiceprint.SpeakerRecord{
		{SpeakerID: "alice", Mixtures: 8, Frames: 298, ModelSize: 3 * 1024, CreatedAt: jsontime.Milli(created)},
		{SpeakerID: "bob", Mixtures: 16, Frames: 1200, ModelSize: 900, CreatedAt: jsontime.Milli(created)},
	}

	var buf bytes.Buffer
	if err := Output(recs, OutputOptions{Format: FormatTable, Writer: &buf}); err != nil {
		t.Fatalf("Output error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "SPEAKER") || !strings.Contains(lines[0], "ENROLLED") {
		t.Errorf("header = %q", lines[0])
	}
	for _, want := range []string{"alice", "298", "3.0 KB", "2026-03-01 12:00:00"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("row %q missing %q", lines[1], want)
		}
	}
	if !strings.Contains(lines[2], "900 B") {
		t.Errorf("row %q missing model size", lines[2])
	}
}

func TestOutput_EnrollTable(t *testing.T) {
	results := []*voiceprint.EnrollResult{
		{SpeakerID: "alice", Version: "v1", Frames: 298, Converged: true, Elapsed: jsontime.Duration(1500 * time.Millisecond)},
		{SpeakerID: "bob", Version: "v2", Frames: 99, Elapsed: jsontime.Duration(80 * time.Millisecond)},
	}

	var buf bytes.Buffer
	if err := Output(results, OutputOptions{Format: FormatTable, Writer: &buf}); err != nil {
		t.Fatalf("Output error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	want := [][]string{
		{"SPEAKER", "VERSION", "FRAMES", "CONVERGED", "ELAPSED"},
		{"alice", "v1", "298", "true", "1.5s"},
		{"bob", "v2", "99", "false", "80ms"},
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	for i, w := range want {
		if f := strings.Fields(lines[i]); !slices.Equal(f, w) {
			t.Errorf("line %d = %q, want %q", i, f, w)
		}
	}

	buf.Reset()
	if err := Output(results[0], OutputOptions{Format: FormatTable, Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(buf.String(), "\n"); n != 2 {
		t.Errorf("single result printed %d lines", n)
	}
}

func TestOutput_TableFallsBackToYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := Output(map[string]int{"frames": 3}, OutputOptions{Format: FormatTable, Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "frames: 3" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestOutput_InvalidFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Output(testOutcome(), OutputOptions{Format: "invalid", Writer: &buf}); err == nil {
		t.Error("Output should fail for unsupported format")
	}
}

func TestOutput_ToFile(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "outcome.json")
	if err := Output(testOutcome(), OutputOptions{Format: FormatJSON, File: filePath}); err != nil {
		t.Fatalf("Output error: %v", err)
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	var got voiceprint.Outcome
	if err := json.Unmarshal(content, &got); err != nil {
		t.Fatalf("Invalid JSON in file: %v", err)
	}
	if got.Speaker != "alice" {
		t.Errorf("speaker = %q", got.Speaker)
	}
}

func TestRankedSpeakers(t *testing.T) {
	o := &voiceprint.Outcome{Scores: map[string]float64{
		"dave": -50, "bob": -40, "alice": -40, "carol": math.Inf(-1),
	}}
	if got := RankedSpeakers(o); !slices.Equal(got, []string{"alice", "bob", "dave", "carol"}) {
		t.Errorf("RankedSpeakers() = %v", got)
	}
	if got := RankedSpeakers(&voiceprint.Outcome{}); len(got) != 0 {
		t.Errorf("RankedSpeakers(empty) = %v", got)
	}
}

package cli

import (
	"bytes"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/haivivi/speakerid/pkg/voiceprint"
)

func TestLogWriter(t *testing.T) {
	w := NewLogWriter(3)
	if got := w.Lines(); len(got) != 0 {
		t.Errorf("Lines() = %v, want empty", got)
	}

	w.Write([]byte("a\nb\n"))
	if got := w.Lines(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Lines() = %v", got)
	}

	w.Write([]byte("c\nd\ne\n"))
	if got := w.Lines(); !slices.Equal(got, []string{"c", "d", "e"}) {
		t.Errorf("Lines() after wrap = %v", got)
	}
}

func TestFrameRender(t *testing.T) {
	f := Frame{
		Styles: DefaultStyles(),
		Title:  "speakerid live",
		Status: "listening",
		Sections: []Section{
			{Label: "Speaker", Lines: []string{"status: single", "speaker: alice (80%)", "dropped"}, Height: 2},
			{Label: "Windows", Lines: []string{"w1", "w2", "w3", "w4", strings.Repeat("x", 200)}},
			{Label: "Log"},
		},
		Help: "ctrl+c to quit",
	}

	if got := f.Render(0, 0); got != "Loading..." {
		t.Errorf("Render(0, 0) = %q", got)
	}

	// 20 rows: 5 of chrome, 3 labels, 2 fixed, leaving 5 each for the
	// flex sections.
	out := f.Render(60, 20)
	lines := strings.Split(out, "\n")
	if len(lines) != 20 {
		t.Errorf("rendered %d lines, want 20", len(lines))
	}
	for i, line := range lines[:len(lines)-1] {
		if w := lipgloss.Width(line); w != 60 {
			t.Errorf("line %d width = %d, want 60", i, w)
		}
	}
	// Sections show their last lines.
	if strings.Contains(out, "status: single") || !strings.Contains(out, "dropped") {
		t.Errorf("fixed section not tailed:\n%s", out)
	}
	if !strings.Contains(out, "w1") || !strings.Contains(out, "…") {
		t.Errorf("missing content or truncation:\n%s", out)
	}
}

func TestRedraw(t *testing.T) {
	var buf bytes.Buffer
	if err := Redraw(&buf, "frame"); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "\033[H\033[2Jframe" {
		t.Errorf("Redraw wrote %q", buf.String())
	}
}

func TestScoreBars(t *testing.T) {
	s := DefaultStyles()
	o := &voiceprint.Outcome{
		Speaker: "alice",
		Score:   -30,
		Scores:  map[string]float64{"alice": -30, "bob": -40, "carol": -50, "dave": math.Inf(-1)},
	}

	const width = 40
	lines := s.ScoreBars(o, width)
	if len(lines) != 4 {
		t.Fatalf("got %d bars, want 4", len(lines))
	}
	// name(5) + space + bar + space + score(8)
	const barWidth = width - 5 - 10
	wantFill := []int{barWidth, int(math.Round(barWidth / 2.0)), 0, 0}
	for i, line := range lines {
		if w := lipgloss.Width(line); w != width {
			t.Errorf("bar %d width = %d, want %d", i, w, width)
		}
		if got := strings.Count(line, "█"); got != wantFill[i] {
			t.Errorf("bar %d fill = %d, want %d: %q", i, got, wantFill[i], line)
		}
	}
	for i, id := range []string{"alice", "bob", "carol", "dave"} {
		if !strings.HasPrefix(lines[i], id) {
			t.Errorf("bar %d = %q, want %s first", i, lines[i], id)
		}
	}
	if !strings.HasSuffix(lines[3], "-inf") {
		t.Errorf("dave bar = %q", lines[3])
	}
}

func TestScoreBarsSingleSpeaker(t *testing.T) {
	s := DefaultStyles()
	if got := s.ScoreBars(&voiceprint.Outcome{Score: math.Inf(-1)}, 40); got != nil {
		t.Errorf("ScoreBars(empty) = %q", got)
	}

	o := &voiceprint.Outcome{Speaker: "a-very-long-speaker-id", Score: -20, Scores: map[string]float64{"a-very-long-speaker-id": -20}}
	lines := s.ScoreBars(o, 30)
	if len(lines) != 1 {
		t.Fatalf("got %d bars", len(lines))
	}
	if w := lipgloss.Width(lines[0]); w != 30 {
		t.Errorf("width = %d, want 30: %q", w, lines[0])
	}
	if strings.Contains(lines[0], "░") {
		t.Errorf("a lone speaker should fill its bar: %q", lines[0])
	}
}

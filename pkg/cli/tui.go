package cli

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/haivivi/speakerid/pkg/voiceprint"
)

// Styles holds the live view styles.
type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Border lipgloss.Style
	Help   lipgloss.Style
	Best   lipgloss.Style // bar of the matched speaker
	Other  lipgloss.Style
}

// DefaultStyles is the bright green scheme of the live view.
func DefaultStyles() Styles {
	primary := lipgloss.Color("#00ff9f")
	dim := lipgloss.Color("#6e7681")
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(primary).Padding(0, 1),
		Label:  lipgloss.NewStyle().Bold(true).Foreground(primary),
		Border: lipgloss.NewStyle().Foreground(primary),
		Help:   lipgloss.NewStyle().Foreground(dim),
		Best:   lipgloss.NewStyle().Foreground(primary),
		Other:  lipgloss.NewStyle().Foreground(dim),
	}
}

// Section is a labeled block of a Frame. A section with Height 0 shares
// the rows left over by fixed-height sections. Only the last rows of
// Lines are shown.
type Section struct {
	Label  string
	Lines  []string
	Height int
}

// Frame renders a complete TUI frame with title, sections, and help text.
type Frame struct {
	Styles   Styles
	Title    string
	Status   string
	Sections []Section
	Help     string
}

// Render renders the frame to a string.
func (f Frame) Render(width, height int) string {
	if width == 0 || height == 0 {
		return "Loading..."
	}

	bc := f.Styles.Border
	maxContentWidth := width - 4

	var lines []string
	lines = append(lines, bc.Render("╭"+strings.Repeat("─", width-2)+"╮"))

	// │ title [status]    │
	title := f.Styles.Title.Render(f.Title)
	status := f.Styles.Help.Render("[" + f.Status + "]")
	padding := max(0, width-5-lipgloss.Width(title)-lipgloss.Width(status))
	lines = append(lines, bc.Render("│")+" "+title+" "+status+
		strings.Repeat(" ", padding)+" "+bc.Render("│"))
	lines = append(lines, bc.Render("│")+strings.Repeat(" ", width-2)+bc.Render("│"))

	// top, title, spacer, bottom and help take 5 rows; each label takes one.
	free := height - 5 - len(f.Sections)
	flex := 0
	for _, sec := range f.Sections {
		if sec.Height > 0 {
			free -= sec.Height
		} else {
			flex++
		}
	}
	flexHeight := 1
	if flex > 0 {
		flexHeight = max(free/flex, 1)
	}

	for _, sec := range f.Sections {
		h := sec.Height
		if h <= 0 {
			h = flexHeight
		}
		lines = append(lines, f.renderSection(bc, sec, h, width, maxContentWidth)...)
	}

	lines = append(lines, bc.Render("╰"+strings.Repeat("─", width-2)+"╯"))
	lines = append(lines, f.Styles.Help.Render(f.Help))

	return strings.Join(lines, "\n")
}

func (f Frame) renderSection(bc lipgloss.Style, sec Section, height, width, maxContentWidth int) []string {
	var lines []string

	// ├─Label──────┤
	labelText := f.Styles.Label.Render(sec.Label)
	padding := max(0, width-3-lipgloss.Width(labelText))
	lines = append(lines, bc.Render("├")+bc.Render("─")+labelText+
		bc.Render(strings.Repeat("─", padding))+bc.Render("┤"))

	start := max(0, len(sec.Lines)-height)
	for i := 0; i < height; i++ {
		text := ""
		if idx := start + i; idx < len(sec.Lines) {
			text = sec.Lines[idx]
		}
		if maxContentWidth > 1 && lipgloss.Width(text) > maxContentWidth {
			text = truncateString(text, maxContentWidth-1) + "…"
		}
		lines = append(lines, bc.Render("│")+" "+text+
			strings.Repeat(" ", max(0, maxContentWidth-lipgloss.Width(text)))+" "+bc.Render("│"))
	}
	return lines
}

// Redraw clears the terminal and writes frame at the top left.
func Redraw(w io.Writer, frame string) error {
	_, err := io.WriteString(w, "\033[H\033[2J"+frame)
	return err
}

// ScoreBars renders one bar per scored speaker, best first, each at most
// width cells wide. Bars span the range between the lowest and highest
// finite score; a -Inf score draws an empty bar.
func (s Styles) ScoreBars(o *voiceprint.Outcome, width int) []string {
	if o == nil || len(o.Scores) == 0 {
		return nil
	}
	ids := RankedSpeakers(o)

	lo, hi := math.Inf(1), math.Inf(-1)
	nameWidth := 0
	for _, id := range ids {
		if v := o.Scores[id]; !math.IsInf(v, 0) && !math.IsNaN(v) {
			lo, hi = min(lo, v), max(hi, v)
		}
		nameWidth = max(nameWidth, lipgloss.Width(id))
	}
	nameWidth = min(nameWidth, max(width/3, 1))

	const scoreWidth = 8
	barWidth := max(width-nameWidth-scoreWidth-2, 1)

	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		v := o.Scores[id]
		var frac float64
		switch {
		case math.IsInf(v, -1), math.IsNaN(v):
		case hi > lo:
			frac = (v - lo) / (hi - lo)
		default:
			frac = 1
		}
		fill := int(math.Round(frac * float64(barWidth)))

		style := s.Other
		if id == o.Speaker {
			style = s.Best
		}
		name := id
		if lipgloss.Width(name) > nameWidth {
			name = truncateString(name, nameWidth)
		}
		bar := style.Render(strings.Repeat("█", fill)) + strings.Repeat("░", barWidth-fill)
		lines = append(lines, fmt.Sprintf("%s%s %s %*s",
			name, strings.Repeat(" ", nameWidth-lipgloss.Width(name)),
			bar, scoreWidth, FormatScore(v)))
	}
	return lines
}

// truncateString safely truncates a string to the given width,
// handling multi-byte characters correctly.
func truncateString(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	currentWidth := 0
	for i, r := range runes {
		w := lipgloss.Width(string(r))
		if currentWidth+w > width {
			return string(runes[:i])
		}
		currentWidth += w
	}
	return s
}

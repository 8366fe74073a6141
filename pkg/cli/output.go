package cli

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/speakerid/pkg/voiceprint"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	// FormatYAML outputs as YAML
	FormatYAML OutputFormat = "yaml"
	// FormatJSON outputs as JSON
	FormatJSON OutputFormat = "json"
	// FormatTable outputs outcomes, speaker records and enroll results as
	// aligned columns. Other values fall back to YAML.
	FormatTable OutputFormat = "table"
)

// OutputOptions configures output behavior
type OutputOptions struct {
	Format OutputFormat

	// File is the output file path (empty for stdout)
	File string

	// Writer is an optional custom writer (overrides File)
	Writer io.Writer
}

// Output writes the result to the configured destination
func Output(result any, opts OutputOptions) error {
	var w io.Writer = os.Stdout

	if opts.Writer != nil {
		w = opts.Writer
	} else if opts.File != "" {
		f, err := os.Create(opts.File)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch opts.Format {
	case FormatJSON:
		return outputJSON(w, result)
	case FormatYAML, "":
		return outputYAML(w, result)
	case FormatTable:
		return outputTable(w, result)
	default:
		return fmt.Errorf("unsupported output format: %s", opts.Format)
	}
}

func outputJSON(w io.Writer, result any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func outputYAML(w io.Writer, result any) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func outputTable(w io.Writer, result any) error {
	switch v := result.(type) {
	case *voiceprint.Outcome:
		return writeOutcome(w, v)
	case []voiceprint.SpeakerRecord:
		return writeSpeakers(w, v)
	case *voiceprint.EnrollResult:
		return writeEnrollResults(w, []*voiceprint.EnrollResult{v})
	case []*voiceprint.EnrollResult:
		return writeEnrollResults(w, v)
	default:
		return outputYAML(w, result)
	}
}

func writeOutcome(w io.Writer, o *voiceprint.Outcome) error {
	if _, err := fmt.Fprintln(w, OutcomeSummary(o)); err != nil {
		return err
	}
	if len(o.Scores) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MATCH\tSPEAKER\tSCORE")
	for _, id := range RankedSpeakers(o) {
		mark := ""
		if id == o.Speaker {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", mark, id, FormatScore(o.Scores[id]))
	}
	return tw.Flush()
}

func writeSpeakers(w io.Writer, recs []voiceprint.SpeakerRecord) error {
	if len(recs) == 0 {
		_, err := fmt.Fprintln(w, "No speakers enrolled")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SPEAKER\tMIXTURES\tFRAMES\tMODEL\tENROLLED")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n",
			r.SpeakerID, r.Mixtures, r.Frames,
			FormatSize(r.ModelSize),
			r.CreatedAt.Time().Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func writeEnrollResults(w io.Writer, results []*voiceprint.EnrollResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SPEAKER\tVERSION\tFRAMES\tCONVERGED\tELAPSED")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%s\n",
			r.SpeakerID, r.Version, r.Frames, r.Converged,
			FormatDuration(time.Duration(r.Elapsed)))
	}
	return tw.Flush()
}

// OutcomeSummary describes an outcome in one line.
func OutcomeSummary(o *voiceprint.Outcome) string {
	switch {
	case len(o.Scores) == 0:
		return "no speakers enrolled"
	case o.Rejected:
		return fmt.Sprintf("rejected (best %s)", FormatScore(o.Score))
	default:
		return fmt.Sprintf("%s (score %s)", o.Speaker, FormatScore(o.Score))
	}
}

// RankedSpeakers returns the scored speakers, best first. Ties keep id
// order.
func RankedSpeakers(o *voiceprint.Outcome) []string {
	return slices.SortedStableFunc(slices.Values(slices.Sorted(maps.Keys(o.Scores))), func(a, b string) int {
		return cmp.Compare(o.Scores[b], o.Scores[a])
	})
}

// Print helpers for terminal output

// PrintSuccess prints a success message with checkmark
func PrintSuccess(format string, args ...any) {
	fmt.Printf("✓ "+format+"\n", args...)
}

// PrintVerbose prints verbose output to stderr
func PrintVerbose(verbose bool, format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}

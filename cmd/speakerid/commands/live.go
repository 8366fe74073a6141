package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/haivivi/speakerid/pkg/audio/capture"
	"github.com/haivivi/speakerid/pkg/audio/source"
	"github.com/haivivi/speakerid/pkg/cli"
	"github.com/haivivi/speakerid/pkg/voiceprint"
)

var (
	liveDevice      string
	liveListDevices bool
	liveWindow      time.Duration
	liveStable      int
	liveAgree       float64
	livePlain       bool
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Recognize speakers from the microphone",
	Long: `Capture the microphone and recognize speakers continuously.

Audio is cut into windows (--window). Each window runs its own streaming
session, so scores refresh as audio arrives and cost stays bounded. The
final outcome of every window is fed to a stabilizer that reports a
speaker only when at least --agree of the last --stable windows name it.

Examples:
  speakerid live
  speakerid live --device "USB" --window 2s --threshold -45
  speakerid live --list-devices`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if liveListDevices {
			names, err := capture.Devices()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		}
		if liveWindow <= 0 {
			return fmt.Errorf("--window must be positive")
		}
		if liveAgree <= 0 || liveAgree > 1 {
			return fmt.Errorf("--agree must be in (0, 1]")
		}

		cctx, err := getContext()
		if err != nil {
			return err
		}
		vcfg, err := resolveVoiceprint(cmd, cctx)
		if err != nil {
			return err
		}
		device := liveDevice
		if device == "" {
			device = cctx.Device
		}

		view := newLiveView(!livePlain && term.IsTerminal(os.Stdout.Fd()))
		if view.tui {
			slog.SetDefault(slog.New(slog.NewTextHandler(view.logs, nil)))
		}

		svc, closeSvc, err := openService(cctx)
		if err != nil {
			return err
		}
		defer closeSvc()

		mic, err := capture.Open(capture.Config{
			SampleRate: vcfg.SampleRate,
			Device:     device,
			Logger:     slog.Default(),
		})
		if err != nil {
			return err
		}
		defer mic.Close()

		ctx, cancel := signalContext(context.Background())
		defer cancel()

		return runLive(ctx, svc, mic, vcfg, view)
	},
}

func runLive(ctx context.Context, svc *voiceprint.Service, src source.Source, cfg voiceprint.Config, view *liveView) error {
	seg := source.NewSegmenter(ctx, src, int(liveWindow.Seconds()*float64(cfg.SampleRate)))
	defer seg.Close()
	det := voiceprint.NewDetector(
		voiceprint.WithWindowSize(liveStable),
		voiceprint.WithMinRatio(float32(liveAgree)),
	)

	view.status("listening")
	for {
		window, ok := seg.Next()
		if !ok {
			break
		}
		sess, err := svc.StartSession(voiceprint.SessionOptions{Config: cfg})
		if err != nil {
			return err
		}
		last, err := voiceprint.Pump(ctx, window, sess, voiceprint.PumpOptions{
			OnOutcome: view.outcome,
		})
		sess.Close()
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			return err
		}
		if last != nil {
			view.stable(det.Feed(last), last)
		}
	}
	view.status("stopped")
	return nil
}

// liveView renders live recognition either as a redrawn terminal frame
// or as one line per window.
type liveView struct {
	tui  bool
	logs *cli.LogWriter

	mu      sync.Mutex
	state   string
	current *voiceprint.Outcome
	stab    *voiceprint.SpeakerState
	history []string
}

func newLiveView(tui bool) *liveView {
	return &liveView{tui: tui, logs: cli.NewLogWriter(100)}
}

func (v *liveView) status(s string) {
	v.mu.Lock()
	v.state = s
	v.mu.Unlock()
	if v.tui {
		v.render()
	} else {
		fmt.Printf("[%s]\n", s)
	}
}

func (v *liveView) outcome(o *voiceprint.Outcome) {
	v.mu.Lock()
	v.current = o
	v.mu.Unlock()
	if v.tui {
		v.render()
	}
}

func (v *liveView) stable(s *voiceprint.SpeakerState, last *voiceprint.Outcome) {
	line := cli.OutcomeSummary(last)
	if s != nil {
		line += fmt.Sprintf("  [%s %.0f%%]", s.Status, s.Confidence*100)
	}
	v.mu.Lock()
	v.stab = s
	v.history = append(v.history, time.Now().Format(time.TimeOnly)+"  "+line)
	v.mu.Unlock()
	if v.tui {
		v.render()
	} else {
		fmt.Println(line)
	}
}

func (v *liveView) render() {
	v.mu.Lock()
	defer v.mu.Unlock()
	width, height, err := term.GetSize(os.Stdout.Fd())
	if err != nil {
		width, height = 80, 24
	}
	cli.Redraw(os.Stdout, v.frame(width).Render(width, height-1))
}

// frame builds the live view for a terminal width columns wide. The
// caller holds v.mu.
func (v *liveView) frame(width int) cli.Frame {
	styles := cli.DefaultStyles()
	scores := []string{"waiting for audio..."}
	if v.current != nil {
		// Border and padding take 4 columns.
		scores = append([]string{cli.OutcomeSummary(v.current)}, styles.ScoreBars(v.current, width-4)...)
	}
	return cli.Frame{
		Styles: styles,
		Title:  "speakerid live",
		Status: v.state,
		Sections: []cli.Section{
			{Label: " Speaker ", Lines: v.speakerLines(), Height: 3},
			{Label: " Scores ", Lines: scores},
			{Label: " Windows ", Lines: v.history},
			{Label: " Log ", Lines: v.logs.Lines()},
		},
		Help: "ctrl+c to quit",
	}
}

func (v *liveView) speakerLines() []string {
	if v.stab == nil {
		return []string{"waiting for audio..."}
	}
	lines := []string{fmt.Sprintf("status: %s", v.stab.Status)}
	if v.stab.Speaker != "" {
		lines = append(lines, fmt.Sprintf("speaker: %s (%.0f%%)", v.stab.Speaker, v.stab.Confidence*100))
	}
	if len(v.stab.Candidates) > 1 {
		lines = append(lines, fmt.Sprintf("candidates: %v", v.stab.Candidates))
	}
	return lines
}

func init() {
	f := liveCmd.Flags()
	f.StringVar(&liveDevice, "device", "", "capture device name substring (default: context device or system default)")
	f.BoolVar(&liveListDevices, "list-devices", false, "list capture devices and exit")
	f.DurationVar(&liveWindow, "window", 3*time.Second, "audio per recognition window")
	f.IntVar(&liveStable, "stable", 5, "windows considered by the stabilizer")
	f.Float64Var(&liveAgree, "agree", 0.6, "share of those windows that must name the same speaker")
	f.BoolVar(&livePlain, "plain", false, "print one line per window instead of a live frame")
	addVoiceprintFlags(liveCmd)
}

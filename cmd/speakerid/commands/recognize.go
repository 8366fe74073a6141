package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/speakerid/pkg/audio/source"
	"github.com/haivivi/speakerid/pkg/cli"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize <audio>",
	Short: "Identify the speaker of an audio file",
	Long: `Score an audio file against every enrolled speaker.

The result lists every speaker's mean log-likelihood. The best speaker is
reported unless its score falls below --threshold (or the context's
score_threshold), in which case the outcome is rejected.

Examples:
  speakerid recognize query.wav
  speakerid recognize query.wav --threshold -45 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cctx, err := getContext()
		if err != nil {
			return err
		}
		vcfg, err := resolveVoiceprint(cmd, cctx)
		if err != nil {
			return err
		}

		svc, closeSvc, err := openService(cctx)
		if err != nil {
			return err
		}
		defer closeSvc()

		ctx, cancel := signalContext(context.Background())
		defer cancel()

		src, err := openAudio(ctx, cctx, args[0], vcfg.SampleRate)
		if err != nil {
			return err
		}
		samples, err := source.Collect(ctx, src)
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		printVerbose("Read %d samples (%s)", len(samples), cli.FormatSamples(len(samples), vcfg.SampleRate))

		out, err := svc.Recognize(ctx, samples, vcfg, nil)
		if err != nil {
			return err
		}
		return outputResult(out, cli.FormatTable)
	},
}

func init() {
	addVoiceprintFlags(recognizeCmd)
}

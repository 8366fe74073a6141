package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/speakerid/pkg/audio/source"
	"github.com/haivivi/speakerid/pkg/cli"
	"github.com/haivivi/speakerid/pkg/voiceprint"
)

var enrollFile string

var enrollCmd = &cobra.Command{
	Use:   "enroll [<speaker-id> <audio>...]",
	Short: "Enroll speakers from audio files",
	Long: `Train a speaker model and store it, replacing any previous model.

Audio is WAV (any rate, mono or stereo; resampled and downmixed) or raw
16-bit little-endian mono PCM (.pcm, .raw) at the analysis rate. Paths may
be local or s3://bucket/key.

Example manifest (speakers.yaml):
  voiceprint:
    mixtures: 16
  speakers:
    - id: alice
      files: [alice-1.wav, alice-2.wav]
    - id: bob
      files: [s3://voices/bob.wav]

Examples:
  speakerid enroll alice alice.wav
  speakerid enroll bob bob-1.wav bob-2.wav --mixtures 16
  speakerid enroll -f speakers.yaml --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cctx, err := getContext()
		if err != nil {
			return err
		}

		var manifest *cli.EnrollManifest
		switch {
		case enrollFile != "":
			if len(args) > 0 {
				return fmt.Errorf("use either -f or <speaker-id> <audio>, not both")
			}
			if manifest, err = cli.LoadManifest(enrollFile); err != nil {
				return err
			}
		case len(args) >= 2:
			manifest = &cli.EnrollManifest{
				Speakers: []cli.ManifestSpeaker{{ID: args[0], Files: args[1:]}},
			}
		default:
			return fmt.Errorf("requires <speaker-id> <audio>... or -f manifest")
		}

		vcfg := manifest.VoiceprintConfig(cctx.VoiceprintConfig())
		if vcfg, err = voiceprintFlags(cmd, vcfg); err != nil {
			return err
		}
		if err := vcfg.Validate(); err != nil {
			return err
		}

		svc, closeSvc, err := openService(cctx)
		if err != nil {
			return err
		}
		defer closeSvc()

		ctx, cancel := signalContext(context.Background())
		defer cancel()

		var results []*voiceprint.EnrollResult
		for _, sp := range manifest.Speakers {
			printVerbose("Enrolling %s from %s", sp.ID, strings.Join(sp.Files, ", "))
			res, err := enrollSpeaker(ctx, svc, cctx, sp.ID, sp.Files, vcfg)
			if err != nil {
				return fmt.Errorf("enroll %s: %w", sp.ID, err)
			}
			results = append(results, res)
		}

		if len(results) == 1 {
			return outputResult(results[0], cli.FormatTable)
		}
		return outputResult(results, cli.FormatTable)
	},
}

func enrollSpeaker(ctx context.Context, svc *voiceprint.Service, cctx *cli.Context, id string, files []string, cfg voiceprint.Config) (*voiceprint.EnrollResult, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no audio files")
	}
	if len(files) == 1 {
		src, err := openAudio(ctx, cctx, files[0], cfg.SampleRate)
		if err != nil {
			return nil, err
		}
		return svc.EnrollSource(ctx, id, src, cfg)
	}
	var samples []float32
	for _, f := range files {
		src, err := openAudio(ctx, cctx, f, cfg.SampleRate)
		if err != nil {
			return nil, err
		}
		data, err := source.Collect(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		samples = append(samples, data...)
	}
	return svc.Enroll(ctx, id, samples, cfg)
}

func init() {
	enrollCmd.Flags().StringVarP(&enrollFile, "file", "f", "", "enrollment manifest (YAML or JSON)")
	addVoiceprintFlags(enrollCmd)
}

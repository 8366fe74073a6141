package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haivivi/speakerid/pkg/audio/source"
	"github.com/haivivi/speakerid/pkg/cli"
	"github.com/haivivi/speakerid/pkg/voiceprint"
)

// addVoiceprintFlags registers the flags that override a context's
// voiceprint settings.
func addVoiceprintFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("sample-rate", 0, "analysis sample rate in Hz (default 16000)")
	f.Int("mixtures", 0, "GMM components per speaker (default 8)")
	f.Int("max-iter", 0, "maximum EM iterations (default 100)")
	f.Float64("threshold", 0, "reject matches scoring below this mean log-likelihood")
}

// voiceprintFlags returns base with every explicitly set flag applied.
func voiceprintFlags(cmd *cobra.Command, base voiceprint.Config) (voiceprint.Config, error) {
	f := cmd.Flags()
	for name, dst := range map[string]*int{
		"sample-rate": &base.SampleRate,
		"mixtures":    &base.Mixtures,
		"max-iter":    &base.MaxIter,
	} {
		if f.Lookup(name) == nil || !f.Changed(name) {
			continue
		}
		v, err := f.GetInt(name)
		if err != nil {
			return base, fmt.Errorf("failed to read '%s' flag: %w", name, err)
		}
		if v <= 0 {
			return base, fmt.Errorf("--%s must be positive", name)
		}
		*dst = v
	}
	if f.Lookup("threshold") != nil && f.Changed("threshold") {
		v, err := f.GetFloat64("threshold")
		if err != nil {
			return base, fmt.Errorf("failed to read 'threshold' flag: %w", err)
		}
		base.ScoreThreshold = &v
	}
	return base, nil
}

// resolveVoiceprint merges the context settings with command flags.
func resolveVoiceprint(cmd *cobra.Command, ctx *cli.Context) (voiceprint.Config, error) {
	cfg, err := voiceprintFlags(cmd, ctx.VoiceprintConfig())
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// openAudio opens a WAV or raw PCM16 file, locally or on S3, resampled to
// rate.
func openAudio(ctx context.Context, cctx *cli.Context, path string, rate int) (source.Source, error) {
	store, name, err := cli.OpenInput(cctx.Store, path)
	if err != nil {
		return nil, err
	}
	src, err := source.Open(ctx, store, name, rate)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return src, nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

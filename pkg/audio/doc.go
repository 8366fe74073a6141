// Package audio is an umbrella for the audio sub-packages:
//
//   - pcm: 16-bit PCM formats and float32 conversion
//   - resampler: sample rate conversion and downmixing
//   - source: chunked audio sources (WAV, raw PCM, in-memory)
//   - capture: microphone capture
//   - mfcc: MFCC feature extraction
//
// Example usage:
//
//	import (
//	    "github.com/haivivi/speakerid/pkg/audio/mfcc"
//	    "github.com/haivivi/speakerid/pkg/audio/source"
//	)
//
//	src, err := source.Open(ctx, store, "alice.wav", 16000)
//	samples, err := source.Collect(ctx, src)
//	ext, err := mfcc.New(mfcc.DefaultConfig())
//	feats, err := ext.Extract(samples)
package audio

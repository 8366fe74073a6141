// Package pcm handles raw 16-bit mono PCM audio, the wire format of the
// streaming endpoint and of raw audio files.
//
//	format, err := pcm.FormatForRate(16000) // pcm.L16Mono16K
//	samples := pcm.Decode(frame)            // []float32 in [-1, 1)
package pcm

package resampler

// Format describes one side of a conversion.
type Format struct {
	// SampleRate is the sample rate in Hz (e.g., 44100, 48000).
	SampleRate int

	// Stereo marks interleaved two-channel input; Downmix it first.
	Stereo bool
}

// Channels returns 2 for stereo and 1 for mono.
func (f Format) Channels() int {
	if f.Stereo {
		return 2
	}
	return 1
}

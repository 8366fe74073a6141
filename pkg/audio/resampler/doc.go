// Package resampler converts audio to the sample rate the feature
// extractor expects, using the pure Go github.com/tphakala/go-audio-resampling
// engine.
//
//	rs, err := resampler.New(resampler.Format{SampleRate: 44100}, resampler.Format{SampleRate: 16000})
//	if err != nil {
//	    return err
//	}
//	for chunk := range chunks {
//	    out, err := rs.Process(resampler.Downmix(chunk, 2))
//	    ...
//	}
package resampler

package mfcc

import "math"

// PreEmphasize applies y[0] = x[0], y[t] = x[t] - alpha*x[t-1].
func PreEmphasize(x []float32, alpha float64) []float64 {
	y := make([]float64, len(x))
	if len(x) == 0 {
		return y
	}
	y[0] = float64(x[0])
	for t := 1; t < len(x); t++ {
		y[t] = float64(x[t]) - alpha*float64(x[t-1])
	}
	return y
}

// FrameCount returns max(1, ceil((n-frameLen)/hop) + 1).
func FrameCount(n, frameLen, hop int) int {
	if n <= frameLen {
		return 1
	}
	return (n-frameLen+hop-1)/hop + 1
}

// Frame slices x into FrameCount overlapping frames of frameLen samples at
// stride hop. The tail is zero-padded so the last frame is full.
func Frame(x []float64, frameLen, hop int) [][]float64 {
	if frameLen <= 0 || hop <= 0 {
		return nil
	}
	numFrames := FrameCount(len(x), frameLen, hop)
	frames := make([][]float64, numFrames)
	for i := range frames {
		f := make([]float64, frameLen)
		start := i * hop
		if start < len(x) {
			copy(f, x[start:min(start+frameLen, len(x))])
		}
		frames[i] = f
	}
	return frames
}

// hammingWindow generates a Hamming window of the given length.
func hammingWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// applyWindow multiplies every frame elementwise by w, in place.
func applyWindow(frames [][]float64, w []float64) {
	for _, f := range frames {
		for i := range f {
			f[i] *= w[i]
		}
	}
}

package mfcc

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// hzToMel converts frequency in Hz to mel scale.
func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// melToHz converts mel scale frequency back to Hz.
func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// melBins maps numFilters+2 equally spaced mel points onto FFT bin indices.
// The result is strictly increasing so every filter spans at least one bin.
func melBins(numFilters, nfft, sampleRate int, lowFreq, highFreq float64) []int {
	halfFFT := nfft/2 + 1
	lowMel := hzToMel(lowFreq)
	highMel := hzToMel(highFreq)
	step := (highMel - lowMel) / float64(numFilters+1)

	bins := make([]int, numFilters+2)
	for i := range bins {
		hz := melToHz(lowMel + float64(i)*step)
		bin := int(math.Round(hz * float64(nfft) / float64(sampleRate)))
		bins[i] = min(max(bin, 0), halfFFT-1)
	}
	for i := 1; i < len(bins); i++ {
		if bins[i] <= bins[i-1] {
			bins[i] = bins[i-1] + 1
		}
	}
	return bins
}

// MelFilterBank builds the triangular mel filterbank.
// Returns a numFilters × (nfft/2+1) matrix; each filter peaks at 1.
func MelFilterBank(numFilters, nfft, sampleRate int, lowFreq, highFreq float64) *mat.Dense {
	halfFFT := nfft/2 + 1
	bins := melBins(numFilters, nfft, sampleRate, lowFreq, highFreq)

	bank := mat.NewDense(numFilters, halfFFT, nil)
	for m := 0; m < numFilters; m++ {
		row := bank.RawRowView(m)
		left, center, right := bins[m], bins[m+1], bins[m+2]

		for k := left; k < center && k < halfFFT; k++ {
			row[k] = float64(k-left) / float64(center-left)
		}
		for k := center; k <= right && k < halfFFT; k++ {
			row[k] = float64(right-k) / float64(right-center)
		}
	}
	return bank
}

// ApplyFilterBank projects a power spectrum (T × bins) onto the filterbank
// (K × bins), producing T × K filterbank energies.
func ApplyFilterBank(power, bank *mat.Dense) *mat.Dense {
	t, _ := power.Dims()
	k, _ := bank.Dims()
	out := mat.NewDense(t, k, nil)
	out.Mul(power, bank.T())
	return out
}

// LogCompress replaces every energy e with ln(e + floor), in place.
func LogCompress(energies *mat.Dense, floor float64) {
	energies.Apply(func(_, _ int, v float64) float64 {
		return math.Log(v + floor)
	}, energies)
}

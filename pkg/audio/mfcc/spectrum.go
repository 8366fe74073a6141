package mfcc

import (
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
)

// PowerSpectrum returns the one-sided power spectrum |FFT|² of each frame,
// zero-padded or truncated to nfft. Output is len(frames) × (nfft/2+1).
func PowerSpectrum(frames [][]float64, nfft int) *mat.Dense {
	return powerSpectrum(fourier.NewFFT(nfft), frames, nfft)
}

func powerSpectrum(fft *fourier.FFT, frames [][]float64, nfft int) *mat.Dense {
	bins := nfft/2 + 1
	power := mat.NewDense(len(frames), bins, nil)

	buf := make([]float64, nfft)
	coeffs := make([]complex128, bins)
	for t, f := range frames {
		n := copy(buf, f)
		clear(buf[n:])
		coeffs = fft.Coefficients(coeffs, buf)

		row := power.RawRowView(t)
		for k, c := range coeffs {
			re, im := real(c), imag(c)
			row[k] = re*re + im*im
		}
	}
	return power
}

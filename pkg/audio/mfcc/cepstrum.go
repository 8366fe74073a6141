package mfcc

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// DCTBasis returns the first numCeps rows of the orthonormal DCT-II basis
// over numFilters inputs:
//
//	D[c][k] = s_c · cos(π·c·(2k+1) / (2·numFilters))
//	s_0 = sqrt(1/numFilters), s_c = sqrt(2/numFilters)
func DCTBasis(numCeps, numFilters int) *mat.Dense {
	d := mat.NewDense(numCeps, numFilters, nil)
	k := float64(numFilters)
	for c := 0; c < numCeps; c++ {
		scale := math.Sqrt(2 / k)
		if c == 0 {
			scale = math.Sqrt(1 / k)
		}
		row := d.RawRowView(c)
		for n := range row {
			row[n] = scale * math.Cos(math.Pi*float64(c)*float64(2*n+1)/(2*k))
		}
	}
	return d
}

// Cepstrum applies the DCT basis (C × K) to log energies (T × K) and
// returns the T × C coefficient matrix.
func Cepstrum(logEnergies, basis *mat.Dense) Matrix {
	t, _ := logEnergies.Dims()
	c, _ := basis.Dims()
	var ceps mat.Dense
	ceps.Mul(logEnergies, basis.T())

	out := make(Matrix, t)
	backing := make([]float64, t*c)
	for i := range out {
		row := backing[i*c : (i+1)*c : (i+1)*c]
		copy(row, ceps.RawRowView(i))
		out[i] = row
	}
	return out
}

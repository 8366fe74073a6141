// Package gmm implements a diagonal-covariance Gaussian mixture model used
// as a speaker voiceprint.
//
// A model is fitted with expectation-maximization on a feature matrix (one
// row per frame) and scores a query matrix by its mean per-frame
// log-likelihood. Initialization is a seeded k-means++ clustering so the
// same data and seed always produce the same model.
//
// A trained Model is immutable; Score and Predict are safe for concurrent
// use.
package gmm

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// Diagonal is the only supported covariance type.
const Diagonal = "diagonal"

var (
	// ErrNotReady is returned when scoring a model that was never trained
	// or loaded.
	ErrNotReady = errors.New("gmm: model not ready")

	// ErrCorrupt is returned when a serialized model cannot be decoded or
	// its parameters have inconsistent shapes.
	ErrCorrupt = errors.New("gmm: corrupt model")

	// ErrDimension is returned when input rows do not match the model's
	// feature dimension.
	ErrDimension = errors.New("gmm: dimension mismatch")

	// ErrUnsupportedCovariance is returned for covariance types other than
	// diagonal.
	ErrUnsupportedCovariance = errors.New("gmm: unsupported covariance type")

	// ErrEmptyData is returned when training or scoring on zero rows.
	ErrEmptyData = errors.New("gmm: empty data")

	// ErrInvalidConfig is returned for non-positive training parameters.
	ErrInvalidConfig = errors.New("gmm: invalid config")
)

// Config controls EM training.
type Config struct {
	Components     int     // mixture components (clamped to the row count)
	CovarianceType string  // "diagonal" (alias "diag")
	MaxIter        int     // EM iteration cap (default 100)
	Tol            float64 // convergence threshold on mean log-likelihood (default 1e-3)
	RegCovar       float64 // variance floor added in every M-step (default 1e-6)
	Seed           uint64  // k-means++ seed
}

// DefaultConfig returns an 8-component diagonal config.
func DefaultConfig() Config {
	return Config{
		Components:     8,
		CovarianceType: Diagonal,
		MaxIter:        100,
		Tol:            1e-3,
		RegCovar:       1e-6,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CovarianceType == "" || c.CovarianceType == "diag" {
		c.CovarianceType = Diagonal
	}
	if c.MaxIter == 0 {
		c.MaxIter = d.MaxIter
	}
	if c.Tol == 0 {
		c.Tol = d.Tol
	}
	if c.RegCovar == 0 {
		c.RegCovar = d.RegCovar
	}
	return c
}

// Model is a fitted diagonal Gaussian mixture.
type Model struct {
	Components     int
	CovarianceType string
	Dim            int
	Weights        []float64   // [Components], sums to 1
	Means          [][]float64 // [Components][Dim]
	Variances      [][]float64 // [Components][Dim], all > 0

	Converged  bool
	Iterations int
	LowerBound float64 // mean log-likelihood at the last iteration

	// Derived from the parameters above by prepare.
	logConst  []float64   // ln w_k − ½(D·ln 2π + Σ ln σ²)
	precision [][]float64 // 1/σ²
}

// Ready reports whether the model has parameters to score with.
func (m *Model) Ready() bool {
	return m != nil && m.Components > 0 && len(m.logConst) == m.Components
}

// prepare caches per-component constants. Scores depend only on the stored
// float64 parameters, so a decoded model scores bit-identically.
func (m *Model) prepare() {
	m.logConst = make([]float64, m.Components)
	m.precision = make([][]float64, m.Components)
	ln2pi := math.Log(2 * math.Pi)
	for k := 0; k < m.Components; k++ {
		prec := make([]float64, m.Dim)
		c := math.Log(m.Weights[k]) - 0.5*float64(m.Dim)*ln2pi
		for d, v := range m.Variances[k] {
			prec[d] = 1 / v
			c -= 0.5 * math.Log(v)
		}
		m.logConst[k] = c
		m.precision[k] = prec
	}
}

// weightedLogProb fills dst[k] = ln w_k + ln N(x | μ_k, σ²_k).
func (m *Model) weightedLogProb(dst, x []float64) {
	for k := 0; k < m.Components; k++ {
		mean, prec := m.Means[k], m.precision[k]
		var q float64
		for d, v := range x {
			diff := v - mean[d]
			q += diff * diff * prec[d]
		}
		dst[k] = m.logConst[k] - 0.5*q
	}
}

func (m *Model) checkInput(x [][]float64) error {
	if !m.Ready() {
		return ErrNotReady
	}
	if len(x) == 0 {
		return ErrEmptyData
	}
	for i, row := range x {
		if len(row) != m.Dim {
			return fmt.Errorf("%w: row %d has %d columns, model has %d", ErrDimension, i, len(row), m.Dim)
		}
	}
	return nil
}

// Score returns the mean over rows of logsumexp_k(ln w_k + ln N(x|μ_k,σ²_k)).
// Higher is a better match.
func (m *Model) Score(x [][]float64) (float64, error) {
	if err := m.checkInput(x); err != nil {
		return 0, err
	}
	lp := make([]float64, m.Components)
	var total float64
	for _, row := range x {
		m.weightedLogProb(lp, row)
		total += floats.LogSumExp(lp)
	}
	return total / float64(len(x)), nil
}

// Predict returns the most likely component for each row.
func (m *Model) Predict(x [][]float64) ([]int, error) {
	if err := m.checkInput(x); err != nil {
		return nil, err
	}
	lp := make([]float64, m.Components)
	labels := make([]int, len(x))
	for i, row := range x {
		m.weightedLogProb(lp, row)
		labels[i] = floats.MaxIdx(lp)
	}
	return labels, nil
}

// Train fits a mixture to x with EM.
func Train(x [][]float64, cfg Config) (*Model, error) {
	cfg = cfg.withDefaults()
	if cfg.CovarianceType != Diagonal {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCovariance, cfg.CovarianceType)
	}
	if cfg.Components <= 0 || cfg.MaxIter < 0 || cfg.Tol < 0 || cfg.RegCovar < 0 {
		return nil, fmt.Errorf("%w: %+v", ErrInvalidConfig, cfg)
	}
	if len(x) == 0 {
		return nil, ErrEmptyData
	}
	dim := len(x[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-width rows", ErrDimension)
	}
	for i, row := range x {
		if len(row) != dim {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrDimension, i, len(row), dim)
		}
	}

	k := min(cfg.Components, len(x))
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	m := &Model{
		Components:     k,
		CovarianceType: Diagonal,
		Dim:            dim,
	}
	labels, centers := kmeans(x, k, rng)
	m.initFromLabels(x, labels, centers, cfg.RegCovar)

	resp := make([][]float64, len(x))
	for i := range resp {
		resp[i] = make([]float64, k)
	}

	prev := math.Inf(-1)
	for iter := 1; iter <= cfg.MaxIter; iter++ {
		lb := m.expectation(x, resp)
		m.maximization(x, resp, cfg.RegCovar)
		m.Iterations = iter
		m.LowerBound = lb
		if math.Abs(lb-prev) < cfg.Tol {
			m.Converged = true
			break
		}
		prev = lb
	}
	// Report the likelihood of the final parameters.
	m.LowerBound = m.expectation(x, resp)
	return m, nil
}

// initFromLabels seeds weights, means and variances from a hard clustering.
// A component left without members keeps its center and the global variance.
func (m *Model) initFromLabels(x [][]float64, labels []int, centers [][]float64, reg float64) {
	n, k, dim := len(x), m.Components, m.Dim

	globalMean := make([]float64, dim)
	for _, row := range x {
		floats.Add(globalMean, row)
	}
	floats.Scale(1/float64(n), globalMean)
	globalVar := make([]float64, dim)
	for _, row := range x {
		for d, v := range row {
			diff := v - globalMean[d]
			globalVar[d] += diff * diff
		}
	}
	floats.Scale(1/float64(n), globalVar)
	floats.AddConst(reg, globalVar)

	counts := make([]float64, k)
	for _, l := range labels {
		counts[l]++
	}

	m.Weights = make([]float64, k)
	m.Means = make([][]float64, k)
	m.Variances = make([][]float64, k)
	eps := 10 * epsilon
	for c := 0; c < k; c++ {
		m.Weights[c] = (counts[c] + eps) / (float64(n) + float64(k)*eps)
		m.Means[c] = append([]float64(nil), centers[c]...)
		m.Variances[c] = make([]float64, dim)
	}
	for i, row := range x {
		c := labels[i]
		for d, v := range row {
			diff := v - m.Means[c][d]
			m.Variances[c][d] += diff * diff
		}
	}
	for c := 0; c < k; c++ {
		if counts[c] == 0 {
			copy(m.Variances[c], globalVar)
			continue
		}
		floats.Scale(1/counts[c], m.Variances[c])
		floats.AddConst(reg, m.Variances[c])
	}
	m.prepare()
}

// epsilon is the float64 machine epsilon.
const epsilon = 2.220446049250313e-16

// expectation fills resp with posterior responsibilities and returns the
// mean log-likelihood of x under the current parameters.
func (m *Model) expectation(x, resp [][]float64) float64 {
	var total float64
	for i, row := range x {
		r := resp[i]
		m.weightedLogProb(r, row)
		lse := floats.LogSumExp(r)
		total += lse
		for k := range r {
			r[k] = math.Exp(r[k] - lse)
		}
	}
	return total / float64(len(x))
}

// maximization re-estimates parameters from responsibilities.
func (m *Model) maximization(x, resp [][]float64, reg float64) {
	n, k := len(x), m.Components

	nk := make([]float64, k)
	for _, r := range resp {
		floats.Add(nk, r)
	}
	floats.AddConst(10*epsilon, nk)

	for c := 0; c < k; c++ {
		clear(m.Means[c])
		clear(m.Variances[c])
	}
	for i, row := range x {
		for c, r := range resp[i] {
			floats.AddScaled(m.Means[c], r, row)
		}
	}
	for c := 0; c < k; c++ {
		floats.Scale(1/nk[c], m.Means[c])
	}
	for i, row := range x {
		for c, r := range resp[i] {
			mean, vars := m.Means[c], m.Variances[c]
			for d, v := range row {
				diff := v - mean[d]
				vars[d] += r * diff * diff
			}
		}
	}
	for c := 0; c < k; c++ {
		floats.Scale(1/nk[c], m.Variances[c])
		floats.AddConst(reg, m.Variances[c])
		m.Weights[c] = nk[c] / float64(n)
	}
	// nk carries the eps padding; renormalize so the weights sum to 1.
	floats.Scale(1/floats.Sum(m.Weights), m.Weights)
	m.prepare()
}

package gmm

import (
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"
)

// formatVersion is bumped whenever the encoded layout changes.
const formatVersion = 1

// encoded is the msgpack wire form of a Model.
type encoded struct {
	Version        int         `msgpack:"v"`
	Components     int         `msgpack:"n_components"`
	CovarianceType string      `msgpack:"covariance_type"`
	Dim            int         `msgpack:"dim"`
	Weights        []float64   `msgpack:"weights"`
	Means          [][]float64 `msgpack:"means"`
	Variances      [][]float64 `msgpack:"variances"`
	Converged      bool        `msgpack:"converged"`
	Iterations     int         `msgpack:"n_iter"`
	LowerBound     float64     `msgpack:"lower_bound"`
}

// MarshalBinary encodes the model parameters as msgpack.
func (m *Model) MarshalBinary() ([]byte, error) {
	if !m.Ready() {
		return nil, ErrNotReady
	}
	return msgpack.Marshal(&encoded{
		Version:        formatVersion,
		Components:     m.Components,
		CovarianceType: m.CovarianceType,
		Dim:            m.Dim,
		Weights:        m.Weights,
		Means:          m.Means,
		Variances:      m.Variances,
		Converged:      m.Converged,
		Iterations:     m.Iterations,
		LowerBound:     m.LowerBound,
	})
}

// Unmarshal decodes a model produced by MarshalBinary.
func Unmarshal(data []byte) (*Model, error) {
	var e encoded
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if e.Version != formatVersion {
		return nil, fmt.Errorf("%w: format version %d", ErrCorrupt, e.Version)
	}
	if e.CovarianceType != Diagonal {
		return nil, fmt.Errorf("%w: %w %q", ErrCorrupt, ErrUnsupportedCovariance, e.CovarianceType)
	}
	if err := e.validate(); err != nil {
		return nil, err
	}

	m := &Model{
		Components:     e.Components,
		CovarianceType: e.CovarianceType,
		Dim:            e.Dim,
		Weights:        e.Weights,
		Means:          e.Means,
		Variances:      e.Variances,
		Converged:      e.Converged,
		Iterations:     e.Iterations,
		LowerBound:     e.LowerBound,
	}
	m.prepare()
	return m, nil
}

func (e *encoded) validate() error {
	if e.Components <= 0 || e.Dim <= 0 {
		return fmt.Errorf("%w: %d components of dimension %d", ErrCorrupt, e.Components, e.Dim)
	}
	if len(e.Weights) != e.Components || len(e.Means) != e.Components || len(e.Variances) != e.Components {
		return fmt.Errorf("%w: parameter count does not match %d components", ErrCorrupt, e.Components)
	}
	for k := 0; k < e.Components; k++ {
		if w := e.Weights[k]; !(w > 0) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: weight[%d] = %v", ErrCorrupt, k, w)
		}
		if len(e.Means[k]) != e.Dim || len(e.Variances[k]) != e.Dim {
			return fmt.Errorf("%w: component %d shape", ErrCorrupt, k)
		}
		for d := 0; d < e.Dim; d++ {
			if mu := e.Means[k][d]; math.IsNaN(mu) || math.IsInf(mu, 0) {
				return fmt.Errorf("%w: mean[%d][%d] = %v", ErrCorrupt, k, d, mu)
			}
			if v := e.Variances[k][d]; !(v > 0) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: variance[%d][%d] = %v", ErrCorrupt, k, d, v)
			}
		}
	}
	return nil
}

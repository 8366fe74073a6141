package gmm

import (
	"errors"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func TestRoundtripScoresIdentically(t *testing.T) {
	x := blobs(10, 100, 1, []float64{0, 1, 2, 3}, []float64{2, -1, 0, 5})
	m, err := Train(x, Config{Components: 3, Seed: 9})
	if err != nil {
		t.Fatal(err)
	}

	blob, err := m.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(blob)
	if err != nil {
		t.Fatal(err)
	}

	query := blobs(11, 30, 1, []float64{1, 0, 1, 4})
	want, _ := m.Score(query)
	have, err := got.Score(query)
	if err != nil {
		t.Fatal(err)
	}
	if have != want {
		t.Errorf("score after roundtrip = %v, want %v", have, want)
	}
	if got.Iterations != m.Iterations || got.Converged != m.Converged {
		t.Errorf("training stats lost: %+v", got)
	}
}

func TestUnmarshalCorrupt(t *testing.T) {
	if _, err := Unmarshal([]byte("not msgpack")); !errors.Is(err, ErrCorrupt) {
		t.Errorf("garbage: err = %v, want ErrCorrupt", err)
	}
	if _, err := Unmarshal(nil); !errors.Is(err, ErrCorrupt) {
		t.Errorf("empty: err = %v, want ErrCorrupt", err)
	}

	valid := encoded{
		Version:        formatVersion,
		Components:     2,
		CovarianceType: Diagonal,
		Dim:            2,
		Weights:        []float64{0.5, 0.5},
		Means:          [][]float64{{0, 0}, {1, 1}},
		Variances:      [][]float64{{1, 1}, {1, 1}},
	}
	blob, err := msgpack.Marshal(&valid)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Unmarshal(blob); err != nil {
		t.Fatalf("valid blob rejected: %v", err)
	}

	cases := map[string]func(e *encoded){
		"version":       func(e *encoded) { e.Version = 99 },
		"short weights": func(e *encoded) { e.Weights = []float64{1} },
		"ragged means":  func(e *encoded) { e.Means = [][]float64{{0}, {1, 1}} },
		"zero variance": func(e *encoded) { e.Variances = [][]float64{{0, 1}, {1, 1}} },
		"no dim":        func(e *encoded) { e.Dim = 0 },
	}
	for name, mutate := range cases {
		e := valid
		e.Weights = append([]float64(nil), valid.Weights...)
		mutate(&e)
		blob, err := msgpack.Marshal(&e)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := Unmarshal(blob); !errors.Is(err, ErrCorrupt) {
			t.Errorf("%s: err = %v, want ErrCorrupt", name, err)
		}
	}

	full := valid
	full.CovarianceType = "full"
	blob, _ = msgpack.Marshal(&full)
	_, err = Unmarshal(blob)
	if !errors.Is(err, ErrCorrupt) || !errors.Is(err, ErrUnsupportedCovariance) {
		t.Errorf("full: err = %v, want ErrCorrupt wrapping ErrUnsupportedCovariance", err)
	}
}

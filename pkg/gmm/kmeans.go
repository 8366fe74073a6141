package gmm

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// kmeansIters bounds the Lloyd refinement after k-means++ seeding.
const kmeansIters = 20

// kmeans clusters x into k groups. Returns the label of each row and the
// final centers.
func kmeans(x [][]float64, k int, rng *rand.Rand) ([]int, [][]float64) {
	centers := seedPlusPlus(x, k, rng)
	labels := make([]int, len(x))
	assign(x, centers, labels)

	dim := len(x[0])
	counts := make([]int, k)
	for range kmeansIters {
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		clear(counts)
		for i, row := range x {
			floats.Add(sums[labels[i]], row)
			counts[labels[i]]++
		}
		for c := range centers {
			// An empty cluster keeps its previous center.
			if counts[c] > 0 {
				floats.ScaleTo(centers[c], 1/float64(counts[c]), sums[c])
			}
		}
		if !assign(x, centers, labels) {
			break
		}
	}
	return labels, centers
}

// seedPlusPlus picks k initial centers: the first uniformly, each next one
// with probability proportional to its squared distance from the nearest
// chosen center. When every row coincides with a chosen center, the next one
// is picked uniformly.
func seedPlusPlus(x [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(x)
	centers := make([][]float64, 0, k)
	centers = append(centers, append([]float64(nil), x[rng.IntN(n)]...))

	dist := make([]float64, n)
	for i, row := range x {
		dist[i] = sqDist(row, centers[0])
	}
	for len(centers) < k {
		total := floats.Sum(dist)
		next := rng.IntN(n)
		if total > 0 {
			target := rng.Float64() * total
			var acc float64
			for i, d := range dist {
				acc += d
				if acc >= target && d > 0 {
					next = i
					break
				}
			}
		}
		c := append([]float64(nil), x[next]...)
		centers = append(centers, c)
		for i, row := range x {
			dist[i] = min(dist[i], sqDist(row, c))
		}
	}
	return centers
}

// assign labels each row with its nearest center and reports whether any
// label changed. Ties go to the lowest center index.
func assign(x, centers [][]float64, labels []int) bool {
	changed := false
	for i, row := range x {
		best, bestDist := 0, sqDist(row, centers[0])
		for c := 1; c < len(centers); c++ {
			if d := sqDist(row, centers[c]); d < bestDist {
				best, bestDist = c, d
			}
		}
		if labels[i] != best {
			labels[i] = best
			changed = true
		}
	}
	return changed
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

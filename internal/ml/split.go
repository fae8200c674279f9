package ml

import (
	"math"
	"math/rand/v2"
)

// DefaultSeed fixes the train/test permutation and every randomized model.
const DefaultSeed uint64 = 42

// DefaultTestFraction is the share of rows held out for scoring.
const DefaultTestFraction = 0.2

// Split is a partition of row indices into training and held-out sets.
type Split struct {
	Train []int
	Test  []int
}

// TrainTestSplit shuffles 0..n-1 with seed and holds out ceil(fraction*n)
// rows, keeping at least one row on each side when n >= 2.
func TrainTestSplit(n int, fraction float64, seed uint64) Split {
	if n == 0 {
		return Split{}
	}
	nTest := int(math.Ceil(fraction * float64(n)))
	nTest = min(max(nTest, 1), n-1)
	if n == 1 {
		nTest = 0
	}

	perm := rand.New(rand.NewPCG(seed, seed)).Perm(n)
	return Split{Test: perm[:nTest], Train: perm[nTest:]}
}

// rowsAt selects feature rows and targets by index.
func rowsAt(d Dataset, idx []int) ([][]float64, []float64) {
	X := make([][]float64, len(idx))
	y := make([]float64, len(idx))
	for i, j := range idx {
		X[i] = d.X[j]
		y[i] = d.Y[j]
	}
	return X, y
}

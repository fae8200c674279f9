package ml

import (
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// RandomForest averages regression trees, each grown on a bootstrap sample of
// the training rows. Every tree draws its own seed from the forest seed up
// front, so results do not depend on goroutine scheduling.
type RandomForest struct {
	size  int
	seed  uint64
	trees []*DecisionTree
}

// NewRandomForest returns an unfitted forest of size trees.
func NewRandomForest(size int, seed uint64) *RandomForest {
	return &RandomForest{size: size, seed: seed}
}

// Fit grows the trees concurrently.
func (f *RandomForest) Fit(X [][]float64, y []float64) error {
	rows, _, err := checkShape(X, y)
	if err != nil {
		return fmt.Errorf("random forest: %w", err)
	}
	if f.size < 1 {
		return fmt.Errorf("random forest: size %d must be positive", f.size)
	}

	rng := rand.New(rand.NewPCG(f.seed, f.seed+1))
	seeds := make([]uint64, f.size)
	for i := range seeds {
		seeds[i] = rng.Uint64()
	}

	trees := make([]*DecisionTree, f.size)
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range trees {
		g.Go(func() error {
			bx, by := bootstrap(X, y, rows, seeds[i])
			tree := NewDecisionTree(seeds[i])
			if err := tree.Fit(bx, by); err != nil {
				return fmt.Errorf("random forest: tree %d: %w", i, err)
			}
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.trees = trees
	return nil
}

// Predict averages the trees' predictions.
func (f *RandomForest) Predict(X [][]float64) ([]float64, error) {
	if len(f.trees) == 0 {
		return nil, errNotFitted
	}
	out := make([]float64, len(X))
	for _, tree := range f.trees {
		pred, err := tree.Predict(X)
		if err != nil {
			return nil, fmt.Errorf("random forest: %w", err)
		}
		for i, p := range pred {
			out[i] += p
		}
	}
	n := float64(len(f.trees))
	for i := range out {
		out[i] /= n
	}
	return out, nil
}

// bootstrap draws rows samples with replacement.
func bootstrap(X [][]float64, y []float64, rows int, seed uint64) ([][]float64, []float64) {
	rng := rand.New(rand.NewPCG(seed, ^seed))
	bx := make([][]float64, rows)
	by := make([]float64, rows)
	for i := 0; i < rows; i++ {
		j := rng.IntN(rows)
		bx[i] = X[j]
		by[i] = y[j]
	}
	return bx, by
}

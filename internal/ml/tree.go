package ml

import (
	"fmt"
	"math/rand/v2"
	"slices"
)

// featureThreshold is the minimum gap between adjacent sorted feature values
// for a split to be placed between them.
const featureThreshold = 1e-7

// leafNode marks a node without a split.
const leafNode = -1

// DecisionTree is a CART regression tree grown until leaves are pure or hold a
// single sample. Splits minimize the summed squared error of the children.
// Features are scanned in a seeded random order and the first best split wins,
// so the tree is deterministic for a given seed.
type DecisionTree struct {
	seed            uint64
	minSamplesSplit int

	nodes    []treeNode
	features int
}

type treeNode struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
}

// NewDecisionTree returns an unfitted tree seeded for feature ordering.
func NewDecisionTree(seed uint64) *DecisionTree {
	return &DecisionTree{seed: seed, minSamplesSplit: 2}
}

// Fit grows the tree on X and y.
func (t *DecisionTree) Fit(X [][]float64, y []float64) error {
	rows, cols, err := checkShape(X, y)
	if err != nil {
		return fmt.Errorf("decision tree: %w", err)
	}

	b := &treeBuilder{
		X:        X,
		y:        y,
		rng:      rand.New(rand.NewPCG(t.seed, t.seed^0x9e3779b97f4a7c15)),
		minSplit: t.minSamplesSplit,
		features: cols,
	}
	idx := make([]int, rows)
	for i := range idx {
		idx[i] = i
	}
	b.grow(idx)

	t.nodes = b.nodes
	t.features = cols
	return nil
}

// Predict walks each row to its leaf.
func (t *DecisionTree) Predict(X [][]float64) ([]float64, error) {
	if len(t.nodes) == 0 {
		return nil, errNotFitted
	}
	out := make([]float64, len(X))
	for i, row := range X {
		if len(row) != t.features {
			return nil, fmt.Errorf("decision tree: row %d has %d features, want %d", i, len(row), t.features)
		}
		out[i] = t.predictRow(row)
	}
	return out, nil
}

func (t *DecisionTree) predictRow(row []float64) float64 {
	n := 0
	for t.nodes[n].feature != leafNode {
		node := t.nodes[n]
		if row[node.feature] <= node.threshold {
			n = node.left
		} else {
			n = node.right
		}
	}
	return t.nodes[n].value
}

// Depth returns the length of the longest root-to-leaf path.
func (t *DecisionTree) Depth() int {
	if len(t.nodes) == 0 {
		return 0
	}
	var walk func(n int) int
	walk = func(n int) int {
		node := t.nodes[n]
		if node.feature == leafNode {
			return 0
		}
		return 1 + max(walk(node.left), walk(node.right))
	}
	return walk(0)
}

type treeBuilder struct {
	X        [][]float64
	y        []float64
	rng      *rand.Rand
	minSplit int
	features int
	nodes    []treeNode
}

type split struct {
	feature   int
	threshold float64
	pos       int // samples [0,pos) go left after sorting on feature
	proxy     float64
}

// grow appends the subtree for the samples in idx and returns its node index.
// idx is reordered in place.
func (b *treeBuilder) grow(idx []int) int {
	var sum, sumSq float64
	for _, i := range idx {
		sum += b.y[i]
		sumSq += b.y[i] * b.y[i]
	}
	n := float64(len(idx))
	mean := sum / n

	self := len(b.nodes)
	b.nodes = append(b.nodes, treeNode{feature: leafNode, value: mean})

	impurity := sumSq/n - mean*mean
	if len(idx) < b.minSplit || impurity <= machineEpsilon {
		return self
	}

	best, ok := b.bestSplit(idx, sum)
	if !ok {
		return self
	}

	b.sortOn(idx, best.feature)
	left := b.grow(idx[:best.pos])
	right := b.grow(idx[best.pos:])
	b.nodes[self] = treeNode{
		feature:   best.feature,
		threshold: best.threshold,
		left:      left,
		right:     right,
		value:     mean,
	}
	return self
}

// bestSplit finds the split maximizing sumL²/nL + sumR²/nR, which is equivalent
// to minimizing the children's summed squared error.
func (b *treeBuilder) bestSplit(idx []int, total float64) (split, bool) {
	best := split{proxy: -1}
	found := false
	order := b.rng.Perm(b.features)
	work := slices.Clone(idx)

	for _, f := range order {
		b.sortOn(work, f)
		if b.X[work[len(work)-1]][f] <= b.X[work[0]][f]+featureThreshold {
			continue
		}

		var left float64
		for p := 1; p < len(work); p++ {
			left += b.y[work[p-1]]
			prev, next := b.X[work[p-1]][f], b.X[work[p]][f]
			if next <= prev+featureThreshold {
				continue
			}
			nl, nr := float64(p), float64(len(work)-p)
			right := total - left
			proxy := left*left/nl + right*right/nr
			if !found || proxy > best.proxy {
				threshold := prev/2 + next/2
				if threshold >= next || threshold < prev {
					threshold = prev
				}
				best = split{feature: f, threshold: threshold, pos: p, proxy: proxy}
				found = true
			}
		}
	}
	return best, found
}

// sortOn orders idx by feature f, breaking ties by sample index for stability.
func (b *treeBuilder) sortOn(idx []int, f int) {
	slices.SortFunc(idx, func(i, j int) int {
		xi, xj := b.X[i][f], b.X[j][f]
		switch {
		case xi < xj:
			return -1
		case xi > xj:
			return 1
		default:
			return i - j
		}
	})
}

// Package ensemble provides regression tree ensembles: bootstrap-aggregated
// forests and gradient-boosted trees with a squared-error objective.
package ensemble

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrEmptyTrainingSet  = errors.New("ensemble: empty training set")
	ErrDimensionMismatch = errors.New("ensemble: feature and target lengths differ")
	ErrRaggedFeatures    = errors.New("ensemble: rows have different feature counts")
	ErrNotFitted         = errors.New("ensemble: model is not fitted")
)

// minGain is the smallest score improvement accepted for a split.
const minGain = 1e-12

// TreeConfig controls tree growth.
type TreeConfig struct {
	MaxDepth        int // 0 means unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	// Lambda is the L2 penalty on leaf weights. With Lambda == 0 the leaf
	// value is the target mean and splits minimise squared error.
	Lambda float64
}

type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
	leaf      bool
}

// Tree is a binary regression tree.
type Tree struct {
	cfg   TreeConfig
	nodes []node
}

// NewTree creates an unfitted tree.
func NewTree(cfg TreeConfig) *Tree {
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = 2
	}
	if cfg.MinSamplesLeaf < 1 {
		cfg.MinSamplesLeaf = 1
	}
	if cfg.Lambda < 0 {
		cfg.Lambda = 0
	}
	return &Tree{cfg: cfg}
}

// Fit grows the tree on every row of X.
func (t *Tree) Fit(X [][]float64, y []float64) error {
	if err := checkTrainingSet(X, y); err != nil {
		return err
	}
	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = i
	}
	t.fitRows(X, y, idx)
	return nil
}

// fitRows grows the tree on the rows named by idx. Duplicate indices are
// allowed so bootstrap samples can be passed directly.
func (t *Tree) fitRows(X [][]float64, y []float64, idx []int) {
	t.nodes = t.nodes[:0]
	t.grow(X, y, idx, 0)
}

// Predict walks the tree for one feature row.
func (t *Tree) Predict(x []float64) float64 {
	if len(t.nodes) == 0 {
		return math.NaN()
	}
	i := 0
	for !t.nodes[i].leaf {
		n := t.nodes[i]
		if x[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
	return t.nodes[i].value
}

// Depth returns the depth of the deepest leaf.
func (t *Tree) Depth() int {
	if len(t.nodes) == 0 {
		return 0
	}
	var walk func(i int) int
	walk = func(i int) int {
		n := t.nodes[i]
		if n.leaf {
			return 0
		}
		return 1 + max(walk(n.left), walk(n.right))
	}
	return walk(0)
}

func (t *Tree) grow(X [][]float64, y []float64, idx []int, depth int) int {
	sum := 0.0
	for _, i := range idx {
		sum += y[i]
	}
	self := len(t.nodes)
	t.nodes = append(t.nodes, node{leaf: true, value: t.leafValue(sum, len(idx))})

	if len(idx) < t.cfg.MinSamplesSplit || (t.cfg.MaxDepth > 0 && depth >= t.cfg.MaxDepth) {
		return self
	}

	s, ok := t.bestSplit(X, y, idx, sum)
	if !ok {
		return self
	}

	left := make([]int, 0, s.nLeft)
	right := make([]int, 0, len(idx)-s.nLeft)
	for _, i := range idx {
		if X[i][s.feature] <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := t.grow(X, y, left, depth+1)
	r := t.grow(X, y, right, depth+1)
	t.nodes[self] = node{feature: s.feature, threshold: s.threshold, left: l, right: r}
	return self
}

func (t *Tree) leafValue(sum float64, n int) float64 {
	return sum / (float64(n) + t.cfg.Lambda)
}

func (t *Tree) score(sum float64, n int) float64 {
	return sum * sum / (float64(n) + t.cfg.Lambda)
}

type split struct {
	feature   int
	threshold float64
	nLeft     int
	gain      float64
}

func (t *Tree) bestSplit(X [][]float64, y []float64, idx []int, total float64) (split, bool) {
	var best split
	found := false
	parent := t.score(total, len(idx))
	order := make([]int, len(idx))

	for f := 0; f < len(X[idx[0]]); f++ {
		copy(order, idx)
		sort.SliceStable(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

		leftSum := 0.0
		for k := 0; k < len(order)-1; k++ {
			leftSum += y[order[k]]
			nLeft := k + 1
			nRight := len(order) - nLeft
			cur, next := X[order[k]][f], X[order[k+1]][f]
			if cur == next || nLeft < t.cfg.MinSamplesLeaf || nRight < t.cfg.MinSamplesLeaf {
				continue
			}
			gain := t.score(leftSum, nLeft) + t.score(total-leftSum, nRight) - parent
			if gain > minGain && (!found || gain > best.gain) {
				best = split{feature: f, threshold: cur + (next-cur)/2, nLeft: nLeft, gain: gain}
				found = true
			}
		}
	}
	return best, found
}

func checkTrainingSet(X [][]float64, y []float64) error {
	if len(y) == 0 {
		return ErrEmptyTrainingSet
	}
	if len(X) != len(y) {
		return fmt.Errorf("%w: %d rows, %d targets", ErrDimensionMismatch, len(X), len(y))
	}
	width := len(X[0])
	if width == 0 {
		return ErrRaggedFeatures
	}
	for _, row := range X {
		if len(row) != width {
			return ErrRaggedFeatures
		}
	}
	return nil
}

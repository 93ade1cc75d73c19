package ensemble

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"
)

// ForestOption configures a RandomForest.
type ForestOption func(*ForestConfig)

// ForestConfig holds random forest parameters.
type ForestConfig struct {
	Trees           int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	Seed            uint64
}

// WithTrees sets the number of trees.
func WithTrees(n int) ForestOption {
	return func(c *ForestConfig) {
		if n > 0 {
			c.Trees = n
		}
	}
}

// WithForestDepth limits tree depth (0 = unlimited).
func WithForestDepth(depth int) ForestOption {
	return func(c *ForestConfig) {
		c.MaxDepth = depth
	}
}

// WithForestLeaf sets the minimum samples per split and per leaf.
func WithForestLeaf(minSplit, minLeaf int) ForestOption {
	return func(c *ForestConfig) {
		c.MinSamplesSplit = minSplit
		c.MinSamplesLeaf = minLeaf
	}
}

// WithSeed fixes the bootstrap sampler seed.
func WithSeed(seed uint64) ForestOption {
	return func(c *ForestConfig) {
		c.Seed = seed
	}
}

// RandomForest averages regression trees grown on bootstrap samples.
type RandomForest struct {
	cfg   ForestConfig
	trees []*Tree
}

// NewRandomForest creates an unfitted forest.
func NewRandomForest(opts ...ForestOption) *RandomForest {
	cfg := ForestConfig{
		Trees:           100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Seed:            42,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &RandomForest{cfg: cfg}
}

// Fit grows every tree on its own bootstrap sample of the rows.
func (f *RandomForest) Fit(X [][]float64, y []float64) error {
	if err := checkTrainingSet(X, y); err != nil {
		return err
	}
	rng := rand.New(rand.NewPCG(f.cfg.Seed, f.cfg.Seed^0x9e3779b97f4a7c15))
	n := len(y)

	f.trees = make([]*Tree, f.cfg.Trees)
	sample := make([]int, n)
	for t := range f.trees {
		for i := range sample {
			sample[i] = rng.IntN(n)
		}
		tree := NewTree(TreeConfig{
			MaxDepth:        f.cfg.MaxDepth,
			MinSamplesSplit: f.cfg.MinSamplesSplit,
			MinSamplesLeaf:  f.cfg.MinSamplesLeaf,
		})
		tree.fitRows(X, y, sample)
		f.trees[t] = tree
	}
	return nil
}

// Predict returns the mean of the tree predictions. An unfitted forest
// returns NaN.
func (f *RandomForest) Predict(x []float64) float64 {
	if len(f.trees) == 0 {
		return math.NaN()
	}
	preds := make([]float64, len(f.trees))
	for i, t := range f.trees {
		preds[i] = t.Predict(x)
	}
	return stat.Mean(preds, nil)
}

// Size returns the number of fitted trees.
func (f *RandomForest) Size() int { return len(f.trees) }

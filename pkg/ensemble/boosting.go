package ensemble

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// BoostingOption configures a GradientBoosting model.
type BoostingOption func(*BoostingConfig)

// BoostingConfig holds gradient boosting parameters.
type BoostingConfig struct {
	Rounds         int
	LearningRate   float64
	MaxDepth       int
	MinSamplesLeaf int
	Lambda         float64
}

// WithRounds sets the number of boosting rounds.
func WithRounds(n int) BoostingOption {
	return func(c *BoostingConfig) {
		if n > 0 {
			c.Rounds = n
		}
	}
}

// WithLearningRate sets the shrinkage applied to each tree.
func WithLearningRate(eta float64) BoostingOption {
	return func(c *BoostingConfig) {
		if eta > 0 {
			c.LearningRate = eta
		}
	}
}

// WithBoostDepth sets the maximum depth of each tree.
func WithBoostDepth(depth int) BoostingOption {
	return func(c *BoostingConfig) {
		if depth > 0 {
			c.MaxDepth = depth
		}
	}
}

// WithLambda sets the L2 leaf penalty.
func WithLambda(lambda float64) BoostingOption {
	return func(c *BoostingConfig) {
		if lambda >= 0 {
			c.Lambda = lambda
		}
	}
}

// GradientBoosting fits shallow trees to squared-error residuals.
type GradientBoosting struct {
	cfg   BoostingConfig
	base  float64
	trees []*Tree
}

// NewGradientBoosting creates an unfitted model with squared-error defaults:
// 100 rounds, eta 0.3, depth 6, lambda 1.
func NewGradientBoosting(opts ...BoostingOption) *GradientBoosting {
	cfg := BoostingConfig{
		Rounds:         100,
		LearningRate:   0.3,
		MaxDepth:       6,
		MinSamplesLeaf: 1,
		Lambda:         1,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &GradientBoosting{cfg: cfg}
}

// Fit runs the boosting rounds, starting from the target mean.
func (g *GradientBoosting) Fit(X [][]float64, y []float64) error {
	if err := checkTrainingSet(X, y); err != nil {
		return err
	}
	g.base = stat.Mean(y, nil)
	g.trees = make([]*Tree, 0, g.cfg.Rounds)

	pred := make([]float64, len(y))
	floats.AddConst(g.base, pred)
	resid := make([]float64, len(y))

	for r := 0; r < g.cfg.Rounds; r++ {
		floats.SubTo(resid, y, pred)
		if floats.Norm(resid, math.Inf(1)) == 0 {
			break
		}
		tree := NewTree(TreeConfig{
			MaxDepth:       g.cfg.MaxDepth,
			MinSamplesLeaf: g.cfg.MinSamplesLeaf,
			Lambda:         g.cfg.Lambda,
		})
		if err := tree.Fit(X, resid); err != nil {
			return err
		}
		for i, row := range X {
			pred[i] += g.cfg.LearningRate * tree.Predict(row)
		}
		g.trees = append(g.trees, tree)
	}
	return nil
}

// Predict returns the boosted prediction for one feature row.
func (g *GradientBoosting) Predict(x []float64) float64 {
	if g.trees == nil {
		return math.NaN()
	}
	out := g.base
	for _, t := range g.trees {
		out += g.cfg.LearningRate * t.Predict(x)
	}
	return out
}

// Rounds returns the number of trees actually fitted.
func (g *GradientBoosting) Rounds() int { return len(g.trees) }

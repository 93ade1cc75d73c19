package forecast

import (
	"errors"
	"fmt"
	"math"

	"github.com/TENTURAVITEJA/forecasting-AI/internal/domain/models"
	"github.com/TENTURAVITEJA/forecasting-AI/internal/domain/service"
)

const (
	BoostingLabel = "XGBoost"
	ForestLabel   = "Random Forest"
)

var errTooFewPairs = errors.New("need at least 2 training pairs")

// RecursiveStrategy fits a regressor on lag-1 pairs and rolls it forward,
// feeding each prediction back in as the next input. Errors compound over the
// horizon.
type RecursiveStrategy struct {
	label        string
	newRegressor func() service.Regressor
}

func NewRecursiveStrategy(label string, newRegressor func() service.Regressor) *RecursiveStrategy {
	return &RecursiveStrategy{label: label, newRegressor: newRegressor}
}

func (s *RecursiveStrategy) Label() string { return s.label }

func (s *RecursiveStrategy) Predict(series models.Series, steps int) ([]float64, error) {
	if steps < 1 {
		return []float64{}, nil
	}
	pairs, err := Frame(series)
	if err != nil {
		return nil, err
	}
	if len(pairs) < 2 {
		return nil, modelFitError(s.label, errTooFewPairs)
	}

	X, y := design(pairs)
	reg := s.newRegressor()
	if err := reg.Fit(X, y); err != nil {
		return nil, modelFitError(s.label, err)
	}

	out := make([]float64, 0, steps)
	last := series.Last()
	for i := 0; i < steps; i++ {
		next := reg.Predict([]float64{last})
		if math.IsNaN(next) || math.IsInf(next, 0) {
			return nil, modelFitError(s.label, fmt.Errorf("non-finite prediction at step %d", i+1))
		}
		out = append(out, next)
		last = next
	}
	return out, nil
}

var _ service.Strategy = (*RecursiveStrategy)(nil)

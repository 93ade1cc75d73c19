package forecast

import "github.com/TENTURAVITEJA/forecasting-AI/internal/domain/models"

// Frame builds lag-1 pairs: pair i is (series[i], series[i+1]).
func Frame(series models.Series) ([]models.Pair, error) {
	n := series.Len()
	if n < 2 {
		return nil, framingErrorf("series of length %d cannot be framed, need at least 2", n)
	}
	pairs := make([]models.Pair, n-1)
	for i := range pairs {
		pairs[i] = models.Pair{Feature: series.Values[i], Label: series.Values[i+1]}
	}
	return pairs, nil
}

// design splits pairs into a one-column feature matrix and a target vector.
func design(pairs []models.Pair) ([][]float64, []float64) {
	X := make([][]float64, len(pairs))
	y := make([]float64, len(pairs))
	for i, p := range pairs {
		X[i] = []float64{p.Feature}
		y[i] = p.Label
	}
	return X, y
}

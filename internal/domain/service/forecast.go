package service

import "github.com/TENTURAVITEJA/forecasting-AI/internal/domain/models"

// Strategy produces a multi-step forecast for a series. Implementations
// build request-local models on every call and hold no state between calls.
type Strategy interface {
	Label() string
	Predict(series models.Series, steps int) ([]float64, error)
}

// Regressor is a single-output regression model over feature rows.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(x []float64) float64
}

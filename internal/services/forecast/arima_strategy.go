package forecast

import (
	"github.com/TENTURAVITEJA/forecasting-AI/internal/domain/models"
	"github.com/TENTURAVITEJA/forecasting-AI/internal/domain/service"
	"github.com/TENTURAVITEJA/forecasting-AI/pkg/arima"
)

// ARIMAOrder is the fixed order of the autoregressive strategy.
var ARIMAOrder = arima.Order{P: 1, D: 1, Q: 1}

// ARIMAStrategy fits ARIMA(1,1,1) on the raw series and forecasts the whole
// horizon in one call.
type ARIMAStrategy struct {
	maxIter int
}

func NewARIMAStrategy(maxIter int) *ARIMAStrategy {
	return &ARIMAStrategy{maxIter: maxIter}
}

func (s *ARIMAStrategy) Label() string { return ARIMAOrder.String() }

func (s *ARIMAStrategy) Predict(series models.Series, steps int) ([]float64, error) {
	if steps < 1 {
		return []float64{}, nil
	}
	m := arima.New(ARIMAOrder, arima.WithMaxIterations(s.maxIter))
	if err := m.Fit(series.Values); err != nil {
		return nil, modelFitError(s.Label(), err)
	}
	out, err := m.Forecast(steps)
	if err != nil {
		return nil, modelFitError(s.Label(), err)
	}
	return out, nil
}

var _ service.Strategy = (*ARIMAStrategy)(nil)

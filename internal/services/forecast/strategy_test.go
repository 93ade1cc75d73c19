package forecast

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TENTURAVITEJA/forecasting-AI/internal/domain/models"
	"github.com/TENTURAVITEJA/forecasting-AI/internal/domain/service"
)

// offsetRegressor predicts x + offset and records what it was trained on.
type offsetRegressor struct {
	offset float64
	fitX   [][]float64
	fitY   []float64
	inputs []float64
	err    error
}

func (r *offsetRegressor) Fit(X [][]float64, y []float64) error {
	r.fitX, r.fitY = X, y
	return r.err
}

func (r *offsetRegressor) Predict(x []float64) float64 {
	r.inputs = append(r.inputs, x[0])
	return x[0] + r.offset
}

func noisyTrend(n int) models.Series {
	v := make([]float64, n)
	for i := range v {
		v[i] = 20 + 0.8*float64(i) + 2*math.Sin(float64(i)*1.3)
	}
	return models.Series{Column: "y", Values: v}
}

func TestFrame(t *testing.T) {
	series := models.Series{Values: []float64{3, 1, 4, 1, 5}}
	pairs, err := Frame(series)
	require.NoError(t, err)
	require.Len(t, pairs, series.Len()-1)
	for i, p := range pairs {
		assert.Equal(t, series.Values[i], p.Feature)
		assert.Equal(t, series.Values[i+1], p.Label)
	}
}

func TestFrameTooShort(t *testing.T) {
	_, err := Frame(models.Series{Values: []float64{1}})
	require.ErrorIs(t, err, ErrFraming)
	assert.False(t, IsClientError(err))

	_, err = Frame(models.Series{})
	assert.ErrorIs(t, err, ErrFraming)
}

func TestRecursiveStrategyFeedsPredictionsBack(t *testing.T) {
	reg := &offsetRegressor{offset: 2}
	s := NewRecursiveStrategy(ForestLabel, func() service.Regressor { return reg })

	out, err := s.Predict(models.Series{Values: []float64{1, 2, 3, 4, 5, 6}}, 4)
	require.NoError(t, err)
	assert.Equal(t, []float64{8, 10, 12, 14}, out)
	assert.Equal(t, []float64{6, 8, 10, 12}, reg.inputs)
	assert.Equal(t, [][]float64{{1}, {2}, {3}, {4}, {5}}, reg.fitX)
	assert.Equal(t, []float64{2, 3, 4, 5, 6}, reg.fitY)
}

func TestRecursiveStrategyZeroSteps(t *testing.T) {
	reg := &offsetRegressor{offset: 1}
	s := NewRecursiveStrategy(BoostingLabel, func() service.Regressor { return reg })

	out, err := s.Predict(models.Series{Values: []float64{1, 2, 3}}, 0)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Nil(t, reg.fitX)
}

func TestRecursiveStrategyTooFewPairs(t *testing.T) {
	s := NewRecursiveStrategy(BoostingLabel, func() service.Regressor { return &offsetRegressor{} })
	_, err := s.Predict(models.Series{Values: []float64{1, 2}}, 1)
	assert.ErrorIs(t, err, ErrModelFit)

	_, err = s.Predict(models.Series{Values: []float64{1}}, 1)
	assert.ErrorIs(t, err, ErrFraming)
}

func TestRecursiveStrategyFitFailure(t *testing.T) {
	cause := errors.New("singular")
	s := NewRecursiveStrategy(BoostingLabel, func() service.Regressor { return &offsetRegressor{err: cause} })
	_, err := s.Predict(models.Series{Values: []float64{1, 2, 3}}, 1)
	assert.ErrorIs(t, err, ErrModelFit)
	assert.ErrorIs(t, err, cause)
}

func TestRecursiveStrategyNonFinitePrediction(t *testing.T) {
	s := NewRecursiveStrategy(BoostingLabel, func() service.Regressor { return &offsetRegressor{offset: math.Inf(1)} })
	_, err := s.Predict(models.Series{Values: []float64{1, 2, 3}}, 2)
	assert.ErrorIs(t, err, ErrModelFit)
}

func TestARIMAStrategy(t *testing.T) {
	s := NewARIMAStrategy(500)
	assert.Equal(t, "ARIMA(1,1,1)", s.Label())

	out, err := s.Predict(noisyTrend(30), 6)
	require.NoError(t, err)
	assert.Len(t, out, 6)
}

func TestARIMAStrategyConstantSeries(t *testing.T) {
	_, err := NewARIMAStrategy(500).Predict(models.Series{Values: []float64{4, 4, 4, 4, 4, 4}}, 2)
	require.ErrorIs(t, err, ErrModelFit)
	assert.Contains(t, err.Error(), "ARIMA(1,1,1)")
}

func TestARIMAStrategyZeroSteps(t *testing.T) {
	out, err := NewARIMAStrategy(500).Predict(models.Series{Values: []float64{4, 4, 4}}, 0)
	require.NoError(t, err)
	assert.Empty(t, out)
}

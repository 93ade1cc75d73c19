package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TENTURAVITEJA/forecasting-AI/internal/domain/models"
	"github.com/TENTURAVITEJA/forecasting-AI/internal/domain/service"
	"github.com/TENTURAVITEJA/forecasting-AI/internal/repository"
	"github.com/TENTURAVITEJA/forecasting-AI/internal/services/forecast"
	"github.com/TENTURAVITEJA/forecasting-AI/pkg/cache"
)

type flatStrategy struct {
	calls *int
	err   error
}

func (s flatStrategy) Label() string { return "Flat" }

func (s flatStrategy) Predict(series models.Series, steps int) ([]float64, error) {
	*s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]float64, steps)
	for i := range out {
		out[i] = series.Last()
	}
	return out, nil
}

type fakeMetrics struct {
	mu        sync.Mutex
	forecasts []string
	cache     []string
	errs      []string
}

func (m *fakeMetrics) RecordForecast(model, result string, _ float64, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forecasts = append(m.forecasts, model+":"+result)
}

func (m *fakeMetrics) RecordCache(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = append(m.cache, result)
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, kind)
}

func (m *fakeMetrics) RecordLatency(string, float64) {}

type fakePublisher struct {
	events []*models.ForecastEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, ev *models.ForecastEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

type fixture struct {
	uc      *ForecastUsecase
	calls   int
	metrics *fakeMetrics
	pub     *fakePublisher
	history *repository.MemoryHistoryStore
}

func newFixture(t *testing.T, strategyErr error) *fixture {
	t.Helper()
	f := &fixture{metrics: &fakeMetrics{}, pub: &fakePublisher{}}
	d := forecast.NewDispatcher(forecast.DefaultSettings(),
		forecast.WithStrategy(forecast.ChoiceARIMA, func() service.Strategy {
			return flatStrategy{calls: &f.calls, err: strategyErr}
		}),
	)
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	f.history = repository.NewMemoryHistoryStore(10).(*repository.MemoryHistoryStore)
	f.uc = NewForecastUsecase(d, mc, f.history, f.pub, f.metrics, nil, Limits{
		MaxSteps:  30,
		MaxPoints: 50,
		CacheTTL:  time.Minute,
	})
	return f
}

func valuesRequest(steps any, vals ...any) *models.ForecastRequest {
	return &models.ForecastRequest{Values: vals, Steps: steps, ModelChoice: "auto"}
}

func TestRunRecordsHistoryAndEvent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.uc.Run(ctx, ForecastInput{
		Request:   valuesRequest(2, 1, 2, 3, 4, 5),
		Source:    SourceHTTP,
		RequestID: "req-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Flat", res.Model)
	assert.Equal(t, models.UnnamedSeries, res.UsedColumn)
	assert.Equal(t, []float64{5, 5}, res.Forecast)

	recs, err := f.uc.History(ctx, models.HistoryQuery{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "req-1", recs[0].ID)
	assert.Equal(t, SourceHTTP, recs[0].Source)
	assert.Equal(t, 5, recs[0].Points)
	assert.Equal(t, 2, recs[0].Steps)

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, models.EventStatusOK, f.pub.events[0].Status)
	assert.Equal(t, []string{"arima:ok"}, f.metrics.forecasts)
}

func TestRunServesRepeatsFromCache(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	req := valuesRequest(3, 1, 2, 3, 4, 5)

	first, err := f.uc.Run(ctx, ForecastInput{Request: req, Source: SourceHTTP})
	require.NoError(t, err)
	second, err := f.uc.Run(ctx, ForecastInput{Request: req, Source: SourceHTTP})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.calls)
	assert.Equal(t, []string{"miss", "hit"}, f.metrics.cache)
	assert.Equal(t, []string{"arima:ok", "arima:cached"}, f.metrics.forecasts)

	// A different horizon is a different key.
	_, err = f.uc.Run(ctx, ForecastInput{Request: valuesRequest(4, 1, 2, 3, 4, 5)})
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls)
}

func TestRunLimits(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.uc.Run(ctx, ForecastInput{Request: valuesRequest(31, 1, 2, 3, 4, 5)})
	assert.ErrorIs(t, err, forecast.ErrSchema)

	many := make([]any, 51)
	for i := range many {
		many[i] = i
	}
	_, err = f.uc.Run(ctx, ForecastInput{Request: valuesRequest(1, many...)})
	assert.ErrorIs(t, err, forecast.ErrSchema)

	_, err = f.uc.Run(ctx, ForecastInput{})
	assert.ErrorIs(t, err, forecast.ErrSchema)
	assert.Equal(t, 0, f.calls)
}

func TestRunPublishesErrorEvent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.uc.Run(ctx, ForecastInput{Request: valuesRequest(1, 1, 2), RequestID: "short"})
	require.ErrorIs(t, err, forecast.ErrInsufficientData)

	require.Len(t, f.pub.events, 1)
	ev := f.pub.events[0]
	assert.Equal(t, "short", ev.RequestID)
	assert.Equal(t, models.EventStatusError, ev.Status)
	assert.Equal(t, forecast.CodeInsufficientData, ev.ErrorCode)
	assert.Contains(t, f.metrics.errs, forecast.CodeInsufficientData)

	recs, err := f.uc.History(ctx, models.HistoryQuery{Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRunStrategyFailureIsNotCached(t *testing.T) {
	f := newFixture(t, forecast.ErrModelFit)
	ctx := context.Background()
	req := valuesRequest(1, 1, 2, 3, 4, 5)

	_, err := f.uc.Run(ctx, ForecastInput{Request: req})
	require.ErrorIs(t, err, forecast.ErrModelFit)
	_, err = f.uc.Run(ctx, ForecastInput{Request: req})
	require.ErrorIs(t, err, forecast.ErrModelFit)
	assert.Equal(t, 2, f.calls)
}

func TestRunIgnoresPublishFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.pub.err = errors.New("broker down")

	res, err := f.uc.Run(context.Background(), ForecastInput{Request: valuesRequest(1, 1, 2, 3, 4, 5)})
	require.NoError(t, err)
	assert.Len(t, res.Forecast, 1)
	assert.Contains(t, f.metrics.errs, "publish")
}

func TestRunCancelledContext(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.uc.Run(ctx, ForecastInput{Request: valuesRequest(1, 1, 2, 3, 4, 5)})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.calls)
	assert.Contains(t, f.metrics.errs, "ERR_INTERNAL")
	assert.Empty(t, f.pub.events)
}

func TestModelsAndHealth(t *testing.T) {
	f := newFixture(t, nil)
	ms := f.uc.Models()
	require.NotEmpty(t, ms)
	assert.Equal(t, forecast.ChoiceAuto, ms[len(ms)-1].Choice)

	status, ok := f.uc.Health(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "ok", status["history"])
}

func TestCacheKeyDependsOnInput(t *testing.T) {
	a := cacheKey("rf", 3, models.Series{Column: "y", Values: []float64{1, 2, 3}})
	b := cacheKey("rf", 3, models.Series{Column: "y", Values: []float64{1, 2, 4}})
	c := cacheKey("rf", 3, models.Series{Column: "z", Values: []float64{1, 2, 3}})
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, cacheKey("rf", 3, models.Series{Column: "y", Values: []float64{1, 2, 3}}))
}

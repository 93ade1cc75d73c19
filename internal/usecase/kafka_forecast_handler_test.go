package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TENTURAVITEJA/forecasting-AI/internal/domain/models"
	pkgkafka "github.com/TENTURAVITEJA/forecasting-AI/pkg/kafka"
)

func TestKafkaHandlerRunsForecast(t *testing.T) {
	f := newFixture(t, nil)
	h := NewKafkaForecastHandler("forecast.requests", f.uc, f.metrics)
	assert.Equal(t, "forecast.requests", h.Topic())

	err := h.Handle(context.Background(), []byte(`{"request_id":"k-1","values":[1,2,3,4,5],"steps":2}`))
	require.NoError(t, err)

	require.Len(t, f.pub.events, 1)
	ev := f.pub.events[0]
	assert.Equal(t, "k-1", ev.RequestID)
	assert.Equal(t, models.EventStatusOK, ev.Status)
	assert.Equal(t, []float64{5, 5}, ev.Forecast)

	recs, err := f.uc.History(context.Background(), models.HistoryQuery{Limit: 1})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, SourceKafka, recs[0].Source)
	assert.Equal(t, "arima", recs[0].Choice)
}

func TestKafkaHandlerUsesContextRequestID(t *testing.T) {
	f := newFixture(t, nil)
	h := NewKafkaForecastHandler("t", f.uc, f.metrics)

	ctx := pkgkafka.WithRequestID(context.Background(), "from-header")
	require.NoError(t, h.Handle(ctx, []byte(`{"values":[1,2,3,4,5]}`)))
	require.Len(t, f.pub.events, 1)
	assert.Equal(t, "from-header", f.pub.events[0].RequestID)
}

func TestKafkaHandlerBadPayloadIsPermanent(t *testing.T) {
	f := newFixture(t, nil)
	h := NewKafkaForecastHandler("t", f.uc, f.metrics)

	err := h.Handle(context.Background(), []byte(`{"values":`))
	require.Error(t, err)
	assert.True(t, pkgkafka.IsPermanent(err))
	assert.Contains(t, f.metrics.errs, "consumer_unmarshal")
	assert.Empty(t, f.pub.events)
}

func TestKafkaHandlerForecastErrorIsNotRetried(t *testing.T) {
	f := newFixture(t, nil)
	h := NewKafkaForecastHandler("t", f.uc, f.metrics)

	require.NoError(t, h.Handle(context.Background(), []byte(`{"request_id":"bad","values":[1,"x"]}`)))
	require.Len(t, f.pub.events, 1)
	assert.Equal(t, models.EventStatusError, f.pub.events[0].Status)
}

func TestKafkaHandlerRetriedErrorPublishesNoEvents(t *testing.T) {
	f := newFixture(t, nil)
	h := NewKafkaForecastHandler("t", f.uc, f.metrics)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		err := h.Handle(ctx, []byte(`{"request_id":"r-1","values":[1,2,3,4,5]}`))
		require.ErrorIs(t, err, context.Canceled)
		assert.False(t, pkgkafka.IsPermanent(err))
	}
	assert.Empty(t, f.pub.events)

	require.NoError(t, h.Handle(context.Background(), []byte(`{"request_id":"r-1","values":[1,2,3,4,5]}`)))
	require.Len(t, f.pub.events, 1)
	assert.Equal(t, models.EventStatusOK, f.pub.events[0].Status)
}

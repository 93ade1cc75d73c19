package repository

import (
	"context"

	"github.com/TENTURAVITEJA/forecasting-AI/internal/domain/models"
)

// HistoryStore keeps completed forecasts.
type HistoryStore interface {
	Save(ctx context.Context, r *models.ForecastRecord) error
	Recent(ctx context.Context, q models.HistoryQuery) ([]*models.ForecastRecord, error)
	Health(ctx context.Context) error // ping
	Close() error
}

// ResultPublisher emits forecast events for downstream consumers.
type ResultPublisher interface {
	Publish(ctx context.Context, ev *models.ForecastEvent) error
	Close() error
}

type Metrics interface {
	RecordForecast(model, result string, seconds float64, points int)
	RecordCache(result string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

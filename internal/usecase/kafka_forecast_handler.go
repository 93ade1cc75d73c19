package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/creasty/defaults"

	"github.com/TENTURAVITEJA/forecasting-AI/internal/domain/models"
	domrepo "github.com/TENTURAVITEJA/forecasting-AI/internal/domain/repository"
	"github.com/TENTURAVITEJA/forecasting-AI/internal/services/forecast"
	pkgkafka "github.com/TENTURAVITEJA/forecasting-AI/pkg/kafka"
)

// forecastMessage is the payload on the request topic: a ForecastRequest
// plus an optional correlation id.
type forecastMessage struct {
	RequestID string `json:"request_id"`
	models.ForecastRequest
}

// KafkaForecastHandler runs forecasts requested over Kafka. Results and
// forecast errors go out as events on the result topic.
type KafkaForecastHandler struct {
	topic   string
	uc      *ForecastUsecase
	metrics domrepo.Metrics
}

func NewKafkaForecastHandler(topic string, uc *ForecastUsecase, metrics domrepo.Metrics) *KafkaForecastHandler {
	return &KafkaForecastHandler{topic: topic, uc: uc, metrics: metrics}
}

func (h *KafkaForecastHandler) Topic() string { return h.topic }

// Handle returns a permanent error for undecodable payloads so they go
// straight to the DLQ. Forecast errors are already published as events and
// are not retried.
func (h *KafkaForecastHandler) Handle(ctx context.Context, b []byte) error {
	var m forecastMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode forecast request: %w", err))
	}
	if err := defaults.Set(&m.ForecastRequest); err != nil {
		return pkgkafka.Permanent(fmt.Errorf("apply request defaults: %w", err))
	}
	if m.RequestID == "" {
		m.RequestID = pkgkafka.RequestIDFromContext(ctx)
	}

	_, err := h.uc.Run(ctx, ForecastInput{
		Request:   &m.ForecastRequest,
		Source:    SourceKafka,
		RequestID: m.RequestID,
	})
	var fe *forecast.Error
	if err != nil && !errors.As(err, &fe) {
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaForecastHandler)(nil)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	forecasts    *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	seriesPoints prometheus.Histogram
	cacheEvents  *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New registers the recorder on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the recorder on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		forecasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecast_requests_total",
				Help: "Total number of forecasts by model and result",
			},
			[]string{"model", "result"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forecast_duration_seconds",
				Help:    "Time spent fitting and forecasting",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"model"},
		),
		seriesPoints: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "forecast_series_points",
				Help:    "Number of numeric points in validated series",
				Buckets: prometheus.ExponentialBuckets(5, 4, 8),
			},
		),
		cacheEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecast_cache_events_total",
				Help: "Forecast cache lookups by result",
			},
			[]string{"result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"kind"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forecast_operation_duration_seconds",
				Help:    "Duration of supporting operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordForecast records one finished forecast. result is "ok" or an error code.
func (r *Recorder) RecordForecast(model, result string, seconds float64, points int) {
	r.forecasts.WithLabelValues(model, result).Inc()
	r.duration.WithLabelValues(model).Observe(seconds)
	if points > 0 {
		r.seriesPoints.Observe(float64(points))
	}
}

// RecordCache records a cache hit, miss or error.
func (r *Recorder) RecordCache(result string) {
	r.cacheEvents.WithLabelValues(result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

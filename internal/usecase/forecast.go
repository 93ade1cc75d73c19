package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/TENTURAVITEJA/forecasting-AI/internal/domain/models"
	drepo "github.com/TENTURAVITEJA/forecasting-AI/internal/domain/repository"
	"github.com/TENTURAVITEJA/forecasting-AI/internal/services/forecast"
	"github.com/TENTURAVITEJA/forecasting-AI/pkg/cache"
	applogger "github.com/TENTURAVITEJA/forecasting-AI/pkg/logger"
)

const (
	SourceHTTP   = "http"
	SourceUpload = "upload"
	SourceKafka  = "kafka"
	SourceCLI    = "cli"
)

// Limits bounds what one request may ask for. Zero disables a limit.
type Limits struct {
	MaxSteps  int
	MaxPoints int
	CacheTTL  time.Duration
}

// ForecastInput is one forecast request plus where it came from.
type ForecastInput struct {
	Request   *models.ForecastRequest
	Source    string
	RequestID string
}

// ForecastUsecase runs validated forecasts and records their outcome.
type ForecastUsecase struct {
	dispatcher *forecast.Dispatcher
	cache      cache.Service
	history    drepo.HistoryStore
	publisher  drepo.ResultPublisher
	metrics    drepo.Metrics
	log        *applogger.Logger
	limits     Limits
	now        func() time.Time
}

// NewForecastUsecase wires the forecast pipeline. cacheSvc and publisher
// may be nil.
func NewForecastUsecase(
	dispatcher *forecast.Dispatcher,
	cacheSvc cache.Service,
	history drepo.HistoryStore,
	publisher drepo.ResultPublisher,
	metrics drepo.Metrics,
	log *applogger.Logger,
	limits Limits,
) *ForecastUsecase {
	if log == nil {
		log = applogger.Nop()
	}
	return &ForecastUsecase{
		dispatcher: dispatcher,
		cache:      cacheSvc,
		history:    history,
		publisher:  publisher,
		metrics:    metrics,
		log:        log,
		limits:     limits,
		now:        time.Now,
	}
}

type outcome struct {
	result *models.ForecastResult
	steps  int
	points int
	cached bool
}

// Run validates, forecasts and records one request. Forecast failures come
// back as *forecast.Error and are published as error events; other errors
// are returned unpublished. History and publish failures are only logged.
func (u *ForecastUsecase) Run(ctx context.Context, in ForecastInput) (*models.ForecastResult, error) {
	if in.RequestID == "" {
		in.RequestID = uuid.NewString()
	}
	start := u.now()
	out, err := u.run(ctx, in.Request)
	elapsed := u.now().Sub(start)

	log := u.log.With(
		applogger.String("request_id", in.RequestID),
		applogger.String("source", in.Source),
	)

	if err != nil {
		code := forecast.CodeOf(err)
		if code == "" {
			code = "ERR_INTERNAL"
		}
		u.metrics.RecordForecast(u.dispatcher.Resolve(modelChoice(in.Request)), "error", elapsed.Seconds(), out.points)
		u.metrics.RecordError(code)
		if forecast.IsClientError(err) {
			log.Warn("forecast rejected", applogger.String("code", code), applogger.Error(err))
		} else {
			log.Error("forecast failed", applogger.String("code", code), applogger.Error(err))
		}
		// Only forecast verdicts are final; anything else may be retried by
		// the caller and must not emit an event per attempt.
		var fe *forecast.Error
		if errors.As(err, &fe) {
			u.publish(ctx, log, &models.ForecastEvent{
				RequestID: in.RequestID,
				Status:    models.EventStatusError,
				ErrorCode: code,
				Error:     err.Error(),
				Timestamp: u.now().UTC(),
			})
		}
		return nil, err
	}

	res := out.result
	result := "ok"
	if out.cached {
		result = "cached"
	}
	u.metrics.RecordForecast(res.Choice, result, elapsed.Seconds(), out.points)
	log.Info("forecast served",
		applogger.String("model", res.Model),
		applogger.String("used_column", res.UsedColumn),
		applogger.Int("steps", out.steps),
		applogger.Int("points", out.points),
		applogger.Bool("cached", out.cached),
		applogger.Duration("duration_ms", elapsed),
	)

	if u.history != nil {
		rec := &models.ForecastRecord{
			ID:         in.RequestID,
			CreatedAt:  start.UTC(),
			Source:     in.Source,
			Model:      res.Model,
			Choice:     res.Choice,
			UsedColumn: res.UsedColumn,
			Steps:      out.steps,
			Points:     out.points,
			Forecast:   res.Forecast,
			DurationMs: elapsed.Milliseconds(),
			Cached:     out.cached,
		}
		if herr := u.history.Save(ctx, rec); herr != nil {
			u.metrics.RecordError("history_save")
			log.Warn("save forecast history", applogger.Error(herr))
		}
	}

	u.publish(ctx, log, &models.ForecastEvent{
		RequestID:  in.RequestID,
		Status:     models.EventStatusOK,
		Model:      res.Model,
		UsedColumn: res.UsedColumn,
		Forecast:   res.Forecast,
		Timestamp:  u.now().UTC(),
	})
	return res, nil
}

func (u *ForecastUsecase) run(ctx context.Context, req *models.ForecastRequest) (outcome, error) {
	var out outcome
	if req == nil {
		return out, forecast.SchemaErrorf("request body is required")
	}
	if n := len(req.Values) + len(req.Rows); u.limits.MaxPoints > 0 && n > u.limits.MaxPoints {
		return out, forecast.SchemaErrorf("too many points: %d exceeds limit %d", n, u.limits.MaxPoints)
	}

	series, err := forecast.Validate(req)
	if err != nil {
		return out, err
	}
	out.points = series.Len()

	steps, err := forecast.ParseSteps(req.Steps)
	if err != nil {
		return out, err
	}
	if u.limits.MaxSteps > 0 && steps > u.limits.MaxSteps {
		return out, forecast.SchemaErrorf("steps %d exceeds limit %d", steps, u.limits.MaxSteps)
	}
	out.steps = steps

	choice := u.dispatcher.Resolve(req.ModelChoice)
	key := cacheKey(choice, steps, series)
	if res, ok := u.lookup(ctx, key); ok {
		out.result, out.cached = res, true
		return out, nil
	}

	if err := ctx.Err(); err != nil {
		return out, fmt.Errorf("forecast aborted: %w", err)
	}
	start := u.now()
	res, err := u.dispatcher.Dispatch(series, steps, req.ModelChoice)
	u.metrics.RecordLatency("dispatch", u.now().Sub(start).Seconds())
	if err != nil {
		return out, err
	}
	out.result = res

	if u.cache != nil && u.limits.CacheTTL > 0 {
		if cerr := u.cache.Set(ctx, key, res, u.limits.CacheTTL); cerr != nil {
			u.metrics.RecordCache("error")
			u.log.Warn("cache forecast", applogger.String("key", key), applogger.Error(cerr))
		}
	}
	return out, nil
}

func (u *ForecastUsecase) lookup(ctx context.Context, key string) (*models.ForecastResult, bool) {
	if u.cache == nil || u.limits.CacheTTL <= 0 {
		return nil, false
	}
	var res models.ForecastResult
	err := u.cache.Get(ctx, key, &res)
	switch {
	case err == nil:
		u.metrics.RecordCache("hit")
		return &res, true
	case errors.Is(err, cache.ErrCacheMiss):
		u.metrics.RecordCache("miss")
	default:
		u.metrics.RecordCache("error")
		u.log.Warn("cache lookup", applogger.String("key", key), applogger.Error(err))
	}
	return nil, false
}

func (u *ForecastUsecase) publish(ctx context.Context, log *applogger.Logger, ev *models.ForecastEvent) {
	if u.publisher == nil {
		return
	}
	if err := u.publisher.Publish(ctx, ev); err != nil {
		u.metrics.RecordError("publish")
		log.Warn("publish forecast event", applogger.Error(err))
	}
}

// cacheKey identifies a forecast by strategy, horizon and the exact input
// series. Forecasts are deterministic so equal keys mean equal results.
func cacheKey(choice string, steps int, s models.Series) string {
	return cache.Key("forecast", choice, steps, cache.Fingerprint(s.Column, s.Values))
}

func modelChoice(req *models.ForecastRequest) string {
	if req == nil {
		return ""
	}
	return req.ModelChoice
}

// History returns recent forecasts, newest first.
func (u *ForecastUsecase) History(ctx context.Context, q models.HistoryQuery) ([]*models.ForecastRecord, error) {
	if u.history == nil {
		return []*models.ForecastRecord{}, nil
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}
	start := u.now()
	recs, err := u.history.Recent(ctx, q)
	u.metrics.RecordLatency("history", u.now().Sub(start).Seconds())
	if err != nil {
		u.metrics.RecordError("history_query")
		return nil, fmt.Errorf("load history: %w", err)
	}
	return recs, nil
}

// Models lists the selectable strategies.
func (u *ForecastUsecase) Models() []models.ModelInfo {
	return u.dispatcher.Models()
}

type healthChecker interface {
	Health(ctx context.Context) error
}

// Health pings the optional dependencies. The map holds "ok" or the error
// text per component.
func (u *ForecastUsecase) Health(ctx context.Context) (map[string]string, bool) {
	status := map[string]string{}
	healthy := true
	check := func(name string, dep any) {
		hc, ok := dep.(healthChecker)
		if !ok || hc == nil {
			return
		}
		if err := hc.Health(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			return
		}
		status[name] = "ok"
	}
	check("history", u.history)
	check("cache", u.cache)
	return status, healthy
}

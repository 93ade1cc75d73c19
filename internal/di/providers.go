package di

import (
	"context"
	"fmt"
	"time"

	"github.com/TENTURAVITEJA/forecasting-AI/internal/domain/repository"
	"github.com/TENTURAVITEJA/forecasting-AI/internal/handler/api"
	internalrepo "github.com/TENTURAVITEJA/forecasting-AI/internal/repository"
	"github.com/TENTURAVITEJA/forecasting-AI/internal/services/forecast"
	"github.com/TENTURAVITEJA/forecasting-AI/internal/usecase"
	"github.com/TENTURAVITEJA/forecasting-AI/pkg/cache"
	pkgch "github.com/TENTURAVITEJA/forecasting-AI/pkg/clickhouse"
	"github.com/TENTURAVITEJA/forecasting-AI/pkg/config"
	xhttp "github.com/TENTURAVITEJA/forecasting-AI/pkg/http"
	pkgkafka "github.com/TENTURAVITEJA/forecasting-AI/pkg/kafka"
	applogger "github.com/TENTURAVITEJA/forecasting-AI/pkg/logger"
	"github.com/TENTURAVITEJA/forecasting-AI/pkg/metrics"
	"github.com/TENTURAVITEJA/forecasting-AI/pkg/server"
)

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is off.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger builds the application logger. Error logs are aggregated
// onto the log topic when the collector is enabled and Kafka is available.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	log, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Kafka.LogCollector.Enabled && producer != nil {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Kafka.LogCollector.Interval,
			CountThreshold: cfg.Kafka.LogCollector.CountThreshold,
			Topic:          cfg.Kafka.LogTopic,
			Service:        "forecast-api",
			Publisher:      producer,
		})
	}
	return log, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRedisCache connects the shared cache layer, or returns nil when
// Redis is not configured.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Cache.Enabled || !cfg.Cache.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Cache.Redis.Host),
		cache.WithRedisPort(cfg.Cache.Redis.Port),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPool(cfg.Cache.Redis.PoolSize, cfg.Cache.Redis.PoolSize/2, 30*time.Second),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCache builds the result cache on top of the optional Redis layer.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) *cache.LayeredCache {
	if !cfg.Cache.Enabled {
		if rc != nil {
			_ = rc.Close()
		}
		return nil
	}
	return cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(cfg.Cache.Memory.MaxSize),
		cache.WithLayeredMemoryTTL(cfg.Cache.TTL),
	)
}

// ProvideClickHouseClient creates a ClickHouse client with the history
// schema in place, or nil when ClickHouse is off.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if !pkgch.ValidIdentifier(cfg.ClickHouse.Table) {
		return nil, fmt.Errorf("clickhouse: invalid table name %q", cfg.ClickHouse.Table)
	}
	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if err := client.InitSchema(ctx, internalrepo.HistorySchema(cfg.ClickHouse.Database, cfg.ClickHouse.Table)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideHistoryStore stores history in ClickHouse when connected and in a
// bounded in-memory ring otherwise.
func ProvideHistoryStore(cfg *config.Config, ch *pkgch.Client) (repository.HistoryStore, error) {
	if ch == nil {
		return internalrepo.NewMemoryHistoryStore(cfg.Forecast.History.MemorySize), nil
	}
	table, err := ch.Table(cfg.ClickHouse.Table)
	if err != nil {
		return nil, fmt.Errorf("history store: %w", err)
	}
	return internalrepo.NewClickHouseHistoryStore(ch.DB(), table), nil
}

// ProvideResultPublisher publishes forecast events to the result topic.
func ProvideResultPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.ResultPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaResultPublisher(producer, cfg.Kafka.ResultTopic)
}

// ProvideKafkaConsumer creates the request consumer, or nil when Kafka is off.
func ProvideKafkaConsumer(cfg *config.Config, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerLogger(log)
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.RequestContextHook()))
	return consumer, nil
}

// ProvideDispatcher builds the model table from the forecast settings.
func ProvideDispatcher(cfg *config.Config) *forecast.Dispatcher {
	f := cfg.Forecast
	return forecast.NewDispatcher(forecast.Settings{
		ARIMAMaxIterations:   f.ARIMA.MaxIterations,
		ForestTrees:          f.Forest.Trees,
		ForestMaxDepth:       f.Forest.MaxDepth,
		ForestMinSamplesLeaf: f.Forest.MinSamplesLeaf,
		Seed:                 f.Seed,
		BoostRounds:          f.Boosting.Rounds,
		BoostLearningRate:    f.Boosting.LearningRate,
		BoostMaxDepth:        f.Boosting.MaxDepth,
		BoostLambda:          f.Boosting.Lambda,
	})
}

// ProvideForecastUsecase creates the forecast use case.
func ProvideForecastUsecase(
	cfg *config.Config,
	dispatcher *forecast.Dispatcher,
	lc *cache.LayeredCache,
	history repository.HistoryStore,
	publisher repository.ResultPublisher,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.ForecastUsecase {
	var svc cache.Service
	if lc != nil {
		svc = lc
	}
	return usecase.NewForecastUsecase(dispatcher, svc, history, publisher, m, log, usecase.Limits{
		MaxSteps:  cfg.Forecast.MaxSteps,
		MaxPoints: cfg.Forecast.MaxPoints,
		CacheTTL:  cfg.Cache.TTL,
	})
}

// ProvideKafkaForecastHandler handles the request topic.
func ProvideKafkaForecastHandler(cfg *config.Config, uc *usecase.ForecastUsecase, m repository.Metrics) *usecase.KafkaForecastHandler {
	return usecase.NewKafkaForecastHandler(cfg.Kafka.RequestTopic, uc, m)
}

// ProvideHTTPHandler exposes the forecast API.
func ProvideHTTPHandler(log *applogger.Logger, uc *usecase.ForecastUsecase) xhttp.Handler {
	return api.NewForecastEchoHandler(log, uc)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// ProvideApp creates the application server. Infrastructure is released in
// reverse registration order once intake has stopped.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaForecastHandler,
	ch *pkgch.Client,
	producer *pkgkafka.Producer,
	history repository.HistoryStore,
	lc *cache.LayeredCache,
) *server.App {
	var mh pkgkafka.MessageHandler
	if consumer != nil {
		mh = kh
	}
	app := server.New(cfg, log, handler, consumer, mh)

	// The producer goes first so it is closed last: the log collector
	// flushes through it.
	if producer != nil {
		app.OnShutdown("kafka producer", producer)
	}
	app.OnShutdown("log collector", closerFunc(func() error {
		log.RemoveCollector()
		return nil
	}))
	if ch != nil {
		app.OnShutdown("clickhouse", ch)
	}
	app.OnShutdown("history", history)
	if lc != nil {
		app.OnShutdown("cache", lc)
	}
	return app
}

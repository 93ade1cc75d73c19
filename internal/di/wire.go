//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/TENTURAVITEJA/forecasting-AI/pkg/config"
	"github.com/TENTURAVITEJA/forecasting-AI/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideRedisCache,
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaConsumer,

		// Repositories
		ProvideHistoryStore,
		ProvideResultPublisher,

		// Forecasting
		ProvideDispatcher,
		ProvideForecastUsecase,
		ProvideKafkaForecastHandler,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

//go:build wireinject
// +build wireinject

package di

import (
	"FinSeries/pkg/config"
	"FinSeries/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideRedisCache,

		// Repositories
		ProvideWindowPublisher,
		ProvideWindowStorage,

		// Aggregation core and publication
		ProvideWindowProcessor,
		ProvideWindowPipeline,
		ProvideSeriesManager,

		// Use cases and ingestion
		ProvideSeriesUseCase,
		ProvideTickCollector,
		ProvideKafkaConsumer,
		ProvideKafkaTicksHandler,

		// HTTP
		ProvideSeriesHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

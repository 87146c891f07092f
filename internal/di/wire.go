//go:build wireinject
// +build wireinject

package di

import (
	"github.com/katsup07/stock-predictor-2/pkg/config"
	"github.com/katsup07/stock-predictor-2/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideHTTPClient,
		ProvideRedisCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideQueue,

		// Repositories
		ProvideMarketData,
		ProvidePredictionStore,
		ProvideForecastArchive,
		ProvideEventPublisher,

		// Use cases
		ProvidePredictor,
		ProvideDispatcher,
		ProvideKafkaPredictionsHandler,

		// HTTP surface
		ProvideRouter,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

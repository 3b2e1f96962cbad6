//go:build wireinject
// +build wireinject

package di

import (
	"HeatPulse/pkg/config"
	"HeatPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideHTTPClient,
		ProvideCache,

		// Stores
		ProvideSnapshotStore,
		ProvideHeatStore,
		ProvideAlertStore,
		ProvideJobLogStore,
		ProvideRetentionStore,
		ProvideAlertPublisher,

		// Collectors
		ProvideQuoteSource,
		ProvideSentimentSources,

		// Pipeline
		ProvideWeights,
		ProvideHeatCalculator,
		ProvideAnomalyDetector,
		ProvideNotifier,
		ProvideOrchestrator,
		ProvideCleanupJob,

		// Jobs and transport
		ProvideHub,
		ProvideTracker,
		ProvideScheduler,
		ProvideHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

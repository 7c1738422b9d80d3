//go:build wireinject
// +build wireinject

package di

import (
	"clarity/internal"
	"clarity/internal/api"
	"clarity/internal/controllers"
	"clarity/internal/localdb"
	"clarity/internal/persistence"
	"clarity/internal/providers"
	"clarity/internal/query"
	"clarity/internal/realtime"
	"clarity/internal/services"
	"clarity/internal/storage"
	"clarity/internal/structures"

	wire "github.com/google/wire"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, func(), error) {

	wire.Build(
		providers.NewConfigProvider,
		logProvider,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,

		storage.NewStorageProvider,
		localdb.NewLocalDB,
		api.NewApiClient,
		api.NewPaymentVerifier,
		query.NewQueryClient,
		services.NewDashboardService,
		leadSink,
		realtime.NewListener,
		compressor,
		persistence.NewSnapshotManager,
		persistence.NewScheduler,
		controllers.NewApiController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil, nil
}

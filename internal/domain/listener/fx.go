package listener

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/Conte777/NewsFlow/services/listener-service/config"
	listenerhttp "github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/delivery/http"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/deps"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/repository/file"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/repository/postgres"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/resolver"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/usecase/business"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/workers"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/infrastructure/http/server"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/infrastructure/metrics"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/infrastructure/s3"
)

// Module provides listener domain components for fx DI
var Module = fx.Module("listener",
	fx.Provide(
		NewAccountStoreFx,
		NewMessageSinkFx,
		func(r *resolver.Resolver) deps.GroupResolver { return r },
		resolver.NewResolver,
		func(f *workers.Factory) deps.TaskFactory { return f },
		workers.NewFactory,
		NewUseCaseFx,
		func(uc *business.UseCase) deps.ListenerRegistry { return uc },
		NewArchiverWorkerFx,
		listenerhttp.NewListenerHandler,
		listenerhttp.NewRouter,
	),
	fx.Invoke(RegisterRoutes, registerArchiver),
)

// NewAccountStoreFx selects the account store backend from configuration
func NewAccountStoreFx(
	lc fx.Lifecycle,
	storageCfg *config.StorageConfig,
	dbCfg *config.DatabaseConfig,
	logger zerolog.Logger,
) (deps.AccountStore, error) {
	if storageCfg.Backend == config.StoreBackendPostgres {
		store, err := postgres.Open(dbCfg, logger)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				logger.Info().Msg("closing postgres account store")
				return store.Close()
			},
		})
		return store, nil
	}

	store, err := file.NewAccountStore(storageCfg.DataDir, logger)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("data_dir", storageCfg.DataDir).Msg("using file account store")
	return store, nil
}

// NewMessageSinkFx creates the file message sink in the data directory
func NewMessageSinkFx(
	storageCfg *config.StorageConfig,
	publisher deps.CapturePublisher,
	m *metrics.Metrics,
	logger zerolog.Logger,
) (deps.MessageSink, error) {
	return file.NewMessageSink(storageCfg.DataDir, publisher, m, logger)
}

// NewUseCaseFx creates the listener registry and stops all listeners on shutdown
func NewUseCaseFx(
	lc fx.Lifecycle,
	store deps.AccountStore,
	sink deps.MessageSink,
	factory deps.TaskFactory,
	cfg *config.ListenerConfig,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *business.UseCase {
	uc := business.NewUseCase(store, sink, factory, cfg, m, logger)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			uc.Shutdown(ctx)
			return nil
		},
	})

	return uc
}

// NewArchiverWorkerFx creates the log archiver; it stays idle when S3 is not configured
func NewArchiverWorkerFx(
	store deps.AccountStore,
	sink deps.MessageSink,
	client *s3.Client,
	s3Cfg *config.S3Config,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *workers.ArchiverWorker {
	var uploader deps.SnapshotUploader
	if client != nil {
		uploader = client
	}
	return workers.NewArchiverWorker(store, sink, uploader, s3Cfg.ArchiveInterval, m, logger)
}

// registerArchiver registers the archiver with fx.Lifecycle
func registerArchiver(lc fx.Lifecycle, w *workers.ArchiverWorker) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			w.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			w.Stop()
			return nil
		},
	})
}

// RegisterRoutes registers listener routes on the server
func RegisterRoutes(srv *server.Server, router *listenerhttp.Router) {
	router.RegisterRoutes(srv.Router)
}

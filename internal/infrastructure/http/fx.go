package http

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/Conte777/NewsFlow/services/listener-service/config"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/infrastructure/http/server"
	pkgerrors "github.com/Conte777/NewsFlow/services/listener-service/pkg/errors"
)

// Module provides HTTP server and the error mapper for fx DI
var Module = fx.Module("http",
	fx.Provide(
		NewServerFx,
		pkgerrors.NewMapper,
	),
)

// NewServerFx creates HTTP server with lifecycle hooks for fx DI
func NewServerFx(
	lc fx.Lifecycle,
	serviceCfg *config.ServiceConfig,
	logger zerolog.Logger,
) *server.Server {
	srv := server.NewServer(serviceCfg.Name, serviceCfg.Port, logger.With().Str("component", "http").Logger())

	// Register Prometheus metrics endpoint
	srv.RegisterMetrics()

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return srv.Start()
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})

	return srv
}

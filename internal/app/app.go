package app

import (
	"go.uber.org/fx"

	"github.com/Conte777/NewsFlow/services/listener-service/config"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/account"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/session"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/infrastructure"
)

// CreateApp creates the fx application options
func CreateApp() fx.Option {
	return fx.Options(
		fx.Provide(config.Out),
		infrastructure.Module,
		// Domain modules
		listener.Module,
		session.Module, // Must be after listener.Module (depends on AccountStore and ListenerRegistry)
		account.Module,
	)
}

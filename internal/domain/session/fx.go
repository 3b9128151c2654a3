package session

import (
	"go.uber.org/fx"

	listenerdeps "github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/deps"
	sessionhttp "github.com/Conte777/NewsFlow/services/listener-service/internal/domain/session/delivery/http"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/session/deps"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/session/usecase/business"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/infrastructure/http/server"
)

// Module provides session domain components for fx DI
var Module = fx.Module("session",
	fx.Provide(
		func(s listenerdeps.AccountStore) deps.AccountStore { return s },
		func(r listenerdeps.ListenerRegistry) deps.ListenerStopper { return r },
		business.NewUseCase,
		sessionhttp.NewSessionHandler,
		sessionhttp.NewRouter,
	),
	fx.Invoke(RegisterRoutes),
)

// RegisterRoutes registers session routes on the server
func RegisterRoutes(srv *server.Server, router *sessionhttp.Router) {
	router.RegisterRoutes(srv.Router)
}

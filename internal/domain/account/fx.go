package account

import (
	"go.uber.org/fx"

	accounthttp "github.com/Conte777/NewsFlow/services/listener-service/internal/domain/account/delivery/http"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/account/deps"
	listenerdeps "github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/deps"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/infrastructure/http/server"
)

// Module provides account domain components for fx DI
var Module = fx.Module("account",
	fx.Provide(
		func(s listenerdeps.AccountStore) deps.AccountLister { return s },
		func(r listenerdeps.ListenerRegistry) deps.ListenerStatusReader { return r },
		accounthttp.NewHandler,
		accounthttp.NewRouter,
	),
	fx.Invoke(registerRoutes),
)

// registerRoutes registers account HTTP routes on the server
func registerRoutes(srv *server.Server, router *accounthttp.Router) {
	router.RegisterRoutes(srv.Router)
}

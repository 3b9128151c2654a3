package telegram

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/Conte777/NewsFlow/services/listener-service/config"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/deps"
	sessiondeps "github.com/Conte777/NewsFlow/services/listener-service/internal/domain/session/deps"
)

// Module provides the Telegram backend and login flow for fx DI
var Module = fx.Module("telegram",
	fx.Provide(
		provideBackend,
		NewLoginManagerFx,
		provideLoginFlow,
	),
)

func provideBackend(sessionCfg *config.SessionConfig, listenerCfg *config.ListenerConfig, logger zerolog.Logger) deps.Backend {
	return NewBackend(sessionCfg, listenerCfg, logger)
}

// provideLoginFlow provides sessiondeps.LoginFlow interface from LoginManager
func provideLoginFlow(m *LoginManager) sessiondeps.LoginFlow {
	return m
}

// NewLoginManagerFx creates a login manager with lifecycle hooks for fx DI
func NewLoginManagerFx(lc fx.Lifecycle, cfg *config.SessionConfig, logger zerolog.Logger) *LoginManager {
	m := NewLoginManager(cfg, logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			m.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			m.Stop()
			return nil
		},
	})

	return m
}

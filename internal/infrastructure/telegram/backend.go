package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"github.com/Conte777/NewsFlow/services/listener-service/config"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/deps"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/entities"
	"github.com/Conte777/NewsFlow/services/listener-service/pkg/phone"
)

// Backend opens MTProto user sessions using gotd/td
type Backend struct {
	connectTimeout time.Duration
	eventBuffer    int
	logger         zerolog.Logger
}

// NewBackend creates a Telegram backend
func NewBackend(sessionCfg *config.SessionConfig, listenerCfg *config.ListenerConfig, logger zerolog.Logger) *Backend {
	return &Backend{
		connectTimeout: sessionCfg.ConnectTimeout,
		eventBuffer:    listenerCfg.EventBuffer,
		logger:         logger.With().Str("component", "telegram_backend").Logger(),
	}
}

// Connect opens a connection restoring the session from creds.SessionToken.
// The connection lives until Close is called or it is lost.
func (b *Backend) Connect(ctx context.Context, creds entities.Credentials) (deps.BackendSession, error) {
	if creds.APIID == 0 {
		return nil, fmt.Errorf("APIID is required")
	}
	if creds.APIHash == "" {
		return nil, fmt.Errorf("APIHash is required")
	}

	storage, err := NewMemorySessionStorageFromToken(ctx, creds.SessionToken)
	if err != nil {
		return nil, err
	}

	s := &Session{
		storage:      storage,
		dispatcher:   tg.NewUpdateDispatcher(),
		updatesStart: make(chan *tg.User, 1),
		eventBuffer:  b.eventBuffer,
		logger:       b.logger.With().Str("phone", phone.Mask(creds.AccountID)).Logger(),
	}
	s.gaps = updates.New(updates.Config{Handler: s.dispatcher})
	s.dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		s.deliver(ctx, u.Message)
		return nil
	})
	s.dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
		s.deliver(ctx, u.Message)
		return nil
	})

	client := telegram.NewClient(creds.APIID, creds.APIHash, telegram.Options{
		SessionStorage: storage,
		UpdateHandler:  s.gaps,
	})

	connectCtx := ctx
	if b.connectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, b.connectTimeout)
		defer cancel()
	}

	s.logger.Info().Msg("connecting to Telegram")

	r, err := startClient(connectCtx, client, s.run)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to connect to Telegram")
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	s.runner = r
	s.api = client.API()

	s.logger.Info().Msg("connected to Telegram")
	return s, nil
}

// Ensure Backend implements deps.Backend interface
var _ deps.Backend = (*Backend)(nil)

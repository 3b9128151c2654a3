package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Conte777/NewsFlow/services/listener-service/config"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/deps"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/entities"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/infrastructure/metrics"
)

// Factory launches ListenerTasks sharing one backend, resolver and sink
type Factory struct {
	backend      deps.Backend
	resolver     deps.GroupResolver
	sink         deps.MessageSink
	metrics      *metrics.Metrics
	closeTimeout time.Duration
	logger       zerolog.Logger
}

func NewFactory(
	backend deps.Backend,
	resolver deps.GroupResolver,
	sink deps.MessageSink,
	cfg *config.ListenerConfig,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Factory {
	return &Factory{
		backend:      backend,
		resolver:     resolver,
		sink:         sink,
		metrics:      m,
		closeTimeout: cfg.CloseTimeout,
		logger:       logger.With().Str("component", "listener_task").Logger(),
	}
}

// Spawn starts a task bound to ctx; cancelling ctx stops the task
func (f *Factory) Spawn(ctx context.Context, cfg entities.AccountConfig, refs []entities.GroupRef) deps.Task {
	t := newListenerTask(ctx, f, cfg, refs)
	go t.run()
	return t
}

// Ensure Factory implements deps.TaskFactory interface
var _ deps.TaskFactory = (*Factory)(nil)

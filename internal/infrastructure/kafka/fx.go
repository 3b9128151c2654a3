package kafka

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/Conte777/NewsFlow/services/listener-service/config"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/deps"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/infrastructure/metrics"
)

// Module provides the capture publisher for fx DI
var Module = fx.Module("kafka",
	fx.Provide(NewCapturePublisherFx),
)

// NewCapturePublisherFx creates a Kafka capture publisher, or a no-op one when Kafka is disabled
func NewCapturePublisherFx(
	lc fx.Lifecycle,
	kafkaCfg *config.KafkaConfig,
	m *metrics.Metrics,
	logger zerolog.Logger,
) (deps.CapturePublisher, error) {
	if !kafkaCfg.Enabled {
		logger.Info().Msg("Kafka publishing disabled")
		return NopPublisher{}, nil
	}

	producer, err := NewCaptureProducer(ProducerConfig{
		Brokers: kafkaCfg.Brokers,
		Topic:   kafkaCfg.TopicCaptured,
		Logger:  logger.With().Str("component", "kafka-producer").Logger(),
		Metrics: m,
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return producer.Close()
		},
	})

	return producer, nil
}

package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/entities"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/infrastructure/metrics"
	"github.com/Conte777/NewsFlow/services/listener-service/pkg/phone"
)

// CaptureProducer publishes captured messages using an asynchronous producer
type CaptureProducer struct {
	producer  sarama.AsyncProducer
	topic     string
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
	closeMu   sync.Mutex
	closed    bool
}

// ProducerConfig holds configuration for Kafka producer
type ProducerConfig struct {
	Brokers    []string
	Topic      string
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
	MaxRetries int // default: 5
}

// NewCaptureProducer creates a Kafka producer.
// Messages are keyed by account and chat so that one chat stays ordered within a partition.
func NewCaptureProducer(cfg ProducerConfig) (*CaptureProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers specified")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true
	config.Producer.RequiredAcks = sarama.WaitForAll // Required for idempotent producer
	config.Net.MaxOpenRequests = 1                   // Required for idempotent producer
	config.Producer.Retry.Max = cfg.MaxRetries
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.ClientID = "listener-service-producer"
	config.Version = sarama.V2_6_0_0

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	p := newCaptureProducer(producer, cfg.Topic, cfg.Logger, cfg.Metrics)

	cfg.Logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("Kafka producer initialized successfully")

	return p, nil
}

func newCaptureProducer(producer sarama.AsyncProducer, topic string, logger zerolog.Logger, m *metrics.Metrics) *CaptureProducer {
	p := &CaptureProducer{
		producer: producer,
		topic:    topic,
		logger:   logger,
		metrics:  m,
	}

	p.wg.Add(2)
	go p.handleSuccesses()
	go p.handleErrors()

	return p
}

// PublishCaptured queues msg for delivery. Delivery errors are reported asynchronously.
func (p *CaptureProducer) PublishCaptured(ctx context.Context, msg entities.CapturedMessage) error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.closed {
		return fmt.Errorf("kafka producer is closed")
	}

	value, err := json.Marshal(CapturedMessageEvent{
		AccountID: msg.AccountID,
		ChatID:    msg.ChatID,
		MessageID: msg.MessageID,
		Timestamp: msg.Timestamp.UTC().Format(entities.LogTimeLayout),
		Text:      msg.Text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal captured message: %w", err)
	}

	pm := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(msg.AccountID + ":" + strconv.FormatInt(msg.ChatID, 10)),
		Value:     sarama.ByteEncoder(value),
		Timestamp: msg.Timestamp.Time,
	}

	select {
	case p.producer.Input() <- pm:
		p.logger.Debug().
			Str("phone", phone.Mask(msg.AccountID)).
			Int64("chat_id", msg.ChatID).
			Int64("message_id", msg.MessageID).
			Msg("Captured message queued for sending to Kafka")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while sending message: %w", ctx.Err())
	}
}

func (p *CaptureProducer) handleSuccesses() {
	defer p.wg.Done()

	for msg := range p.producer.Successes() {
		if p.metrics != nil {
			p.metrics.RecordPublished()
		}
		p.logger.Debug().
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("Message sent to Kafka successfully")
	}
}

func (p *CaptureProducer) handleErrors() {
	defer p.wg.Done()

	for producerErr := range p.producer.Errors() {
		if p.metrics != nil {
			p.metrics.RecordPublishError(errorType(producerErr.Err))
		}
		p.logger.Error().
			Err(producerErr.Err).
			Str("topic", producerErr.Msg.Topic).
			Interface("key", producerErr.Msg.Key).
			Msg("Failed to send message to Kafka")
	}
}

func errorType(err error) string {
	switch err {
	case sarama.ErrOutOfBrokers:
		return "out_of_brokers"
	case sarama.ErrMessageSizeTooLarge:
		return "message_too_large"
	case sarama.ErrNotLeaderForPartition:
		return "not_leader"
	default:
		return "other"
	}
}

// Close flushes pending messages with a default 10-second timeout
func (p *CaptureProducer) Close() error {
	return p.CloseWithTimeout(10 * time.Second)
}

// CloseWithTimeout closes the producer and waits for the response handlers
func (p *CaptureProducer) CloseWithTimeout(timeout time.Duration) error {
	p.closeOnce.Do(func() {
		p.logger.Info().Dur("timeout", timeout).Msg("Closing Kafka producer")

		p.closeMu.Lock()
		p.closed = true
		p.closeMu.Unlock()

		if err := p.producer.Close(); err != nil {
			p.closeErr = fmt.Errorf("producer close failed: %w", err)
		}

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(timeout):
			if p.closeErr == nil {
				p.closeErr = fmt.Errorf("timeout waiting for kafka handlers after %s", timeout)
			}
		}
	})
	return p.closeErr
}

// NopPublisher is used when Kafka publishing is disabled
type NopPublisher struct{}

func (NopPublisher) PublishCaptured(context.Context, entities.CapturedMessage) error { return nil }

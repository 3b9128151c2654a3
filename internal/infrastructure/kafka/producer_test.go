package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/entities"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/infrastructure/metrics"
)

func mockConfig() *sarama.Config {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	return cfg
}

func testMessage() entities.CapturedMessage {
	return entities.CapturedMessage{
		AccountID: "+10000000001",
		ChatID:    111,
		MessageID: 1,
		Timestamp: entities.NewLogTime(time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)),
		Text:      "hello",
	}
}

func TestNewCaptureProducer_Validation(t *testing.T) {
	_, err := NewCaptureProducer(ProducerConfig{Topic: "messages.captured", Logger: zerolog.Nop()})
	require.EqualError(t, err, "no kafka brokers specified")

	_, err = NewCaptureProducer(ProducerConfig{Brokers: []string{"localhost:9092"}, Logger: zerolog.Nop()})
	require.EqualError(t, err, "kafka topic is required")
}

func TestCaptureProducer_PublishCaptured(t *testing.T) {
	mockProducer := mocks.NewAsyncProducer(t, mockConfig())
	mockProducer.ExpectInputWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "+10000000001:111" {
			return errors.New("unexpected key " + string(key))
		}

		raw, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var ev CapturedMessageEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return err
		}
		if ev.AccountID != "+10000000001" || ev.ChatID != 111 || ev.MessageID != 1 ||
			ev.Timestamp != "2024-05-01T12:30:00" || ev.Text != "hello" {
			return errors.New("unexpected payload " + string(raw))
		}
		return nil
	})

	p := newCaptureProducer(mockProducer, "messages.captured", zerolog.Nop(), metrics.GetDefaultMetrics())

	require.NoError(t, p.PublishCaptured(context.Background(), testMessage()))
	require.NoError(t, p.Close())
}

func TestCaptureProducer_DeliveryErrorIsAsync(t *testing.T) {
	mockProducer := mocks.NewAsyncProducer(t, mockConfig())
	mockProducer.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	p := newCaptureProducer(mockProducer, "messages.captured", zerolog.Nop(), metrics.GetDefaultMetrics())

	// Queueing succeeds, the failure is only logged and counted
	assert.NoError(t, p.PublishCaptured(context.Background(), testMessage()))
	assert.NoError(t, p.Close())
}

func TestCaptureProducer_PublishAfterClose(t *testing.T) {
	mockProducer := mocks.NewAsyncProducer(t, mockConfig())
	p := newCaptureProducer(mockProducer, "messages.captured", zerolog.Nop(), nil)

	require.NoError(t, p.Close())
	// Close is idempotent
	require.NoError(t, p.Close())

	assert.Error(t, p.PublishCaptured(context.Background(), testMessage()))
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.PublishCaptured(context.Background(), testMessage()))
}

package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/deps"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/entities"
)

// Session is one connected MTProto client
type Session struct {
	runner       *runner
	api          *tg.Client
	storage      *MemorySessionStorage
	dispatcher   tg.UpdateDispatcher
	gaps         *updates.Manager
	updatesStart chan *tg.User
	eventBuffer  int
	logger       zerolog.Logger

	mu        sync.RWMutex
	sub       *subscription
	started   bool
	closeOnce sync.Once
	closeErr  error
}

// run is the body of client.Run: idle until updates are requested, then drive the gap manager
func (s *Session) run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case self := <-s.updatesStart:
		s.logger.Debug().Int64("user_id", self.ID).Msg("starting updates manager")
		return s.gaps.Run(ctx, s.api, self.ID, updates.AuthOptions{
			IsBot: self.Bot,
		})
	}
}

// IsAuthorized checks the restored session against Telegram
func (s *Session) IsAuthorized(ctx context.Context) (bool, error) {
	status, err := s.runner.client.Auth().Status(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check auth status: %w", err)
	}
	return status.Authorized, nil
}

// Subscribe starts delivering new messages of chats. A new subscription replaces the previous one.
func (s *Session) Subscribe(ctx context.Context, chats []entities.Chat) (deps.Subscription, error) {
	sub := newSubscription(chats, s.eventBuffer)

	s.mu.Lock()
	old := s.sub
	s.sub = sub
	needStart := !s.started
	s.started = true
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}

	if needStart {
		self, err := s.runner.client.Self(ctx)
		if err != nil {
			s.mu.Lock()
			s.started = false
			s.sub = nil
			s.mu.Unlock()
			return nil, fmt.Errorf("failed to get self: %w", err)
		}
		s.updatesStart <- self
	}

	s.logger.Info().Int("chats", len(chats)).Msg("subscribed to new messages")
	return sub, nil
}

// deliver converts an update message and hands it to the current subscription
func (s *Session) deliver(ctx context.Context, m tg.MessageClass) {
	msg, ok := m.(*tg.Message)
	if !ok {
		return
	}
	chatID, ok := markedPeerID(msg.PeerID)
	if !ok {
		return
	}

	s.mu.RLock()
	sub := s.sub
	s.mu.RUnlock()
	if sub == nil || !sub.wants(chatID) {
		return
	}

	sub.push(ctx, entities.Event{
		ChatID:    chatID,
		MessageID: int64(msg.ID),
		Timestamp: time.Unix(int64(msg.Date), 0).UTC(),
		Text:      msg.Message,
	})
}

// Done is closed when the underlying client stopped
func (s *Session) Done() <-chan struct{} {
	return s.runner.done
}

// Err reports why the client stopped
func (s *Session) Err() error {
	return s.runner.Err()
}

// Close stops the client, waiting at most until ctx expires. Safe to call repeatedly.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		sub := s.sub
		s.sub = nil
		s.mu.Unlock()
		if sub != nil {
			sub.Close()
		}

		s.closeErr = s.runner.stop(ctx)
		if s.closeErr != nil {
			s.logger.Warn().Err(s.closeErr).Msg("Telegram client shutdown timed out")
		} else {
			s.logger.Info().Msg("disconnected from Telegram")
		}
	})
	return s.closeErr
}

// Token exports the current session data
func (s *Session) Token() string {
	return s.storage.Token()
}

// subscription filters delivered messages to a chat set
type subscription struct {
	chats     map[int64]struct{}
	events    chan entities.Event
	done      chan struct{}
	closeOnce sync.Once
}

func newSubscription(chats []entities.Chat, buffer int) *subscription {
	if buffer <= 0 {
		buffer = 1
	}
	set := make(map[int64]struct{}, len(chats))
	for _, c := range chats {
		set[c.MarkedID()] = struct{}{}
	}
	return &subscription{
		chats:  set,
		events: make(chan entities.Event, buffer),
		done:   make(chan struct{}),
	}
}

func (s *subscription) wants(chatID int64) bool {
	_, ok := s.chats[chatID]
	return ok
}

// push blocks while the buffer is full, applying backpressure to update handling
func (s *subscription) push(ctx context.Context, ev entities.Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	case <-ctx.Done():
	}
}

// Events is never closed; consumers watch the session's Done channel for loss
func (s *subscription) Events() <-chan entities.Event {
	return s.events
}

func (s *subscription) Err() error {
	return nil
}

func (s *subscription) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Ensure Session implements deps.BackendSession interface
var _ deps.BackendSession = (*Session)(nil)

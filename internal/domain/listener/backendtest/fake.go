// Package backendtest provides an in-memory messaging backend for tests.
package backendtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/deps"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/entities"
)

// ErrNotResolvable is returned by ResolveEntity for unknown references
var ErrNotResolvable = errors.New("entity not found")

// Backend hands out Sessions sharing the same dialogs and entities
type Backend struct {
	mu sync.Mutex

	// Unauthorized makes every new session report IsAuthorized false
	Unauthorized bool
	ConnectErr   error
	Dialogs      []entities.Chat
	DialogsErr   error
	// Entities answers ResolveEntity for refs missing from Dialogs
	Entities map[entities.GroupRef]entities.Chat

	sessions  []*Session
	connected chan *Session
}

func NewBackend() *Backend {
	return &Backend{
		Entities:  make(map[entities.GroupRef]entities.Chat),
		connected: make(chan *Session, 64),
	}
}

func (b *Backend) Connect(ctx context.Context, creds entities.Credentials) (deps.BackendSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ConnectErr != nil {
		return nil, b.ConnectErr
	}

	entitiesCopy := make(map[entities.GroupRef]entities.Chat, len(b.Entities))
	for k, v := range b.Entities {
		entitiesCopy[k] = v
	}
	s := &Session{
		Creds:      creds,
		authorized: !b.Unauthorized,
		dialogs:    append([]entities.Chat(nil), b.Dialogs...),
		dialogsErr: b.DialogsErr,
		entities:   entitiesCopy,
		events:     make(chan entities.Event, 64),
		done:       make(chan struct{}),
		subscribed: make(chan struct{}),
	}
	b.sessions = append(b.sessions, s)
	select {
	case b.connected <- s:
	default:
	}
	return s, nil
}

// Sessions returns every session opened so far
func (b *Backend) Sessions() []*Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Session(nil), b.sessions...)
}

// Connected delivers sessions in the order they were opened
func (b *Backend) Connected() <-chan *Session {
	return b.connected
}

// Session is a fake backend connection
type Session struct {
	Creds entities.Credentials

	mu         sync.Mutex
	authorized bool
	dialogs    []entities.Chat
	dialogsErr error
	entities   map[entities.GroupRef]entities.Chat

	listCalls    int
	resolveCalls []entities.GroupRef
	chats        map[int64]struct{}

	events        chan entities.Event
	subscribed    chan struct{}
	subscribeOnce sync.Once

	done      chan struct{}
	doneOnce  sync.Once
	err       error
	closed    bool
	closeHook func()
}

func (s *Session) IsAuthorized(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authorized, nil
}

func (s *Session) ListDialogs(ctx context.Context) ([]entities.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.dialogsErr != nil {
		return nil, s.dialogsErr
	}
	return append([]entities.Chat(nil), s.dialogs...), nil
}

func (s *Session) ResolveEntity(ctx context.Context, ref entities.GroupRef) (entities.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolveCalls = append(s.resolveCalls, ref)
	if c, ok := s.entities[ref]; ok {
		return c, nil
	}
	return entities.Chat{}, fmt.Errorf("%w: %s", ErrNotResolvable, ref)
}

func (s *Session) Subscribe(ctx context.Context, chats []entities.Chat) (deps.Subscription, error) {
	s.mu.Lock()
	s.chats = make(map[int64]struct{}, len(chats))
	for _, c := range chats {
		s.chats[c.MarkedID()] = struct{}{}
	}
	s.mu.Unlock()

	s.subscribeOnce.Do(func() { close(s.subscribed) })
	return &subscription{events: s.events}, nil
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	hook := s.closeHook
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	s.doneOnce.Do(func() { close(s.done) })
	return nil
}

// Subscribed is closed after the first Subscribe call
func (s *Session) Subscribed() <-chan struct{} {
	return s.subscribed
}

// SubscribedChats returns the marked ids of the current subscription
func (s *Session) SubscribedChats() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.chats))
	for id := range s.chats {
		ids = append(ids, id)
	}
	return ids
}

// Emit delivers ev if its chat is subscribed, reporting whether it was delivered
func (s *Session) Emit(ev entities.Event) bool {
	s.mu.Lock()
	_, ok := s.chats[ev.ChatID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.events <- ev
	return true
}

// CloseStream ends the event stream without closing the connection
func (s *Session) CloseStream() {
	close(s.events)
}

// Drop simulates a lost connection
func (s *Session) Drop(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.doneOnce.Do(func() { close(s.done) })
}

// OnClose registers fn to run inside Close
func (s *Session) OnClose(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeHook = fn
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) ListCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

func (s *Session) ResolveCalls() []entities.GroupRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entities.GroupRef(nil), s.resolveCalls...)
}

type subscription struct {
	events chan entities.Event
}

func (s *subscription) Events() <-chan entities.Event { return s.events }
func (s *subscription) Err() error                    { return nil }
func (s *subscription) Close()                        {}

var (
	_ deps.Backend        = (*Backend)(nil)
	_ deps.BackendSession = (*Session)(nil)
)

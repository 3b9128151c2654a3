package workers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/deps"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/entities"
	listenererrors "github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/errors"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/infrastructure/metrics"
	"github.com/Conte777/NewsFlow/services/listener-service/pkg/phone"
)

// Failure stages reported to metrics
const (
	stageConnect      = "connect"
	stageAuthenticate = "authenticate"
	stageSubscribe    = "subscribe"
	stageListen       = "listen"
	stagePanic        = "panic"
)

// taskFailure carries the stage a task failed in
type taskFailure struct {
	stage string
	err   error
}

// ListenerTask captures new messages of one account until it is stopped or its connection fails.
// It never restarts itself.
type ListenerTask struct {
	id           string
	accountID    string
	creds        entities.Credentials
	refs         []entities.GroupRef
	backend      deps.Backend
	resolver     deps.GroupResolver
	sink         deps.MessageSink
	metrics      *metrics.Metrics
	closeTimeout time.Duration
	logger       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	state    atomic.Value
	resolved atomic.Int64

	mu      sync.Mutex
	session deps.BackendSession
	forced  bool
	err     error
}

func newListenerTask(ctx context.Context, f *Factory, cfg entities.AccountConfig, refs []entities.GroupRef) *ListenerTask {
	id := uuid.NewString()
	taskCtx, cancel := context.WithCancel(ctx)

	t := &ListenerTask{
		id:           id,
		accountID:    cfg.AccountID,
		creds:        entities.CredentialsOf(&cfg),
		refs:         entities.NormalizeRefs(refs),
		backend:      f.backend,
		resolver:     f.resolver,
		sink:         f.sink,
		metrics:      f.metrics,
		closeTimeout: f.closeTimeout,
		logger: f.logger.With().
			Str("task_id", id).
			Str("phone", phone.Mask(cfg.AccountID)).
			Logger(),
		ctx:    taskCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	t.state.Store(entities.StateStarting)
	return t
}

func (t *ListenerTask) ID() string { return t.id }

func (t *ListenerTask) State() entities.ListenerState {
	return t.state.Load().(entities.ListenerState)
}

// Resolved returns the number of chats the task subscribed to
func (t *ListenerTask) Resolved() int {
	return int(t.resolved.Load())
}

func (t *ListenerTask) Done() <-chan struct{} { return t.done }

// Err returns the failure cause once the task is done, nil when it ended normally
func (t *ListenerTask) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Stop requests cancellation; it does not wait
func (t *ListenerTask) Stop() {
	t.cancel()
}

// ForceClose cancels the task and closes its backend connection from the caller's goroutine
func (t *ListenerTask) ForceClose() {
	t.cancel()

	t.mu.Lock()
	t.forced = true
	session := t.session
	t.mu.Unlock()

	if session != nil {
		t.logger.Warn().Msg("force closing backend connection")
		t.closeSession(session)
	}
}

func (t *ListenerTask) setState(s entities.ListenerState) {
	prev := t.State()
	t.state.Store(s)
	t.logger.Debug().Str("from", string(prev)).Str("to", string(s)).Msg("listener state changed")
}

// attach records the open session; a session opened after ForceClose is closed right away
func (t *ListenerTask) attach(session deps.BackendSession) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.forced {
		return false
	}
	t.session = session
	return true
}

func (t *ListenerTask) closeSession(session deps.BackendSession) {
	ctx, cancel := context.WithTimeout(context.Background(), t.closeTimeout)
	defer cancel()

	if err := session.Close(ctx); err != nil {
		t.logger.Warn().Err(err).Msg("failed to close backend connection")
	}
}

func (t *ListenerTask) run() {
	defer close(t.done)
	defer t.cancel()

	t.logger.Info().Int("groups", len(t.refs)).Msg("listener task started")

	session, failure := t.execute()

	if failure == nil {
		t.setState(entities.StateStopping)
	}
	if session != nil {
		t.closeSession(session)
	}

	if failure != nil {
		t.mu.Lock()
		t.err = failure.err
		t.mu.Unlock()
		t.setState(entities.StateFailed)
		if t.metrics != nil {
			t.metrics.RecordListenerFailure(failure.stage)
		}
		t.logger.Error().Err(failure.err).Str("stage", failure.stage).Msg("listener task failed")
		return
	}

	t.setState(entities.StateEnded)
	t.logger.Info().Msg("listener task ended")
}

// execute drives the task through its states. It returns the opened session,
// if any, and a non-nil failure unless the task was cancelled.
func (t *ListenerTask) execute() (session deps.BackendSession, failure *taskFailure) {
	defer func() {
		if r := recover(); r != nil {
			failure = &taskFailure{
				stage: stagePanic,
				err:   listenererrors.ErrListenerPanic.Wrap(fmt.Errorf("%v", r)),
			}
		}
	}()

	ctx := t.ctx

	t.setState(entities.StateAuthenticating)
	s, err := t.backend.Connect(ctx, t.creds)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, &taskFailure{stage: stageConnect, err: listenererrors.ErrConnectFailed.Wrap(err)}
	}
	if !t.attach(s) {
		return s, nil
	}
	session = s

	authorized, err := session.IsAuthorized(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return session, nil
		}
		return session, &taskFailure{stage: stageAuthenticate, err: listenererrors.ErrConnectFailed.Wrap(err)}
	}
	if !authorized {
		return session, &taskFailure{stage: stageAuthenticate, err: listenererrors.ErrSessionInvalid}
	}

	t.setState(entities.StateResolving)
	groups := t.resolver.Resolve(ctx, session, t.refs)
	t.resolved.Store(int64(len(groups)))
	if ctx.Err() != nil {
		return session, nil
	}

	t.setState(entities.StateListening)

	if len(groups) == 0 {
		t.logger.Warn().Msg("no groups resolved, listener is idle")
		select {
		case <-ctx.Done():
			return session, nil
		case <-session.Done():
			return session, t.connectionLost(ctx, session)
		}
	}

	chats := make([]entities.Chat, 0, len(groups))
	for _, g := range groups {
		chats = append(chats, g.Chat)
	}

	sub, err := session.Subscribe(ctx, chats)
	if err != nil {
		if ctx.Err() != nil {
			return session, nil
		}
		return session, &taskFailure{stage: stageSubscribe, err: listenererrors.ErrConnectFailed.Wrap(err)}
	}
	defer sub.Close()

	t.logger.Info().Int("chats", len(chats)).Msg("listening for new messages")

	for {
		select {
		case <-ctx.Done():
			return session, nil
		case <-session.Done():
			return session, t.connectionLost(ctx, session)
		case ev, ok := <-sub.Events():
			if !ok {
				if ctx.Err() != nil {
					return session, nil
				}
				err := error(listenererrors.ErrStreamClosed)
				if cause := sub.Err(); cause != nil {
					err = listenererrors.ErrStreamClosed.Wrap(cause)
				}
				return session, &taskFailure{stage: stageListen, err: err}
			}
			t.handle(ctx, ev)
		}
	}
}

func (t *ListenerTask) connectionLost(ctx context.Context, session deps.BackendSession) *taskFailure {
	if ctx.Err() != nil {
		return nil
	}
	err := error(listenererrors.ErrConnectionLost)
	if cause := session.Err(); cause != nil {
		err = listenererrors.ErrConnectionLost.Wrap(cause)
	}
	return &taskFailure{stage: stageListen, err: err}
}

func (t *ListenerTask) handle(ctx context.Context, ev entities.Event) {
	msg := entities.MessageFromEvent(t.accountID, ev)

	appended, err := t.sink.Append(ctx, t.accountID, msg)
	if err != nil {
		t.logger.Error().
			Err(err).
			Int64("chat_id", msg.ChatID).
			Int64("message_id", msg.MessageID).
			Msg("failed to store message")
		return
	}

	t.logger.Debug().
		Int64("chat_id", msg.ChatID).
		Int64("message_id", msg.MessageID).
		Bool("appended", appended).
		Msg("message captured")
}

// Ensure ListenerTask implements deps.Task interface
var _ deps.Task = (*ListenerTask)(nil)

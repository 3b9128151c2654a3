package business

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Conte777/NewsFlow/services/listener-service/config"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/deps"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/entities"
	listenererrors "github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/errors"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/infrastructure/metrics"
	"github.com/Conte777/NewsFlow/services/listener-service/pkg/phone"
)

// listenerHandle is the registry's record of a spawned task
type listenerHandle struct {
	task      deps.Task
	refs      []entities.GroupRef
	startedAt time.Time
}

func (h *listenerHandle) live() bool {
	select {
	case <-h.task.Done():
		return false
	default:
		return true
	}
}

// UseCase is the listener registry: it owns the account -> task map and
// serializes every start and stop of one account.
type UseCase struct {
	store       deps.AccountStore
	sink        deps.MessageSink
	factory     deps.TaskFactory
	gracePeriod time.Duration
	metrics     *metrics.Metrics
	logger      zerolog.Logger

	baseCtx   context.Context
	cancelAll context.CancelFunc

	mu         sync.Mutex
	handles    map[string]*listenerHandle
	locks      map[string]*sync.Mutex
	lastErrors map[string]string
	closed     bool
}

// NewUseCase creates a new listener use case
func NewUseCase(
	store deps.AccountStore,
	sink deps.MessageSink,
	factory deps.TaskFactory,
	cfg *config.ListenerConfig,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *UseCase {
	ctx, cancel := context.WithCancel(context.Background())

	return &UseCase{
		store:       store,
		sink:        sink,
		factory:     factory,
		gracePeriod: cfg.GracePeriod,
		metrics:     m,
		logger:      logger.With().Str("component", "listener_registry").Logger(),
		baseCtx:     ctx,
		cancelAll:   cancel,
		handles:     make(map[string]*listenerHandle),
		locks:       make(map[string]*sync.Mutex),
		lastErrors:  make(map[string]string),
	}
}

func (u *UseCase) accountLock(accountID string) *sync.Mutex {
	u.mu.Lock()
	defer u.mu.Unlock()

	l, ok := u.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		u.locks[accountID] = l
	}
	return l
}

func (u *UseCase) handle(accountID string) *listenerHandle {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.handles[accountID]
}

// removeHandle drops the handle only if it still belongs to task
func (u *UseCase) removeHandle(accountID string, task deps.Task) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if h, ok := u.handles[accountID]; ok && h.task.ID() == task.ID() {
		delete(u.handles, accountID)
	}
	u.updateGaugeLocked()
}

func (u *UseCase) updateGaugeLocked() {
	if u.metrics != nil {
		u.metrics.SetRunningListeners(len(u.handles))
	}
}

// Start persists the group selection and makes sure a listener runs with exactly that selection.
// It returns StatusAlreadyRunning when a live listener already uses the same groups.
func (u *UseCase) Start(ctx context.Context, accountID string, refs []entities.GroupRef) (string, error) {
	if !phone.IsValidAccountID(accountID) {
		return "", listenererrors.ErrInvalidAccountID
	}
	refs = entities.NormalizeRefs(refs)

	lock := u.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	if u.isClosed() {
		return "", listenererrors.ErrShuttingDown
	}

	log := u.logger.With().Str("phone", phone.Mask(accountID)).Logger()

	cfg, err := u.store.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, listenererrors.ErrAccountNotFound) {
			u.recordStart("no_session")
			return "", listenererrors.ErrNoSession
		}
		return "", err
	}
	if !cfg.HasSession() {
		u.recordStart("no_session")
		return "", listenererrors.ErrNoSession
	}

	cfg, err = u.store.Upsert(ctx, accountID, entities.GroupsPatch(refs))
	if err != nil {
		log.Error().Err(err).Msg("failed to persist groups")
		return "", err
	}

	if h := u.handle(accountID); h != nil {
		if h.live() && entities.SameRefs(h.refs, refs) {
			u.recordStart(entities.StatusAlreadyRunning)
			log.Debug().Str("task_id", h.task.ID()).Msg("listener already running with the same groups")
			return entities.StatusAlreadyRunning, nil
		}

		log.Info().Str("task_id", h.task.ID()).Msg("restarting listener with new groups")
		u.stopTask(log, h.task)
		u.removeHandle(accountID, h.task)
	}

	task := u.factory.Spawn(u.baseCtx, *cfg, refs)
	h := &listenerHandle{task: task, refs: refs, startedAt: time.Now().UTC()}

	u.mu.Lock()
	u.handles[accountID] = h
	delete(u.lastErrors, accountID)
	u.updateGaugeLocked()
	u.mu.Unlock()

	go u.watch(accountID, task)

	u.recordStart(entities.StatusStarted)
	log.Info().Str("task_id", task.ID()).Int("groups", len(refs)).Msg("listener started")
	return entities.StatusStarted, nil
}

// Stop cancels the account's listener, waiting at most the grace period
func (u *UseCase) Stop(ctx context.Context, accountID string) (string, error) {
	if !phone.IsValidAccountID(accountID) {
		return "", listenererrors.ErrInvalidAccountID
	}

	lock := u.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	h := u.handle(accountID)
	if h == nil {
		return entities.StatusNotRunning, nil
	}

	log := u.logger.With().Str("phone", phone.Mask(accountID)).Str("task_id", h.task.ID()).Logger()

	u.stopTask(log, h.task)
	u.removeHandle(accountID, h.task)

	if u.metrics != nil {
		u.metrics.RecordStop()
	}
	log.Info().Msg("listener stopped")
	return entities.StatusStopped, nil
}

// stopTask cancels task and waits for it; past the grace period its connection is force closed
func (u *UseCase) stopTask(log zerolog.Logger, task deps.Task) {
	task.Stop()

	timer := time.NewTimer(u.gracePeriod)
	defer timer.Stop()

	select {
	case <-task.Done():
	case <-timer.C:
		task.ForceClose()
		if u.metrics != nil {
			u.metrics.RecordGraceTimeout()
		}
		log.Warn().
			Dur("grace_period", u.gracePeriod).
			Str("state", string(task.State())).
			Msg("listener did not stop within grace period, backend connection force closed; task may still be running")
	}
}

// watch removes the handle of a task that ended on its own
func (u *UseCase) watch(accountID string, task deps.Task) {
	<-task.Done()

	u.mu.Lock()
	defer u.mu.Unlock()

	h, ok := u.handles[accountID]
	if !ok || h.task.ID() != task.ID() {
		return
	}
	delete(u.handles, accountID)
	if err := task.Err(); err != nil {
		u.lastErrors[accountID] = err.Error()
	}
	u.updateGaugeLocked()

	event := u.logger.Debug()
	if task.Err() != nil {
		event = u.logger.Warn().Err(task.Err())
	}
	event.
		Str("phone", phone.Mask(accountID)).
		Str("task_id", task.ID()).
		Str("state", string(task.State())).
		Msg("listener exited, handle removed")
}

// Status reports the account's listener; a missing handle reads as not running
func (u *UseCase) Status(accountID string) entities.ListenerStatus {
	u.mu.Lock()
	defer u.mu.Unlock()

	status := entities.ListenerStatus{
		AccountID: accountID,
		LastError: u.lastErrors[accountID],
	}

	h, ok := u.handles[accountID]
	if !ok {
		return status
	}

	status.Running = h.live()
	status.TaskID = h.task.ID()
	status.State = h.task.State()
	status.Groups = append([]entities.GroupRef{}, h.refs...)
	status.Resolved = h.task.Resolved()
	status.StartedAt = h.startedAt
	if err := h.task.Err(); err != nil {
		status.LastError = err.Error()
	}
	return status
}

// Running returns the number of live listeners
func (u *UseCase) Running() int {
	u.mu.Lock()
	defer u.mu.Unlock()

	n := 0
	for _, h := range u.handles {
		if h.live() {
			n++
		}
	}
	return n
}

// GetData returns the captured messages of the account
func (u *UseCase) GetData(ctx context.Context, accountID string) ([]entities.CapturedMessage, error) {
	if !phone.IsValidAccountID(accountID) {
		return nil, listenererrors.ErrInvalidAccountID
	}
	return u.sink.ReadAll(ctx, accountID)
}

// Shutdown rejects new starts and stops every listener. Tasks still running
// when ctx or the grace period expires are force closed.
func (u *UseCase) Shutdown(ctx context.Context) {
	u.mu.Lock()
	u.closed = true
	handles := make(map[string]*listenerHandle, len(u.handles))
	for id, h := range u.handles {
		handles[id] = h
	}
	u.mu.Unlock()

	if len(handles) > 0 {
		u.logger.Info().Int("listeners", len(handles)).Msg("stopping all listeners")
	}

	u.cancelAll()
	for _, h := range handles {
		h.task.Stop()
	}

	deadline := time.After(u.gracePeriod)
	expired := false

	for id, h := range handles {
		if !expired {
			select {
			case <-h.task.Done():
			case <-ctx.Done():
				expired = true
			case <-deadline:
				expired = true
			}
		}
		if expired && h.live() {
			h.task.ForceClose()
		}
		u.removeHandle(id, h.task)
	}
}

func (u *UseCase) isClosed() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.closed
}

func (u *UseCase) recordStart(outcome string) {
	if u.metrics != nil {
		u.metrics.RecordStart(outcome)
	}
}

// Ensure UseCase implements deps.ListenerRegistry interface
var _ deps.ListenerRegistry = (*UseCase)(nil)

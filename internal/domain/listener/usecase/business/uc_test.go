package business

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conte777/NewsFlow/services/listener-service/config"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/deps"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/entities"
	listenererrors "github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/errors"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/repository/file"
)

const (
	testAccount = "+10000000001"
	waitFor     = 2 * time.Second
)

type fakeTask struct {
	id         string
	refs       []entities.GroupRef
	ignoreStop bool

	done      chan struct{}
	closeOnce sync.Once
	stopped   atomic.Bool
	forced    atomic.Bool
	err       atomic.Value
}

func (t *fakeTask) ID() string { return t.id }

func (t *fakeTask) State() entities.ListenerState {
	select {
	case <-t.done:
		if t.Err() != nil {
			return entities.StateFailed
		}
		return entities.StateEnded
	default:
		return entities.StateListening
	}
}

func (t *fakeTask) Resolved() int         { return len(t.refs) }
func (t *fakeTask) Done() <-chan struct{} { return t.done }

func (t *fakeTask) Err() error {
	if err, ok := t.err.Load().(error); ok {
		return err
	}
	return nil
}

func (t *fakeTask) Stop() {
	t.stopped.Store(true)
	if !t.ignoreStop {
		t.finish(nil)
	}
}

func (t *fakeTask) ForceClose() {
	t.forced.Store(true)
	t.finish(nil)
}

func (t *fakeTask) finish(err error) {
	t.closeOnce.Do(func() {
		if err != nil {
			t.err.Store(err)
		}
		close(t.done)
	})
}

type fakeFactory struct {
	mu         sync.Mutex
	tasks      []*fakeTask
	ignoreStop bool
	overlaps   int
}

func (f *fakeFactory) Spawn(ctx context.Context, cfg entities.AccountConfig, refs []entities.GroupRef) deps.Task {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, prev := range f.tasks {
		if prev.State() == entities.StateListening {
			f.overlaps++
		}
	}
	t := &fakeTask{id: uuid.NewString(), refs: refs, ignoreStop: f.ignoreStop, done: make(chan struct{})}
	f.tasks = append(f.tasks, t)
	return t
}

func (f *fakeFactory) spawned() []*fakeTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeTask(nil), f.tasks...)
}

type fixture struct {
	uc      *UseCase
	store   *file.AccountStore
	sink    *file.MessageSink
	factory *fakeFactory
}

func newFixture(t *testing.T, grace time.Duration) *fixture {
	t.Helper()
	dir := t.TempDir()

	store, err := file.NewAccountStore(dir, zerolog.Nop())
	require.NoError(t, err)
	sink, err := file.NewMessageSink(dir, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	factory := &fakeFactory{}
	uc := NewUseCase(store, sink, factory, &config.ListenerConfig{GracePeriod: grace}, nil, zerolog.Nop())
	t.Cleanup(func() { uc.Shutdown(context.Background()) })

	return &fixture{uc: uc, store: store, sink: sink, factory: factory}
}

func (f *fixture) withSession(t *testing.T, accountID string) {
	t.Helper()
	token := "session-token"
	_, err := f.store.Upsert(context.Background(), accountID, entities.AccountPatch{SessionToken: &token})
	require.NoError(t, err)
}

func ids(values ...int64) []entities.GroupRef {
	refs := make([]entities.GroupRef, 0, len(values))
	for _, v := range values {
		refs = append(refs, entities.GroupRef{ID: v})
	}
	return refs
}

func TestStart_WithoutSession(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()

	_, err := f.uc.Start(ctx, testAccount, ids(111))
	assert.ErrorIs(t, err, listenererrors.ErrNoSession)

	_, err = f.store.Upsert(ctx, testAccount, entities.AccountPatch{Groups: []int64{}})
	require.NoError(t, err)
	_, err = f.uc.Start(ctx, testAccount, ids(111))
	assert.ErrorIs(t, err, listenererrors.ErrNoSession)

	assert.Empty(t, f.factory.spawned())
	assert.False(t, f.uc.Status(testAccount).Running)
}

func TestStart_InvalidAccountID(t *testing.T) {
	f := newFixture(t, time.Second)

	_, err := f.uc.Start(context.Background(), "../../etc", ids(1))
	assert.ErrorIs(t, err, listenererrors.ErrInvalidAccountID)

	_, err = f.uc.Stop(context.Background(), "")
	assert.ErrorIs(t, err, listenererrors.ErrInvalidAccountID)
}

func TestStart_IsIdempotentForSameGroups(t *testing.T) {
	f := newFixture(t, time.Second)
	f.withSession(t, testAccount)
	ctx := context.Background()

	status, err := f.uc.Start(ctx, testAccount, ids(222, 111))
	require.NoError(t, err)
	assert.Equal(t, entities.StatusStarted, status)

	status, err = f.uc.Start(ctx, testAccount, ids(111, 222, 111))
	require.NoError(t, err)
	assert.Equal(t, entities.StatusAlreadyRunning, status)

	assert.Len(t, f.factory.spawned(), 1)
	assert.Equal(t, 1, f.uc.Running())

	cfg, err := f.store.Get(ctx, testAccount)
	require.NoError(t, err)
	assert.Equal(t, []int64{111, 222}, cfg.Groups)
}

func TestStart_RestartsWithNewGroups(t *testing.T) {
	f := newFixture(t, time.Second)
	f.withSession(t, testAccount)
	ctx := context.Background()

	_, err := f.uc.Start(ctx, testAccount, ids(111))
	require.NoError(t, err)
	status, err := f.uc.Start(ctx, testAccount, ids(111, 222))
	require.NoError(t, err)
	assert.Equal(t, entities.StatusStarted, status)

	tasks := f.factory.spawned()
	require.Len(t, tasks, 2)
	assert.NotEqual(t, tasks[0].ID(), tasks[1].ID())
	assert.True(t, tasks[0].stopped.Load())
	assert.False(t, tasks[0].forced.Load())
	assert.Equal(t, entities.StateEnded, tasks[0].State())
	assert.Equal(t, ids(111, 222), tasks[1].refs)

	st := f.uc.Status(testAccount)
	assert.True(t, st.Running)
	assert.Equal(t, tasks[1].ID(), st.TaskID)
	assert.Equal(t, ids(111, 222), st.Groups)
}

func TestStart_GraceTimeoutForceClosesOldTask(t *testing.T) {
	f := newFixture(t, 50*time.Millisecond)
	f.factory.ignoreStop = true
	f.withSession(t, testAccount)
	ctx := context.Background()

	_, err := f.uc.Start(ctx, testAccount, ids(111))
	require.NoError(t, err)

	begin := time.Now()
	status, err := f.uc.Start(ctx, testAccount, ids(222))
	require.NoError(t, err)
	assert.Equal(t, entities.StatusStarted, status)
	assert.GreaterOrEqual(t, time.Since(begin), 50*time.Millisecond)
	assert.Less(t, time.Since(begin), waitFor)

	tasks := f.factory.spawned()
	require.Len(t, tasks, 2)
	assert.True(t, tasks[0].forced.Load())
	assert.Equal(t, 0, f.factory.overlaps)
}

func TestStart_PersistsGroupsWhenAlreadyRunning(t *testing.T) {
	f := newFixture(t, time.Second)
	f.withSession(t, testAccount)
	ctx := context.Background()

	_, err := f.uc.Start(ctx, testAccount, []entities.GroupRef{{ID: 1}, {Username: "news"}})
	require.NoError(t, err)

	// overwrite the stored selection behind the registry's back
	_, err = f.store.Upsert(ctx, testAccount, entities.AccountPatch{Groups: []int64{9}, GroupAliases: []string{}})
	require.NoError(t, err)

	status, err := f.uc.Start(ctx, testAccount, []entities.GroupRef{{Username: "NEWS"}, {ID: 1}})
	require.NoError(t, err)
	assert.Equal(t, entities.StatusAlreadyRunning, status)

	cfg, err := f.store.Get(ctx, testAccount)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, cfg.Groups)
	assert.Equal(t, []string{"news"}, cfg.GroupAliases)
}

func TestStop(t *testing.T) {
	f := newFixture(t, time.Second)
	f.withSession(t, testAccount)
	ctx := context.Background()

	status, err := f.uc.Stop(ctx, testAccount)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusNotRunning, status)

	_, err = f.uc.Start(ctx, testAccount, ids(111))
	require.NoError(t, err)

	status, err = f.uc.Stop(ctx, testAccount)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusStopped, status)
	assert.False(t, f.uc.Status(testAccount).Running)
	assert.Equal(t, 0, f.uc.Running())

	status, err = f.uc.Stop(ctx, testAccount)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusNotRunning, status)
}

func TestStop_RemovesHandleAfterGraceTimeout(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)
	f.factory.ignoreStop = true
	f.withSession(t, testAccount)
	ctx := context.Background()

	_, err := f.uc.Start(ctx, testAccount, ids(111))
	require.NoError(t, err)

	status, err := f.uc.Stop(ctx, testAccount)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusStopped, status)
	assert.True(t, f.factory.spawned()[0].forced.Load())
	assert.Equal(t, "", f.uc.Status(testAccount).TaskID)
}

func TestWatcher_RemovesFailedTask(t *testing.T) {
	f := newFixture(t, time.Second)
	f.withSession(t, testAccount)
	ctx := context.Background()

	_, err := f.uc.Start(ctx, testAccount, ids(111))
	require.NoError(t, err)

	f.factory.spawned()[0].finish(listenererrors.ErrConnectionLost)

	require.Eventually(t, func() bool {
		return f.uc.Status(testAccount).TaskID == ""
	}, waitFor, 10*time.Millisecond)

	st := f.uc.Status(testAccount)
	assert.False(t, st.Running)
	assert.Equal(t, listenererrors.ErrConnectionLost.Error(), st.LastError)

	// the account stays configured and can be started again with the same groups
	status, err := f.uc.Start(ctx, testAccount, ids(111))
	require.NoError(t, err)
	assert.Equal(t, entities.StatusStarted, status)
	assert.Empty(t, f.uc.Status(testAccount).LastError)
}

func TestConcurrentStartStop_SingleTaskPerAccount(t *testing.T) {
	f := newFixture(t, time.Second)
	f.withSession(t, testAccount)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 3 {
			case 0:
				_, err := f.uc.Stop(ctx, testAccount)
				assert.NoError(t, err)
			default:
				_, err := f.uc.Start(ctx, testAccount, ids(int64(i%4)))
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	live := 0
	for _, task := range f.factory.spawned() {
		if task.State() == entities.StateListening {
			live++
		}
	}
	assert.LessOrEqual(t, live, 1)
	assert.Equal(t, 0, f.factory.overlaps)
	assert.Equal(t, live, f.uc.Running())
}

func TestDifferentAccountsAreIndependent(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("+1000000000%d", i)
		f.withSession(t, id)
		status, err := f.uc.Start(ctx, id, ids(111))
		require.NoError(t, err)
		assert.Equal(t, entities.StatusStarted, status)
	}
	assert.Equal(t, 5, f.uc.Running())
}

func TestShutdown(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)
	f.withSession(t, testAccount)
	ctx := context.Background()

	_, err := f.uc.Start(ctx, testAccount, ids(111))
	require.NoError(t, err)

	f.uc.Shutdown(ctx)
	assert.Equal(t, 0, f.uc.Running())
	assert.Equal(t, entities.StateEnded, f.factory.spawned()[0].State())

	_, err = f.uc.Start(ctx, testAccount, ids(111))
	assert.ErrorIs(t, err, listenererrors.ErrShuttingDown)
}

func TestGetData(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()

	got, err := f.uc.GetData(ctx, testAccount)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, err = f.sink.Append(ctx, testAccount, entities.CapturedMessage{ChatID: 1, MessageID: 1, Text: "x"})
	require.NoError(t, err)

	got, err = f.uc.GetData(ctx, testAccount)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

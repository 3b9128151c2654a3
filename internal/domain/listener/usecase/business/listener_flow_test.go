package business

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conte777/NewsFlow/services/listener-service/config"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/backendtest"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/entities"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/repository/file"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/resolver"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/workers"
)

var (
	group111 = entities.Chat{RawID: 111, Kind: entities.ChatKindChannel, Title: "one-one-one"}
	group222 = entities.Chat{RawID: 222, Kind: entities.ChatKindChannel, Title: "two-two-two"}
)

type flowFixture struct {
	uc      *UseCase
	store   *file.AccountStore
	backend *backendtest.Backend
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.ListenerConfig{GracePeriod: time.Second, CloseTimeout: time.Second, ResolveRate: 1000}

	store, err := file.NewAccountStore(dir, zerolog.Nop())
	require.NoError(t, err)
	sink, err := file.NewMessageSink(dir, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	backend := backendtest.NewBackend()
	backend.Dialogs = []entities.Chat{group111, group222}

	factory := workers.NewFactory(backend, resolver.NewResolver(cfg, nil, zerolog.Nop()), sink, cfg, nil, zerolog.Nop())
	uc := NewUseCase(store, sink, factory, cfg, nil, zerolog.Nop())
	t.Cleanup(func() { uc.Shutdown(context.Background()) })

	token := "session-token"
	_, err = store.Upsert(context.Background(), testAccount, entities.AccountPatch{SessionToken: &token})
	require.NoError(t, err)

	return &flowFixture{uc: uc, store: store, backend: backend}
}

func nextSession(t *testing.T, b *backendtest.Backend) *backendtest.Session {
	t.Helper()
	select {
	case s := <-b.Connected():
		select {
		case <-s.Subscribed():
		case <-time.After(waitFor):
			t.Fatal("listener never subscribed")
		}
		return s
	case <-time.After(waitFor):
		t.Fatal("listener never connected")
		return nil
	}
}

func TestListenerFlow_DuplicateEventsStoredOnce(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	status, err := f.uc.Start(ctx, testAccount, ids(111, 222))
	require.NoError(t, err)
	assert.Equal(t, entities.StatusStarted, status)

	s := nextSession(t, f.backend)
	assert.ElementsMatch(t, []int64{group111.MarkedID(), group222.MarkedID()}, s.SubscribedChats())

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.True(t, s.Emit(entities.Event{ChatID: group111.MarkedID(), MessageID: 1, Timestamp: ts, Text: "first"}))
	require.True(t, s.Emit(entities.Event{ChatID: group111.MarkedID(), MessageID: 1, Timestamp: ts.Add(time.Minute), Text: "again"}))
	require.True(t, s.Emit(entities.Event{ChatID: group222.MarkedID(), MessageID: 2, Timestamp: ts, Text: "other"}))

	require.Eventually(t, func() bool {
		got, err := f.uc.GetData(ctx, testAccount)
		return err == nil && len(got) == 2
	}, waitFor, 10*time.Millisecond)

	got, err := f.uc.GetData(ctx, testAccount)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Text)
	assert.Equal(t, ts, got[0].Timestamp.Time)
	assert.Equal(t, int64(2), got[1].MessageID)
}

func TestListenerFlow_RestartWithMoreGroups(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	_, err := f.uc.Start(ctx, testAccount, ids(111))
	require.NoError(t, err)
	first := nextSession(t, f.backend)
	firstTask := f.uc.Status(testAccount).TaskID
	assert.Equal(t, []int64{group111.MarkedID()}, first.SubscribedChats())

	status, err := f.uc.Start(ctx, testAccount, ids(111, 222))
	require.NoError(t, err)
	assert.Equal(t, entities.StatusStarted, status)

	second := nextSession(t, f.backend)
	assert.ElementsMatch(t, []int64{group111.MarkedID(), group222.MarkedID()}, second.SubscribedChats())
	assert.True(t, first.Closed())
	assert.False(t, second.Closed())

	st := f.uc.Status(testAccount)
	assert.NotEqual(t, firstTask, st.TaskID)
	assert.Equal(t, entities.StateListening, st.State)
	assert.Equal(t, 2, st.Resolved)

	cfg, err := f.store.Get(ctx, testAccount)
	require.NoError(t, err)
	assert.Equal(t, []int64{111, 222}, cfg.Groups)
}

func TestListenerFlow_UnresolvableGroupsAreSkipped(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	_, err := f.uc.Start(ctx, testAccount, ids(111, 999))
	require.NoError(t, err)
	s := nextSession(t, f.backend)
	assert.Equal(t, []int64{group111.MarkedID()}, s.SubscribedChats())
	assert.Equal(t, 1, f.uc.Status(testAccount).Resolved)

	status, err := f.uc.Start(ctx, testAccount, ids(999))
	require.NoError(t, err)
	assert.Equal(t, entities.StatusStarted, status)

	require.Eventually(t, func() bool {
		st := f.uc.Status(testAccount)
		return st.Running && st.State == entities.StateListening
	}, waitFor, 10*time.Millisecond)
	assert.Equal(t, 0, f.uc.Status(testAccount).Resolved)

	sessions := f.backend.Sessions()
	require.Len(t, sessions, 2)
	select {
	case <-sessions[1].Subscribed():
		t.Fatal("idle listener must not subscribe")
	default:
	}
}

func TestListenerFlow_StopReleasesConnection(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	_, err := f.uc.Start(ctx, testAccount, ids(222))
	require.NoError(t, err)
	s := nextSession(t, f.backend)

	status, err := f.uc.Stop(ctx, testAccount)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusStopped, status)
	assert.True(t, s.Closed())
	assert.Equal(t, 0, f.uc.Running())
}

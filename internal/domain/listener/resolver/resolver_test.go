package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conte777/NewsFlow/services/listener-service/config"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/backendtest"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/entities"
)

var (
	newsChannel = entities.Chat{RawID: 1234567890, Kind: entities.ChatKindChannel, Title: "News", Username: "News"}
	basicGroup  = entities.Chat{RawID: 42, Kind: entities.ChatKindChat, Title: "Friends"}
	otherChan   = entities.Chat{RawID: 555, Kind: entities.ChatKindChannel, Title: "Other", Username: "other"}
)

func newTestResolver() *Resolver {
	return NewResolver(&config.ListenerConfig{ResolveRate: 1000}, nil, zerolog.Nop())
}

func connect(t *testing.T, b *backendtest.Backend) *backendtest.Session {
	t.Helper()
	s, err := b.Connect(context.Background(), entities.Credentials{AccountID: "acc"})
	require.NoError(t, err)
	return s.(*backendtest.Session)
}

func chatIDs(groups []entities.ResolvedGroup) []int64 {
	ids := make([]int64, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.Chat.MarkedID())
	}
	return ids
}

func TestResolver_MatchesDialogsByAnyIDFormAndUsername(t *testing.T) {
	b := backendtest.NewBackend()
	b.Dialogs = []entities.Chat{newsChannel, basicGroup}
	s := connect(t, b)

	refs := []entities.GroupRef{
		{ID: -1001234567890},
		{ID: -42},
	}
	got := newTestResolver().Resolve(context.Background(), s, refs)
	assert.ElementsMatch(t, []int64{-42, -1001234567890}, chatIDs(got))

	got = newTestResolver().Resolve(context.Background(), s, []entities.GroupRef{{ID: 42}})
	assert.Equal(t, []int64{-42}, chatIDs(got))

	got = newTestResolver().Resolve(context.Background(), s, []entities.GroupRef{{Username: "news"}})
	assert.Equal(t, []int64{-1001234567890}, chatIDs(got))

	assert.Empty(t, s.ResolveCalls())
}

func TestResolver_FallsBackToEntityLookupForMisses(t *testing.T) {
	b := backendtest.NewBackend()
	b.Dialogs = []entities.Chat{newsChannel}
	b.Entities[entities.GroupRef{Username: "other"}] = otherChan
	s := connect(t, b)

	got := newTestResolver().Resolve(context.Background(), s, []entities.GroupRef{
		{ID: -1001234567890},
		{Username: "other"},
		{Username: "missing"},
	})

	assert.Equal(t, []int64{-1001234567890, -1000000000555}, chatIDs(got))
	assert.Equal(t, 1, s.ListCalls())
	assert.Equal(t, []entities.GroupRef{{Username: "missing"}, {Username: "other"}}, s.ResolveCalls())
}

func TestResolver_DialogFailureDegradesToPerReference(t *testing.T) {
	b := backendtest.NewBackend()
	b.DialogsErr = errors.New("flood wait")
	b.Entities[entities.GroupRef{ID: -42}] = basicGroup
	s := connect(t, b)

	got := newTestResolver().Resolve(context.Background(), s, []entities.GroupRef{{ID: -42}})
	assert.Equal(t, []int64{-42}, chatIDs(got))
	assert.Equal(t, []entities.GroupRef{{ID: -42}}, s.ResolveCalls())
}

func TestResolver_DeduplicatesRefsForTheSameChat(t *testing.T) {
	b := backendtest.NewBackend()
	b.Dialogs = []entities.Chat{newsChannel}
	s := connect(t, b)

	got := newTestResolver().Resolve(context.Background(), s, []entities.GroupRef{
		{ID: -1001234567890},
		{ID: 1234567890},
		{Username: "NEWS"},
		{Username: "news"},
	})
	require.Len(t, got, 1)
	assert.Equal(t, newsChannel.RawID, got[0].Chat.RawID)
}

func TestResolver_NothingResolvable(t *testing.T) {
	b := backendtest.NewBackend()
	s := connect(t, b)

	got := newTestResolver().Resolve(context.Background(), s, []entities.GroupRef{{ID: 1}, {Username: "x"}})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestResolver_EmptyRefsSkipDialogs(t *testing.T) {
	b := backendtest.NewBackend()
	s := connect(t, b)

	got := newTestResolver().Resolve(context.Background(), s, nil)
	assert.Empty(t, got)
	assert.Equal(t, 0, s.ListCalls())
}

func TestResolver_CancelledContextStopsLookups(t *testing.T) {
	b := backendtest.NewBackend()
	b.Entities[entities.GroupRef{ID: -42}] = basicGroup
	s := connect(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewResolver(&config.ListenerConfig{ResolveRate: 0.001}, nil, zerolog.Nop())
	got := r.Resolve(ctx, s, []entities.GroupRef{{ID: -42}, {ID: -43}})
	assert.LessOrEqual(t, len(got), 1)
	assert.LessOrEqual(t, len(s.ResolveCalls()), 1)
}

package telegram

import (
	"context"
	"testing"

	"github.com/gotd/td/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStorage_Empty(t *testing.T) {
	s := NewMemorySessionStorage()

	_, err := s.LoadSession(context.Background())
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.Empty(t, s.Token())
}

func TestMemorySessionStorage_TokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStorage()
	require.NoError(t, s.StoreSession(ctx, []byte(`{"Version":1,"Data":{"DC":2}}`)))

	token := s.Token()
	require.NotEmpty(t, token)

	restored, err := NewMemorySessionStorageFromToken(ctx, token)
	require.NoError(t, err)

	data, err := restored.LoadSession(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Version":1,"Data":{"DC":2}}`, string(data))
}

func TestMemorySessionStorage_StoreCopiesInput(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStorage()
	buf := []byte(`{"a":1}`)
	require.NoError(t, s.StoreSession(ctx, buf))
	buf[0] = 'x'

	data, err := s.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))
}

func TestNewMemorySessionStorageFromToken(t *testing.T) {
	ctx := context.Background()

	s, err := NewMemorySessionStorageFromToken(ctx, "")
	require.NoError(t, err)
	_, err = s.LoadSession(ctx)
	assert.ErrorIs(t, err, session.ErrNotFound)

	_, err = NewMemorySessionStorageFromToken(ctx, "definitely not a session")
	assert.Error(t, err)
}

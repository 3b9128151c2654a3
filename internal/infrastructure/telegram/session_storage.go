package telegram

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/gotd/td/session"
)

// MemorySessionStorage keeps MTProto session data in memory.
// Its content round-trips through the account store as a session token.
type MemorySessionStorage struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemorySessionStorage creates an empty memory session storage
func NewMemorySessionStorage() *MemorySessionStorage {
	return &MemorySessionStorage{}
}

// NewMemorySessionStorageFromToken seeds the storage from a session token.
// Tokens exported by this service and Telethon string sessions are accepted.
func NewMemorySessionStorageFromToken(ctx context.Context, token string) (*MemorySessionStorage, error) {
	s := NewMemorySessionStorage()
	token = strings.TrimSpace(token)
	if token == "" {
		return s, nil
	}

	if raw, err := base64.RawURLEncoding.DecodeString(token); err == nil && json.Valid(raw) {
		s.data = raw
		return s, nil
	}

	data, err := session.TelethonSession(token)
	if err != nil {
		return nil, fmt.Errorf("unrecognized session token: %w", err)
	}
	loader := session.Loader{Storage: s}
	if err := loader.Save(ctx, data); err != nil {
		return nil, fmt.Errorf("failed to import telethon session: %w", err)
	}
	return s, nil
}

// LoadSession loads session data from memory
func (s *MemorySessionStorage) LoadSession(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.data) == 0 {
		return nil, session.ErrNotFound
	}
	return append([]byte(nil), s.data...), nil
}

// StoreSession stores session data in memory
func (s *MemorySessionStorage) StoreSession(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
	return nil
}

// Token exports the current session data, empty when nothing was stored yet
func (s *MemorySessionStorage) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.data) == 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(s.data)
}

// Ensure MemorySessionStorage implements session.Storage interface
var _ session.Storage = (*MemorySessionStorage)(nil)

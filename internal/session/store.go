package session

import (
	"context"
	"sync"
)

type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (t Tokens) Empty() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

// Store keeps the token pair somewhere that outlives a single call. Load
// returns zero Tokens when nothing is stored. DeleteIf removes the pair only
// while it still carries the given refresh token, so a process holding a
// stale pair cannot wipe one rotated by another process.
type Store interface {
	Load(ctx context.Context) (Tokens, error)
	Save(ctx context.Context, tokens Tokens) error
	Delete(ctx context.Context) error
	DeleteIf(ctx context.Context, refreshToken string) (bool, error)
}

type MemoryStore struct {
	mu     sync.Mutex
	tokens Tokens
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(context.Context) (Tokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens, nil
}

func (m *MemoryStore) Save(_ context.Context, tokens Tokens) error {
	m.mu.Lock()
	m.tokens = tokens
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(context.Context) error {
	m.mu.Lock()
	m.tokens = Tokens{}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) DeleteIf(_ context.Context, refreshToken string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens.Empty() || m.tokens.RefreshToken != refreshToken {
		return false, nil
	}
	m.tokens = Tokens{}
	return true, nil
}

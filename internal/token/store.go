// Package token caches challenge tokens per provider and performs the
// multipart token handshake some CDNs require before serving a stream.
package token

import (
	"context"
	"sync"
	"time"
)

// AuthToken is a solved challenge token.
type AuthToken struct {
	Value    string
	IssuedAt time.Time
}

// Fresh reports whether the token is still usable at now under ttl.
func (t AuthToken) Fresh(now time.Time, ttl time.Duration) bool {
	return t.Value != "" && now.Sub(t.IssuedAt) < ttl
}

// Store persists tokens by key. Implementations must make Put and Delete
// atomic per key; concurrent writers for one key are last-writer-wins.
type Store interface {
	Get(ctx context.Context, key string) (AuthToken, bool, error)
	Put(ctx context.Context, key string, tok AuthToken) error
	Delete(ctx context.Context, key string) error
	// Clear removes every token.
	Clear(ctx context.Context) error
	// Keys lists stored keys.
	Keys(ctx context.Context) ([]string, error)
}

// Clock returns the current time.
type Clock func() time.Time

// MemoryStore keeps tokens for the life of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]AuthToken
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]AuthToken)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (AuthToken, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.tokens[key]
	return tok, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, tok AuthToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[key] = tok
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, key)
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.tokens)
	return nil
}

func (s *MemoryStore) Keys(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.tokens), nil
}

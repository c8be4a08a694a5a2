// Package cache provides the content-addressed, append-only fetch cache.
//
// Entries are keyed by normalized URL and persist for the lifetime of
// the store: fetch once, keep forever. Staleness and eviction are an
// explicit non-goal at this layer.
package cache

import (
	"context"
	"sync"

	"github.com/richinex/almanac/model"
)

// Store persists FetchResults keyed by normalized URL.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the stored entry for a key, if present.
	Get(ctx context.Context, key string) (model.FetchResult, bool, error)

	// Put stores an entry under a key. Content is immutable once
	// cached, so overwriting with equivalent content is harmless
	// (last-writer-wins).
	Put(ctx context.Context, key string, result model.FetchResult) error

	// Len returns the number of stored entries.
	Len(ctx context.Context) (int, error)

	// Close releases the store's resources.
	Close() error
}

// MemoryStore is an in-process Store, useful for tests and one-shot runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]model.FetchResult
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]model.FetchResult)}
}

// Get returns the stored entry for a key, if present.
func (s *MemoryStore) Get(_ context.Context, key string) (model.FetchResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	return entry, ok, nil
}

// Put stores an entry under a key.
func (s *MemoryStore) Put(_ context.Context, key string, result model.FetchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = result
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries), nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Verify MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

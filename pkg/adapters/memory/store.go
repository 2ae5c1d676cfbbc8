package memory

import (
	"context"
	"sync"

	"github.com/aretw0/callgate/pkg/domain"
)

// Store implements ports.FlagStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.Value
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store, optionally seeded with flags.
func NewStore(seed ...domain.Snapshot) *Store {
	s := &Store{
		data: make(map[string]domain.Value),
	}
	for _, snap := range seed {
		for k, v := range snap {
			if !v.IsZero() {
				s.data[k] = v
			}
		}
	}
	return s
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (domain.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return domain.Value{}, domain.ErrFlagNotFound
	}
	return v, nil
}

// Set writes value under key.
func (s *Store) Set(ctx context.Context, key string, value domain.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return nil
}

// Delete removes key from memory.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Snapshot returns a copy of every flag.
func (s *Store) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.Snapshot(s.data).Clone(), nil
}

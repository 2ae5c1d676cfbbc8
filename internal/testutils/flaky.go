package testutils

import (
	"context"
	"sync"

	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/callgate/pkg/ports"
)

// FlakyStore wraps a FlagStore and fails selected operations on demand.
// It also counts writes so tests can assert idempotence.
type FlakyStore struct {
	ports.FlagStore

	mu       sync.Mutex
	GetErr   error
	SetErr   error
	SnapErr  error
	SetCalls int
}

// NewFlakyStore wraps inner.
func NewFlakyStore(inner ports.FlagStore) *FlakyStore {
	return &FlakyStore{FlagStore: inner}
}

func (f *FlakyStore) Get(ctx context.Context, key string) (domain.Value, error) {
	f.mu.Lock()
	err := f.GetErr
	f.mu.Unlock()
	if err != nil {
		return domain.Value{}, err
	}
	return f.FlagStore.Get(ctx, key)
}

func (f *FlakyStore) Set(ctx context.Context, key string, v domain.Value) error {
	f.mu.Lock()
	f.SetCalls++
	err := f.SetErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.FlagStore.Set(ctx, key, v)
}

func (f *FlakyStore) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	f.mu.Lock()
	err := f.SnapErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.FlagStore.Snapshot(ctx)
}

// Fail sets the error returned by every operation; nil heals the store.
func (f *FlakyStore) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetErr, f.SetErr, f.SnapErr = err, err, err
}

// Writes returns how many Set calls were made.
func (f *FlakyStore) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.SetCalls
}

package ports

import (
	"context"

	"github.com/aretw0/callgate/pkg/domain"
)

// FlagStore persists the flags the call gate reads and writes.
// Every mutating call is durable before it returns, so a later Get or Snapshot
// (even after a restart) observes it.
type FlagStore interface {
	// Get returns the value stored under key.
	// Returns domain.ErrFlagNotFound if the key was never written,
	// or domain.ErrStoreNotLoaded if the backing save has not been read yet.
	Get(ctx context.Context, key string) (domain.Value, error)

	// Set writes value under key (last write wins).
	Set(ctx context.Context, key string, value domain.Value) error

	// Delete removes key. Deleting a missing key is not an error.
	// Only reset tooling calls it; the core never clears a flag.
	Delete(ctx context.Context, key string) error

	// Snapshot returns a copy of every flag.
	// Returns domain.ErrStoreNotLoaded if the backing save has not been read yet.
	Snapshot(ctx context.Context) (domain.Snapshot, error)
}

// Watchable defines an interface for adapters that can notify about backend changes.
// A save file rewritten by another process is the typical source.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying data changes.
	// The channel is closed when ctx is done.
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// Package flags holds the small set of flag operations the core is allowed to perform
// on a ports.FlagStore: reading markers and idempotently marking them.
package flags

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/callgate/pkg/ports"
)

// IsSet reports whether key holds a truthy value. A missing key is false, not an error.
func IsSet(ctx context.Context, store ports.FlagStore, key string) (bool, error) {
	v, err := store.Get(ctx, key)
	if errors.Is(err, domain.ErrFlagNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}

// Mark sets key to true unless it already is. It reports whether a write happened.
// Marking never moves a flag from true back to false.
func Mark(ctx context.Context, store ports.FlagStore, key string) (bool, error) {
	set, err := IsSet(ctx, store, key)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if set {
		return false, nil
	}
	if err := store.Set(ctx, key, domain.Bool(true)); err != nil {
		return false, fmt.Errorf("failed to mark %s: %w", key, err)
	}
	return true, nil
}

// Clear removes every given key. It is reset tooling, never called by the scheduler.
func Clear(ctx context.Context, store ports.FlagStore, keys ...string) error {
	var errs []error
	for _, k := range keys {
		if err := store.Delete(ctx, k); err != nil {
			errs = append(errs, fmt.Errorf("failed to clear %s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}

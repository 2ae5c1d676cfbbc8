// Package middleware wraps flag stores with extra behavior while keeping the optional
// capabilities (watching, health checks) of the wrapped store reachable.
package middleware

import (
	"context"
	"fmt"

	"github.com/aretw0/callgate/pkg/ports"
)

// Middleware allows wrapping a FlagStore to add behavior.
type Middleware func(ports.FlagStore) ports.FlagStore

// Chain applies mws to store; the first one ends up outermost.
func Chain(store ports.FlagStore, mws ...Middleware) ports.FlagStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}

// passthrough forwards the optional store capabilities to next.
type passthrough struct {
	next ports.FlagStore
}

func (p passthrough) Watch(ctx context.Context) (<-chan struct{}, error) {
	if w, ok := p.next.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	return nil, fmt.Errorf("wrapped flag store does not support watching")
}

func (p passthrough) Healthy(ctx context.Context) error {
	if h, ok := p.next.(interface{ Healthy(context.Context) error }); ok {
		return h.Healthy(ctx)
	}
	return nil
}

func (p passthrough) Delete(ctx context.Context, key string) error {
	return p.next.Delete(ctx, key)
}

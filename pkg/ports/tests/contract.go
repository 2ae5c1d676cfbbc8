// Package tests provides reusable contract suites for port implementations.
package tests

import (
	"context"
	"testing"

	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/callgate/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunFlagStoreContract verifies that a loaded FlagStore adheres to the port contract.
// The store must start empty.
func RunFlagStoreContract(t *testing.T, store ports.FlagStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("Get Missing", func(t *testing.T) {
		_, err := store.Get(ctx, "contract.missing")
		assert.ErrorIs(t, err, domain.ErrFlagNotFound)
	})

	t.Run("Set and Get", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "contract.bool", domain.Bool(true)))
		require.NoError(t, store.Set(ctx, "contract.url", domain.String("https://news.example/companyname")))

		v, err := store.Get(ctx, "contract.bool")
		require.NoError(t, err)
		assert.True(t, v.Equal(domain.Bool(true)), "got %v", v)

		v, err = store.Get(ctx, "contract.url")
		require.NoError(t, err)
		assert.True(t, v.Equal(domain.String("https://news.example/companyname")), "got %v", v)
	})

	t.Run("Set Is Idempotent", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "contract.twice", domain.Bool(true)))
		first, err := store.Snapshot(ctx)
		require.NoError(t, err)

		require.NoError(t, store.Set(ctx, "contract.twice", domain.Bool(true)))
		second, err := store.Snapshot(ctx)
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("Last Write Wins", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "contract.chapter", domain.String("1")))
		require.NoError(t, store.Set(ctx, "contract.chapter", domain.String("2")))

		v, err := store.Get(ctx, "contract.chapter")
		require.NoError(t, err)
		n, ok := v.Int()
		require.True(t, ok)
		assert.Equal(t, 2, n)
	})

	t.Run("Snapshot Is A Copy", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "contract.copy", domain.Bool(true)))
		snap, err := store.Snapshot(ctx)
		require.NoError(t, err)
		assert.True(t, snap.Truthy("contract.copy"))

		snap["contract.copy"] = domain.Bool(false)
		v, err := store.Get(ctx, "contract.copy")
		require.NoError(t, err)
		assert.True(t, v.Truthy(), "mutating a snapshot must not leak into the store")
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "contract.gone", domain.Bool(true)))
		require.NoError(t, store.Delete(ctx, "contract.gone"))

		_, err := store.Get(ctx, "contract.gone")
		assert.ErrorIs(t, err, domain.ErrFlagNotFound)

		require.NoError(t, store.Delete(ctx, "contract.never-written"), "deleting a missing key is not an error")
	})
}

// RunGraphLoaderContract verifies that a GraphLoader serves exactly the given graphs.
// chains maps each graph id to its expected node chain from the start node.
func RunGraphLoaderContract(t *testing.T, loader ports.GraphLoader, chains map[string][]string) {
	t.Helper()
	ctx := context.Background()

	t.Run("LoadGraph", func(t *testing.T) {
		for id, chain := range chains {
			g, err := loader.LoadGraph(ctx, id)
			require.NoError(t, err, "graph %s", id)
			assert.Equal(t, id, g.ID)
			assert.Equal(t, chain, g.Chain(), "graph %s", id)
		}
	})

	t.Run("LoadGraph NotFound", func(t *testing.T) {
		_, err := loader.LoadGraph(ctx, "non-existent-graph")
		assert.ErrorIs(t, err, domain.ErrGraphNotFound)
	})

	t.Run("ListGraphs", func(t *testing.T) {
		ids, err := loader.ListGraphs(ctx)
		require.NoError(t, err)
		assert.Len(t, ids, len(chains))
		for id := range chains {
			assert.Contains(t, ids, id)
		}
	})
}

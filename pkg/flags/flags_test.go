package flags_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/callgate/internal/testutils"
	"github.com/aretw0/callgate/pkg/adapters/memory"
	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/callgate/pkg/flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMark_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := testutils.NewFlakyStore(memory.NewStore())

	wrote, err := flags.Mark(ctx, store, "call.stage1_triggered")
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = flags.Mark(ctx, store, "call.stage1_triggered")
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Equal(t, 1, store.Writes())

	set, err := flags.IsSet(ctx, store, "call.stage1_triggered")
	require.NoError(t, err)
	assert.True(t, set)
}

func TestMark_OverwritesFalse(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Set(ctx, "k", domain.Bool(false)))

	wrote, err := flags.Mark(ctx, store, "k")
	require.NoError(t, err)
	assert.True(t, wrote)
}

func TestIsSet_Missing(t *testing.T) {
	set, err := flags.IsSet(context.Background(), memory.NewStore(), "nope")
	require.NoError(t, err)
	assert.False(t, set)
}

func TestMark_PropagatesLoadErrors(t *testing.T) {
	store := testutils.NewFlakyStore(memory.NewStore())
	store.Fail(domain.ErrStoreNotLoaded)
	_, err := flags.Mark(context.Background(), store, "k")
	assert.True(t, errors.Is(err, domain.ErrStoreNotLoaded))
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Set(ctx, "a", domain.Bool(true)))
	require.NoError(t, store.Set(ctx, "b", domain.Bool(true)))

	require.NoError(t, flags.Clear(ctx, store, "a", "b", "c"))
	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap)
}

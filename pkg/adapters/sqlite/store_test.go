package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/aretw0/callgate/pkg/adapters/sqlite"
	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/callgate/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_Contract(t *testing.T) {
	store, err := sqlite.Open(":memory:", "")
	require.NoError(t, err)
	defer store.Close()

	tests.RunFlagStoreContract(t, store)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "game.sqlite")
	ctx := context.Background()

	store, err := sqlite.Open(path, "slot1")
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "bugcall.stage1.done", domain.Bool(true)))
	require.NoError(t, store.Set(ctx, "save.chapter", domain.String("2")))
	require.NoError(t, store.Close())

	store, err = sqlite.Open(path, "slot1")
	require.NoError(t, err)
	defer store.Close()

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Truthy("bugcall.stage1.done"))

	other, err := sqlite.Open(path, "slot2")
	require.NoError(t, err)
	defer other.Close()
	_, err = other.Get(ctx, "bugcall.stage1.done")
	assert.ErrorIs(t, err, domain.ErrFlagNotFound, "save slots are isolated")
}

func TestSQLiteStore_InvalidRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.sqlite")
	ctx := context.Background()

	store, err := sqlite.Open(path, "slot1")
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "chat.unlocked", domain.Bool(true)))
	require.NoError(t, store.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO flags (save, key, value, updated_at) VALUES ('slot1', 'app.notes', 'hello world', '')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err = sqlite.Open(path, "slot1")
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get(ctx, "app.notes")
	assert.ErrorContains(t, err, "app.notes")

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Snapshot{"chat.unlocked": domain.Bool(true)}, snap)
}

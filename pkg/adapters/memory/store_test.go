package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/callgate/pkg/adapters/memory"
	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/callgate/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	tests.RunFlagStoreContract(t, memory.NewStore())
}

func TestMemoryStore_Seed(t *testing.T) {
	store := memory.NewStore(domain.Snapshot{"save.chapter": domain.String("2"), "zero": {}})

	v, err := store.Get(context.Background(), "save.chapter")
	require.NoError(t, err)
	assert.Equal(t, "2", v.String())

	_, err = store.Get(context.Background(), "zero")
	assert.ErrorIs(t, err, domain.ErrFlagNotFound)
}

func TestWindows(t *testing.T) {
	w := memory.NewWindows()
	assert.False(t, w.IsAnyWindowOpen())

	w.Open("gallery")
	w.Open("password-modal")
	w.Open("gallery")
	assert.True(t, w.IsAnyWindowOpen())
	assert.Equal(t, []string{"gallery", "password-modal"}, w.List())

	w.Close("gallery")
	assert.True(t, w.IsAnyWindowOpen())

	w.CloseAll()
	assert.False(t, w.IsAnyWindowOpen())
}

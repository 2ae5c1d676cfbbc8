package file_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/callgate/pkg/adapters/file"
	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/callgate/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoader_Contract(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.yaml", `
id: custom.one
nodes:
  - {id: ring, kind: media, fallback: 1s}
  - {id: hello, kind: beat, text: hi}
`)
	writeFile(t, dir, "two.json", `{"id":"custom.two","nodes":[{"id":"only","kind":"beat"}]}`)
	writeFile(t, dir, "notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.yaml"), 0755))

	tests.RunGraphLoaderContract(t, file.NewLoader(dir), map[string][]string{
		"custom.one": {"ring", "hello"},
		"custom.two": {"only"},
	})
}

func TestLoader_InvalidGraph(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.yml", `
id: broken
nodes:
  - {id: a, kind: beat, next: ghost}
`)
	_, err := file.NewLoader(dir).LoadGraph(context.Background(), "broken")
	var cfgErr *domain.ConfigError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.True(t, cfgErr.Has(domain.IssueDangling))
	assert.Contains(t, err.Error(), "bad.yml")
}

func TestLoader_DuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "id: same\nnodes: [{id: x, kind: beat}]\n")
	writeFile(t, dir, "b.yaml", "id: same\nnodes: [{id: y, kind: beat}]\n")

	_, err := file.NewLoader(dir).ListGraphs(context.Background())
	assert.ErrorContains(t, err, "declared in both")
}

func TestLoader_MissingDirectory(t *testing.T) {
	l := file.NewLoader(filepath.Join(t.TempDir(), "absent"))

	ids, err := l.ListGraphs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = l.LoadGraph(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrGraphNotFound)
}

func TestLoader_Watch(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := file.NewLoader(dir).Watch(ctx)
	require.NoError(t, err)

	writeFile(t, dir, "notes.txt", "ignored")
	writeFile(t, dir, "late.yaml", "id: late\nnodes: [{id: x, kind: beat}]\n")

	select {
	case name := <-ch:
		assert.Equal(t, "late.yaml", name)
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/callgate/internal/config"
	"github.com/aretw0/callgate/pkg/persistence/middleware"
	"github.com/aretw0/callgate/pkg/story"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	v := config.New()
	v.Set("backend", backend)
	v.Set("save.path", filepath.Join(dir, "save.json"))
	v.Set("sqlite.path", filepath.Join(dir, "save.db"))
	v.Set("scheduler.tick", "5ms")
	cfg, err := config.Load(v, "")
	require.NoError(t, err)
	return cfg
}

func build(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	app, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestBuild_PersistentBackends(t *testing.T) {
	for _, backend := range []string{"file", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t, backend)
			ctx := context.Background()

			first, err := Build(ctx, cfg, nil)
			require.NoError(t, err)
			require.NoError(t, SetFlag(ctx, first, story.KeyChapter, "2"))
			require.NoError(t, first.Close())

			second := build(t, cfg)
			var out bytes.Buffer
			require.NoError(t, GetFlag(ctx, second, &out, story.KeyChapter))
			assert.Equal(t, "2\n", out.String())
		})
	}
}

func TestBuild_RedisClaimsSlot(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, "redis")
	cfg.Redis.Addr = mr.Addr()
	cfg.Slot = "playtest"
	ctx := context.Background()

	app := build(t, cfg)
	require.NoError(t, SetFlag(ctx, app, "app.chat.unlocked", "true"))
	assert.Equal(t, `true`, mr.HGet("callgate:save:playtest", "app.chat.unlocked"))

	unlock, err := app.Claim(ctx)
	require.NoError(t, err)
	assert.True(t, mr.Exists("callgate:lock:playtest"))
	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("callgate:lock:playtest"))
}

func TestFlagCommands(t *testing.T) {
	cfg := testConfig(t, "memory")
	app := build(t, cfg)
	ctx := context.Background()

	require.NoError(t, SetFlag(ctx, app, "b.key", "true"))
	require.NoError(t, SetFlag(ctx, app, "a.key", "hello"))
	assert.Error(t, SetFlag(ctx, app, "c.key", "bad\xffvalue"))

	var out bytes.Buffer
	require.NoError(t, ListFlags(ctx, app, &out))
	assert.Equal(t, "a.key = hello\nb.key = true\n", out.String())

	require.NoError(t, DeleteFlag(ctx, app, "a.key"))
	assert.Error(t, GetFlag(ctx, app, &out, "a.key"))
}

func TestResetProgress(t *testing.T) {
	cfg := testConfig(t, "memory")
	app := build(t, cfg)
	ctx := context.Background()

	stage := app.Engine.Stages()[0]
	require.NoError(t, SetFlag(ctx, app, stage.TriggeredKey, "true"))
	require.NoError(t, ResetProgress(ctx, app))

	_, err := app.Store.Get(ctx, stage.TriggeredKey)
	assert.Error(t, err)
}

func TestPrintStatus(t *testing.T) {
	cfg := testConfig(t, "memory")
	app := build(t, cfg)

	var out bytes.Buffer
	require.NoError(t, PrintStatus(context.Background(), app, &out, false))
	assert.Contains(t, out.String(), "stage 1")
	assert.Contains(t, out.String(), "stage 2")

	out.Reset()
	require.NoError(t, PrintStatus(context.Background(), app, &out, true))
	assert.Contains(t, out.String(), `"stages"`)
}

const authoredStage1 = `
id: bugcall.stage1
nodes:
  - {id: ring, kind: media, fallback: 1s}
  - {id: static, kind: beat, text: "...hello?"}
`

func TestExportGraph_AuthoredOverridesBuiltIn(t *testing.T) {
	cfg := testConfig(t, "memory")
	cfg.Graphs.Dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Graphs.Dir, "stage1.yaml"), []byte(authoredStage1), 0o644))
	app := build(t, cfg)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, ExportGraph(ctx, app, &out, story.GraphStage1, "json"))
	assert.Contains(t, out.String(), `"static"`)

	out.Reset()
	require.NoError(t, ExportGraph(ctx, app, &out, story.GraphStage2, "mermaid"))
	assert.True(t, strings.HasPrefix(out.String(), "graph TD"), out.String())

	out.Reset()
	require.NoError(t, ExportGraph(ctx, app, &out, story.GraphStage2, "yaml"))
	assert.Contains(t, out.String(), "id: bugcall.stage2")

	assert.Error(t, ExportGraph(ctx, app, &out, story.GraphStage2, "dot"))
}

func TestValidate(t *testing.T) {
	cfg := testConfig(t, "memory")
	cfg.Graphs.Dir = t.TempDir()
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, Validate(ctx, build(t, cfg), &out))

	require.NoError(t, os.WriteFile(filepath.Join(cfg.Graphs.Dir, "broken.yaml"),
		[]byte("id: broken\nnodes:\n  - {id: a, kind: beat, next: ghost}\n"), 0o644))
	out.Reset()
	err := Validate(ctx, build(t, cfg), &out)
	assert.ErrorIs(t, err, ErrInvalidGraphs)
	assert.Contains(t, out.String(), "broken")
}

func TestRun_ConsoleSession(t *testing.T) {
	cfg := testConfig(t, "memory")
	in := strings.NewReader("status\nopen gallery\nquit\n")
	var out bytes.Buffer

	require.NoError(t, Run(context.Background(), cfg, in, &out))
	assert.Contains(t, out.String(), "type help for commands")
	assert.Contains(t, out.String(), "stage 1")
}

func TestRemote(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /stages/1/trigger", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("POST /stages/9/trigger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"unknown stage: 9"}`))
	})
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"now":0,"flags_loaded":true,"stages":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	remote := NewRemote(srv.URL + "/")
	ctx := context.Background()

	require.NoError(t, remote.Trigger(ctx, 1))
	assert.ErrorContains(t, remote.Trigger(ctx, 9), "unknown stage: 9")

	st, err := remote.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.FlagsLoaded)
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8081", baseURL(":8081"))
	assert.Equal(t, "http://127.0.0.1:9000", baseURL("127.0.0.1:9000"))
}

func TestBuild_SealsCompletionMarkers(t *testing.T) {
	cfg := testConfig(t, "file")
	cfg.Save.SealKey = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	ctx := context.Background()

	app := build(t, cfg)
	stage := app.Engine.Stages()[0]
	require.NoError(t, SetFlag(ctx, app, stage.TriggeredKey, "true"))
	require.NoError(t, SetFlag(ctx, app, story.KeyChapter, "3"))

	raw, err := os.ReadFile(cfg.Save.Path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), middleware.SealPrefix)
	assert.Contains(t, string(raw), `"3"`)

	var out bytes.Buffer
	require.NoError(t, GetFlag(ctx, app, &out, stage.TriggeredKey))
	assert.Equal(t, "true\n", out.String())

	cfg.Save.SealKey = "not base64"
	_, err = Build(ctx, cfg, nil)
	assert.Error(t, err)
}

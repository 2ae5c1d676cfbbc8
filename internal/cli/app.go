// Package cli assembles callgate processes from a resolved configuration: the flag store,
// the graph loaders, the engine and the surfaces that drive it.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/callgate"
	"github.com/aretw0/callgate/internal/config"
	"github.com/aretw0/callgate/internal/logging"
	"github.com/aretw0/callgate/pkg/adapters/file"
	loamadapter "github.com/aretw0/callgate/pkg/adapters/loam"
	"github.com/aretw0/callgate/pkg/adapters/memory"
	"github.com/aretw0/callgate/pkg/adapters/redis"
	"github.com/aretw0/callgate/pkg/adapters/sqlite"
	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/callgate/pkg/observability"
	"github.com/aretw0/callgate/pkg/persistence/middleware"
	"github.com/aretw0/callgate/pkg/ports"
	"github.com/aretw0/callgate/pkg/runner"
	"github.com/aretw0/callgate/pkg/story"
)

// App is one engine together with the resources it was built from.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Engine  *callgate.Engine
	Store   ports.FlagStore
	Windows *memory.Windows
	// Graphs is the authored graph loader, nil when only built-in graphs are used.
	Graphs ports.GraphLoader

	locker  *redis.Locker
	closers []func() error
}

// NewLogger builds the process logger from the log settings.
func NewLogger(cfg *config.Config) *slog.Logger {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	return logging.NewWithFormat(os.Stderr, level, cfg.Log.Format)
}

// Build opens the configured store and graph loader and creates the engine.
// Extra options are applied after the configured ones.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...callgate.Option) (*App, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Windows: memory.NewWindows(),
	}

	store, err := app.openStore(ctx)
	if err != nil {
		return nil, err
	}
	app.Store = store

	loader, err := openLoader(cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Graphs = loader

	engineOpts := []callgate.Option{
		callgate.WithLogger(logger),
		callgate.WithWindowOwners(app.Windows),
		callgate.WithPollInterval(cfg.Scheduler.Poll),
		callgate.WithSettleDelay(cfg.Scheduler.Settle),
		callgate.WithIdleProbe(cfg.Scheduler.Probe),
		callgate.WithLifecycleHooks(observability.LoggingHooks(logger)),
	}
	if loader != nil {
		engineOpts = append(engineOpts, callgate.WithGraphLoader(loader))
	}
	engineOpts = append(engineOpts, opts...)

	engine, err := callgate.New(store, engineOpts...)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	app.Engine = engine
	return app, nil
}

func (a *App) openStore(ctx context.Context) (ports.FlagStore, error) {
	store, err := a.openBackend(ctx)
	if err != nil || a.Config.Save.SealKey == "" {
		return store, err
	}

	sealCfg := middleware.SealConfig{Keys: completionKeys(story.Stages())}
	if sealCfg.ActiveKey, err = middleware.DecodeKey(a.Config.Save.SealKey); err != nil {
		return nil, err
	}
	for _, k := range a.Config.Save.SealFallbackKeys {
		key, err := middleware.DecodeKey(k)
		if err != nil {
			return nil, fmt.Errorf("fallback: %w", err)
		}
		sealCfg.FallbackKeys = append(sealCfg.FallbackKeys, key)
	}
	seal, err := middleware.NewSealMiddleware(sealCfg)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug("call completion is sealed", "keys", sealCfg.Keys)
	return middleware.Chain(store, seal), nil
}

// completionKeys lists the completion markers of stages. Unlock keys stay plain
// because the rest of the game reads them.
func completionKeys(stages []domain.Stage) []string {
	keys := make([]string, 0, len(stages))
	for _, st := range stages {
		keys = append(keys, st.TriggeredKey)
	}
	return keys
}

func (a *App) openBackend(ctx context.Context) (ports.FlagStore, error) {
	cfg := a.Config
	switch cfg.Backend {
	case "memory":
		return memory.NewStore(), nil

	case "file":
		store := file.New(cfg.Save.Path, file.WithDebounce(cfg.Save.Debounce), file.WithLogger(a.Logger))
		if err := store.Load(ctx); err != nil {
			return nil, fmt.Errorf("failed to load save %s: %w", cfg.Save.Path, err)
		}
		return store, nil

	case "redis":
		store, err := redis.Open(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(cfg.Redis.Prefix), redis.WithSave(cfg.Slot), redis.WithLogger(a.Logger))
		if err != nil {
			return nil, err
		}
		a.locker = redis.NewLocker(store.Client(), cfg.Redis.Prefix)
		a.closers = append(a.closers, store.Close)
		return store, nil

	case "sqlite":
		store, err := sqlite.Open(cfg.SQLite.Path, cfg.Slot, sqlite.WithLogger(a.Logger))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// openLoader returns nil when no graph directory is configured.
func openLoader(cfg *config.Config) (ports.GraphLoader, error) {
	if cfg.Graphs.Dir == "" {
		return nil, nil
	}
	switch cfg.Graphs.Format {
	case "loam":
		loader, err := loamadapter.Open(cfg.Graphs.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open graphs %s: %w", cfg.Graphs.Dir, err)
		}
		return loader, nil
	default:
		return file.NewLoader(cfg.Graphs.Dir), nil
	}
}

// Claim takes exclusive ownership of the save slot for the life of ctx when the backend
// is shared between processes. It returns a no-op release for local backends.
func (a *App) Claim(ctx context.Context) (ports.UnlockFunc, error) {
	if a.locker == nil {
		return func(context.Context) error { return nil }, nil
	}
	a.Logger.Info("claiming save slot", "slot", a.Config.Slot)
	unlock, err := a.locker.Hold(ctx, a.Config.Slot, a.Config.Redis.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to claim save slot %q: %w", a.Config.Slot, err)
	}
	return unlock, nil
}

// Runner creates the real-time driver. Stores that report outside writes become
// recheck sources.
func (a *App) Runner(ctx context.Context, opts ...runner.Option) *runner.Runner {
	runOpts := []runner.Option{
		runner.WithTick(a.Config.Scheduler.Tick),
		runner.WithLogger(a.Logger),
	}
	if ch, err := a.Engine.Watch(ctx); err == nil {
		runOpts = append(runOpts, runner.WithRecheckSource(ch))
	} else {
		a.Logger.Debug("save changes are not watched", "backend", a.Config.Backend, "err", err)
	}
	return runner.New(a.Engine, append(runOpts, opts...)...)
}

// Close stops the engine and releases the store.
func (a *App) Close() error {
	if a.Engine != nil {
		a.Engine.Close(context.Background())
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

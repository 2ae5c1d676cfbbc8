package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/callgate"
	"github.com/aretw0/callgate/internal/config"
	httpadapter "github.com/aretw0/callgate/pkg/adapters/http"
	"github.com/aretw0/callgate/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds how long in-flight requests may take once serving stops.
const ShutdownTimeout = 5 * time.Second

// Serve runs the engine headless behind the debug HTTP API until ctx is done.
func Serve(ctx context.Context, cfg *config.Config) error {
	logger := NewLogger(cfg)
	streams := httpadapter.NewStreamManager()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observability.NewMetrics(reg)
	if err != nil {
		return err
	}

	app, err := Build(ctx, cfg, logger,
		callgate.WithLifecycleHooks(streams.Hooks()),
		callgate.WithLifecycleHooks(metrics.Hooks()),
	)
	if err != nil {
		return err
	}
	defer app.Close()

	unlock, err := app.Claim(ctx)
	if err != nil {
		return err
	}
	defer unlock(context.WithoutCancel(ctx))

	r := app.Runner(ctx)

	handlerOpts := []httpadapter.Option{
		httpadapter.WithStreams(streams),
		httpadapter.WithWindows(app.Windows),
		httpadapter.WithLogger(logger),
	}
	if cfg.HTTP.Metrics {
		handlerOpts = append(handlerOpts, httpadapter.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpadapter.NewHandler(r, handlerOpts...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("call gate serving", "addr", cfg.HTTP.Addr, "backend", cfg.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown did not complete in %v: %w", ShutdownTimeout, err)
		}
		logger.Info("call gate stopped")
		return nil
	})
	return g.Wait()
}

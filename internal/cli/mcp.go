package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aretw0/callgate/internal/config"
	mcpadapter "github.com/aretw0/callgate/pkg/adapters/mcp"
	"golang.org/x/sync/errgroup"
)

// ServeMCP exposes the engine as MCP tools over stdio or SSE until ctx is done
// (stdio also ends when its input closes). Logs go to stderr so stdout stays JSON-RPC.
func ServeMCP(ctx context.Context, cfg *config.Config) error {
	logger := NewLogger(cfg)
	app, err := Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	unlock, err := app.Claim(ctx)
	if err != nil {
		return err
	}
	defer unlock(context.WithoutCancel(ctx))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := app.Runner(ctx)
	srv := mcpadapter.NewServer(r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		switch cfg.MCP.Transport {
		case "sse":
			logger.Info("starting MCP server (SSE)", "addr", cfg.MCP.Addr)
			err := srv.ServeSSE(gctx, cfg.MCP.Addr, baseURL(cfg.MCP.Addr))
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("mcp server: %w", err)
			}
			return nil
		default:
			logger.Info("starting MCP server (stdio)")
			if err := srv.ServeStdio(); err != nil {
				return fmt.Errorf("mcp server: %w", err)
			}
			return nil
		}
	})
	return g.Wait()
}

// baseURL turns a listen address such as ":8081" into a URL clients can reach.
func baseURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

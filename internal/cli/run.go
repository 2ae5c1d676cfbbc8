package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/callgate"
	"github.com/aretw0/callgate/internal/config"
	"github.com/aretw0/callgate/internal/presentation/tui"
	"github.com/aretw0/callgate/pkg/runner"
	"golang.org/x/sync/errgroup"
)

// Run drives the call gate in the terminal: the console reads commands from in while
// calls are rendered to out. It returns when the console quits or ctx is done.
func Run(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	logger := NewLogger(cfg)
	presenter := tui.NewPresenter(out)
	tui.PrintBanner(out, presenter.Profile())

	app, err := Build(ctx, cfg, logger,
		callgate.WithPresenter(presenter),
		callgate.WithShaker(presenter),
		callgate.WithCuePlayer(presenter),
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

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := app.Runner(ctx)
	console := runner.NewConsole(in, presenter, app.Windows)

	logger.Info("call gate running", "backend", cfg.Backend, "graphs", cfg.Graphs.Dir)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		if err := console.Serve(gctx, r); err != nil {
			return fmt.Errorf("console stopped: %w", err)
		}
		return nil
	})
	return g.Wait()
}

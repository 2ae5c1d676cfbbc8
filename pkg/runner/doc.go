/*
Package runner drives a callgate.Engine in real time.

The engine itself is single-threaded and only moves when Advance is called. A Runner owns the
engine on one goroutine: it advances the timeline by the wall-clock time elapsed on every tick,
runs requests coming from other goroutines (HTTP handlers, MCP tools, the stdin console) on that
same goroutine through Do, and turns change notifications (save-file watches) into rechecks.

# Usage

	r := runner.New(engine,
		runner.WithTick(16*time.Millisecond),
		runner.WithRecheckSource(changes),
	)

	go func() {
		_ = r.Do(ctx, func(ctx context.Context, e *callgate.Engine) error {
			return e.Continue(ctx)
		})
	}()

	if err := r.Run(ctx); err != nil {
		log.Fatal(err)
	}
*/
package runner

package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/callgate"
	"github.com/aretw0/callgate/internal/logging"
)

// ErrStopped is returned by Do once the runner has stopped.
var ErrStopped = errors.New("runner stopped")

// Func is work executed on the engine goroutine.
type Func func(ctx context.Context, e *callgate.Engine) error

type request struct {
	fn   Func
	done chan error
}

// Runner owns an Engine and advances it with the wall clock.
type Runner struct {
	engine  *callgate.Engine
	tick    time.Duration
	logger  *slog.Logger
	sources []<-chan struct{}
	now     func() time.Time

	inbox    chan request
	stopped  chan struct{}
	stopOnce sync.Once
}

// New creates a Runner for the engine. The engine must not be used directly once Run starts;
// go through Do instead.
func New(engine *callgate.Engine, opts ...Option) *Runner {
	r := &Runner{
		engine:  engine,
		tick:    DefaultTick,
		logger:  logging.NewNop(),
		now:     time.Now,
		inbox:   make(chan request),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run advances the engine until ctx is done. On exit it hangs up any active call without
// recording completion, so an interrupted call rings again next time.
// Run must be called at most once.
func (r *Runner) Run(ctx context.Context) error {
	defer r.stopOnce.Do(func() { close(r.stopped) })
	if r.engine == nil {
		return fmt.Errorf("runner has no engine")
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	rechecks := make(chan struct{}, 1)
	for _, src := range r.sources {
		wg.Add(1)
		go func(src <-chan struct{}) {
			defer wg.Done()
			forward(ctx, src, rechecks)
		}(src)
	}

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	last := r.now()
	r.engine.Advance(ctx, 0)

	for {
		select {
		case <-ctx.Done():
			r.engine.Close(context.WithoutCancel(ctx))
			r.logger.Debug("runner stopped", "at", r.engine.Now())
			return nil

		case <-ticker.C:
			now := r.now()
			elapsed := now.Sub(last)
			last = now
			if elapsed > 0 {
				r.engine.Advance(ctx, elapsed)
			}

		case req := <-r.inbox:
			req.done <- r.invoke(ctx, req.fn)

		case <-rechecks:
			r.logger.Debug("recheck requested")
			r.engine.Recheck(ctx)
		}
	}
}

// forward coalesces signals from src into dst until src closes or ctx ends.
func forward(ctx context.Context, src <-chan struct{}, dst chan<- struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-src:
			if !ok {
				return
			}
			select {
			case dst <- struct{}{}:
			default:
			}
		}
	}
}

// invoke runs fn and turns a panic into an error so one bad request cannot stop the loop.
func (r *Runner) invoke(ctx context.Context, fn Func) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("request panicked", "panic", rec)
			err = fmt.Errorf("request panicked: %v", rec)
		}
	}()
	return fn(ctx, r.engine)
}

// Do runs fn on the engine goroutine and waits for it. It fails with ErrStopped once Run
// has returned, or with ctx's error if ctx ends first.
func (r *Runner) Do(ctx context.Context, fn Func) error {
	req := request{fn: fn, done: make(chan error, 1)}
	select {
	case r.inbox <- req:
	case <-r.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stopped is closed when Run returns.
func (r *Runner) Stopped() <-chan struct{} {
	return r.stopped
}

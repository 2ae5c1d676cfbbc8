package runner

import (
	"log/slog"
	"time"
)

// DefaultTick is how often the runner advances the engine.
const DefaultTick = 50 * time.Millisecond

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithTick sets the advance interval.
func WithTick(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.tick = d
		}
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithRecheckSource adds a channel whose signals trigger an immediate recheck of the stage
// conditions. A closed source is dropped.
func WithRecheckSource(ch <-chan struct{}) Option {
	return func(r *Runner) {
		if ch != nil {
			r.sources = append(r.sources, ch)
		}
	}
}

// WithClock overrides the wall clock used to measure elapsed time.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

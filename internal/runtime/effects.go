package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/callgate/internal/logging"
	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/callgate/pkg/ports"
)

// EffectDispatcher fires cosmetic effects. Nothing it does can fail the caller:
// errors and panics from collaborators are logged and swallowed.
type EffectDispatcher struct {
	shaker ports.Shaker
	cues   ports.CuePlayer
	logger *slog.Logger
}

// NewEffectDispatcher creates a dispatcher. Both collaborators are optional.
func NewEffectDispatcher(logger *slog.Logger, shaker ports.Shaker, cues ports.CuePlayer) *EffectDispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &EffectDispatcher{shaker: shaker, cues: cues, logger: logger}
}

// Shake requests a screen shake.
func (d *EffectDispatcher) Shake(ctx context.Context, intensity float64, duration time.Duration) {
	if d.shaker == nil {
		d.logger.Debug("shake skipped: no shaker", "intensity", intensity)
		return
	}
	d.guard("shake", func() error {
		return d.shaker.Shake(ctx, intensity, duration)
	})
}

// PlayGlitchCue plays the glitch audio cue.
func (d *EffectDispatcher) PlayGlitchCue(ctx context.Context) {
	if d.cues == nil {
		d.logger.Debug("glitch cue skipped: no cue player")
		return
	}
	d.guard("glitch", func() error {
		return d.cues.PlayGlitchCue(ctx)
	})
}

// Apply fires every effect declared on a node: shake first, then the glitch cue.
func (d *EffectDispatcher) Apply(ctx context.Context, effects domain.Effects) {
	if s := effects.Shake; s != nil {
		d.Shake(ctx, s.Intensity, s.Duration)
	}
	if effects.Glitch {
		d.PlayGlitchCue(ctx)
	}
}

func (d *EffectDispatcher) guard(name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("effect panicked", "effect", name, "err", fmt.Errorf("%v", r))
		}
	}()
	if err := fn(); err != nil {
		d.logger.Warn("effect failed", "effect", name, "err", err)
	}
}

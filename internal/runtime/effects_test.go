package runtime

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/callgate/internal/logging"
	"github.com/aretw0/callgate/pkg/domain"
	"github.com/stretchr/testify/assert"
)

type shakerFunc func(ctx context.Context, intensity float64, d time.Duration) error

func (f shakerFunc) Shake(ctx context.Context, intensity float64, d time.Duration) error {
	return f(ctx, intensity, d)
}

type cueFunc func(ctx context.Context) error

func (f cueFunc) PlayGlitchCue(ctx context.Context) error { return f(ctx) }

func TestEffectDispatcher_Apply(t *testing.T) {
	var got []string
	d := NewEffectDispatcher(nil,
		shakerFunc(func(_ context.Context, i float64, d time.Duration) error {
			got = append(got, "shake")
			assert.Equal(t, 0.5, i)
			assert.Equal(t, time.Second, d)
			return nil
		}),
		cueFunc(func(context.Context) error {
			got = append(got, "glitch")
			return nil
		}),
	)

	d.Apply(context.Background(), domain.Effects{Shake: &domain.Shake{Intensity: 0.5, Duration: time.Second}, Glitch: true})
	assert.Equal(t, []string{"shake", "glitch"}, got)

	got = nil
	d.Apply(context.Background(), domain.Effects{})
	assert.Empty(t, got)
}

func TestEffectDispatcher_SwallowsFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithFormat(&buf, slog.LevelDebug, "text")

	d := NewEffectDispatcher(logger,
		shakerFunc(func(context.Context, float64, time.Duration) error { panic("no camera") }),
		cueFunc(func(context.Context) error { return errors.New("missing asset glitch.ogg") }),
	)

	assert.NotPanics(t, func() {
		d.Shake(context.Background(), 1, time.Second)
		d.PlayGlitchCue(context.Background())
	})
	assert.Contains(t, buf.String(), "no camera")
	assert.Contains(t, buf.String(), "missing asset glitch.ogg")
}

func TestEffectDispatcher_NoCollaborators(t *testing.T) {
	d := NewEffectDispatcher(nil, nil, nil)
	assert.NotPanics(t, func() {
		d.Apply(context.Background(), domain.Effects{Shake: &domain.Shake{Intensity: 1}, Glitch: true})
	})
}

type ownerFunc func() bool

func (f ownerFunc) IsAnyWindowOpen() bool { return f() }

func TestIdleSynchronizer(t *testing.T) {
	open := false
	s := NewIdleSynchronizer(nil, ownerFunc(func() bool { return false }))
	assert.True(t, s.IsIdle())

	s.Add(ownerFunc(func() bool { return open }))
	assert.True(t, s.IsIdle())

	open = true
	assert.False(t, s.IsIdle())
	assert.False(t, s.IsIdle(), "polling has no side effects")

	assert.True(t, NewIdleSynchronizer().IsIdle())
}

package timeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeline_OrderAndTies(t *testing.T) {
	ctx := context.Background()
	tl := New()
	var got []string
	record := func(name string) func(context.Context) {
		return func(context.Context) { got = append(got, name) }
	}

	tl.AfterFunc(300*time.Millisecond, record("c"))
	tl.AfterFunc(100*time.Millisecond, record("a"))
	tl.AfterFunc(100*time.Millisecond, record("b"))
	tl.AfterFunc(time.Second, record("late"))

	n := tl.Advance(ctx, 500*time.Millisecond)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, 500*time.Millisecond, tl.Now())
	assert.Equal(t, 1, tl.Pending())

	next, ok := tl.NextDeadline()
	require.True(t, ok)
	assert.Equal(t, time.Second, next)
}

func TestTimeline_NowInsideCallback(t *testing.T) {
	tl := New()
	var at time.Duration
	tl.AfterFunc(250*time.Millisecond, func(context.Context) { at = tl.Now() })
	tl.Advance(context.Background(), time.Second)
	assert.Equal(t, 250*time.Millisecond, at)
}

func TestTimeline_ChainedTimersRunInSameAdvance(t *testing.T) {
	tl := New()
	var got []time.Duration
	var tick func(context.Context)
	tick = func(context.Context) {
		got = append(got, tl.Now())
		if len(got) < 10 {
			tl.AfterFunc(100*time.Millisecond, tick)
		}
	}
	tl.AfterFunc(100*time.Millisecond, tick)

	tl.Advance(context.Background(), 350*time.Millisecond)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond}, got)
}

func TestTimeline_ZeroDelayRunsOnNextAdvance(t *testing.T) {
	tl := New()
	ran := false
	tl.AfterFunc(0, func(context.Context) { ran = true })
	assert.False(t, ran)

	tl.Advance(context.Background(), 0)
	assert.True(t, ran)
}

func TestTimer_Stop(t *testing.T) {
	ctx := context.Background()
	tl := New()
	ran := false
	tm := tl.AfterFunc(time.Second, func(context.Context) { ran = true })
	other := tl.AfterFunc(2*time.Second, func(context.Context) {})

	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop(), "second stop is a no-op")
	assert.Equal(t, 1, tl.Pending())

	tl.Advance(ctx, 3*time.Second)
	assert.False(t, ran)
	assert.False(t, other.Stop(), "fired timers cannot be stopped")

	var nilTimer *Timer
	assert.False(t, nilTimer.Stop())
}

func TestTimer_StopFromCallback(t *testing.T) {
	tl := New()
	ran := false
	var victim *Timer
	tl.AfterFunc(time.Second, func(context.Context) { victim.Stop() })
	victim = tl.AfterFunc(time.Second, func(context.Context) { ran = true })

	tl.Advance(context.Background(), 2*time.Second)
	assert.False(t, ran, "a timer stopped by an earlier callback of the same deadline must not run")
}

func TestTimeline_CancelledContext(t *testing.T) {
	tl := New()
	ctx, cancel := context.WithCancel(context.Background())
	tl.AfterFunc(time.Second, func(context.Context) { cancel() })
	tl.AfterFunc(time.Second, func(context.Context) { t.Fatal("must not run after cancellation") })

	n := tl.Advance(ctx, 2*time.Second)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, tl.Pending())
}

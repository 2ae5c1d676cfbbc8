package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/callgate/pkg/dsl"
	"github.com/aretw0/callgate/pkg/story"
	"github.com/aretw0/callgate/pkg/timeline"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoNodeGraph(t *testing.T) *domain.Graph {
	t.Helper()
	g, err := domain.NewGraph("scenario", "A",
		domain.MediaSegment{ID: "A", Next: "B", Clip: "a.webm", FallbackDelay: 2 * time.Second},
		domain.InteractiveBeat{ID: "B", Image: "b.png"},
	)
	require.NoError(t, err)
	return g
}

type seqFixture struct {
	tl   *timeline.Timeline
	seq  *Sequencer
	rec  *recorder
	pres *fakePresenter
	ends []RunEnd
}

func newSeqFixture(withPresenter bool, opts ...SequencerOption) *seqFixture {
	f := &seqFixture{tl: timeline.New(), rec: &recorder{}, pres: &fakePresenter{}}
	base := []SequencerOption{
		WithSequencerHooks(f.rec.hooks()),
		WithRunIDs(func() string { return "run-1" }),
	}
	if withPresenter {
		base = append(base, WithSequencerPresenter(f.pres))
	}
	f.seq = NewSequencer(f.tl, append(base, opts...)...)
	return f
}

func (f *seqFixture) begin(t *testing.T, g *domain.Graph) {
	t.Helper()
	err := f.seq.Begin(context.Background(), story.Stage1(), g, func(_ context.Context, end RunEnd) {
		f.ends = append(f.ends, end)
	})
	require.NoError(t, err)
}

func TestSequencer_MediaThenBeat(t *testing.T) {
	ctx := context.Background()
	f := newSeqFixture(true)
	f.begin(t, twoNodeGraph(t))

	if diff := cmp.Diff([]string{"start:1:A"}, f.rec.events); diff != "" {
		t.Fatalf("events after Begin (-want +got):\n%s", diff)
	}

	// Media completion moves to B.
	require.NoError(t, f.seq.OnMediaComplete(ctx, "A"))
	if diff := cmp.Diff([]string{"start:1:A", "end:1:A", "start:1:B"}, f.rec.events); diff != "" {
		t.Fatalf("events after media (-want +got):\n%s", diff)
	}

	// The beat never advances on its own.
	f.tl.Advance(ctx, time.Hour)
	assert.Len(t, f.rec.events, 3)
	info, ok := f.seq.Current()
	require.True(t, ok)
	assert.Equal(t, "B", info.NodeID)
	assert.True(t, info.AwaitingContinue)

	require.NoError(t, f.seq.OnContinueSignal(ctx))
	want := []string{"start:1:A", "end:1:A", "start:1:B", "end:1:B", "run:1:completed"}
	if diff := cmp.Diff(want, f.rec.events); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
	require.Len(t, f.ends, 1)
	assert.Equal(t, domain.OutcomeCompleted, f.ends[0].Outcome)
	assert.Equal(t, "B", f.ends[0].LastNode)
	assert.False(t, f.seq.Active())

	assert.Equal(t, []string{"open:1", "play:A", "beat:B", "close:completed"}, f.pres.calls)
}

func TestSequencer_FallbackWithoutClip(t *testing.T) {
	ctx := context.Background()
	f := newSeqFixture(true)
	b := dsl.New("fallback")
	b.Media("silent").Fallback(2 * time.Second)
	b.Media("next").Fallback(time.Second)
	f.begin(t, b.MustBuild())

	f.tl.Advance(ctx, 1999*time.Millisecond)
	assert.Equal(t, []string{"start:1:silent"}, f.rec.events)

	f.tl.Advance(ctx, time.Millisecond)
	assert.Equal(t, []string{"start:1:silent", "end:1:silent", "start:1:next"}, f.rec.events)

	f.tl.Advance(ctx, time.Second)
	require.Len(t, f.ends, 1)
	assert.Equal(t, domain.OutcomeCompleted, f.ends[0].Outcome)
	assert.NotContains(t, f.pres.calls, "play:silent", "no clip means no playback request")
}

func TestSequencer_MissingPresenterUsesFallback(t *testing.T) {
	ctx := context.Background()
	f := newSeqFixture(false)
	f.begin(t, twoNodeGraph(t))

	assert.ErrorIs(t, f.seq.OnMediaComplete(ctx, "A"), domain.ErrNotAwaiting)
	f.tl.Advance(ctx, 2*time.Second)
	assert.Equal(t, []string{"start:1:A", "end:1:A", "start:1:B"}, f.rec.events)
}

func TestSequencer_PlaybackErrorUsesFallback(t *testing.T) {
	ctx := context.Background()
	f := newSeqFixture(true)
	f.pres.playErr = errors.New("codec not supported")
	f.begin(t, twoNodeGraph(t))

	f.tl.Advance(ctx, 2*time.Second)
	assert.Equal(t, []string{"start:1:A", "end:1:A", "start:1:B"}, f.rec.events)
}

func TestSequencer_HoldAfterMedia(t *testing.T) {
	ctx := context.Background()
	f := newSeqFixture(true)
	b := dsl.New("hold")
	b.Media("clip").Clip("c.webm").Hold(500 * time.Millisecond)
	b.Beat("after")
	f.begin(t, b.MustBuild())

	require.NoError(t, f.seq.OnMediaComplete(ctx, "clip"))
	assert.Equal(t, []string{"start:1:clip"}, f.rec.events)

	f.tl.Advance(ctx, 499*time.Millisecond)
	assert.Len(t, f.rec.events, 1)
	f.tl.Advance(ctx, time.Millisecond)
	assert.Equal(t, []string{"start:1:clip", "end:1:clip", "start:1:after"}, f.rec.events)
}

func TestSequencer_SynchronousCompletion(t *testing.T) {
	f := newSeqFixture(true)
	f.pres.onPlay = func(ctx context.Context, n domain.MediaSegment) {
		// The presenter reports completion before PlayMedia returns.
		assert.NoError(t, f.seq.OnMediaComplete(ctx, n.ID))
	}
	f.pres.onBeat = func(ctx context.Context, n domain.InteractiveBeat) {
		assert.NoError(t, f.seq.OnContinueSignal(ctx))
	}

	f.begin(t, story.Stage1Graph())
	// Only the post-media holds are left on the timeline.
	f.tl.Advance(context.Background(), 10*time.Second)

	var want []string
	for _, id := range story.Stage1Graph().Chain() {
		want = append(want, "start:1:"+id, "end:1:"+id)
	}
	want = append(want, "run:1:completed")
	if diff := cmp.Diff(want, f.rec.events); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
	require.Len(t, f.ends, 1, "onEnd must fire exactly once")
}

func TestSequencer_RejectsNestedTransition(t *testing.T) {
	var nestedErr error
	f := newSeqFixture(true)
	f.seq.hooks.OnNodeStarted = func(ctx context.Context, e *domain.NodeEvent) {
		if e.NodeID == "A" {
			nestedErr = f.seq.GotoNode(ctx, "B")
		}
	}
	f.begin(t, twoNodeGraph(t))

	assert.ErrorIs(t, nestedErr, domain.ErrTransitionInProgress)
	info, _ := f.seq.Current()
	assert.Equal(t, "A", info.NodeID)
}

func TestSequencer_TimerDuringTransitionIsKept(t *testing.T) {
	ctx := context.Background()
	f := newSeqFixture(false)
	f.begin(t, twoNodeGraph(t))

	// The fallback comes due while node A is still marked as being entered.
	r := f.seq.run
	r.transitioning = true
	f.tl.Advance(ctx, 2*time.Second)
	assert.Equal(t, []string{"start:1:A"}, f.rec.events)

	r.transitioning = false
	f.seq.resolveDeferred(ctx, r)
	assert.Equal(t, []string{"start:1:A", "end:1:A", "start:1:B"}, f.rec.events)

	// Nothing is replayed once the node moved on.
	f.tl.Advance(ctx, time.Hour)
	assert.Len(t, f.rec.events, 3)
}

func TestSequencer_HangUpCancelsTimers(t *testing.T) {
	ctx := context.Background()
	f := newSeqFixture(false)
	f.begin(t, twoNodeGraph(t))
	require.Equal(t, 1, f.tl.Pending())

	require.NoError(t, f.seq.HangUp(ctx))
	assert.Equal(t, 0, f.tl.Pending())
	assert.Equal(t, []string{"start:1:A", "end:1:A", "run:1:hung_up"}, f.rec.events)

	f.tl.Advance(ctx, time.Minute)
	assert.Len(t, f.rec.events, 3, "nothing fires after a hang up")

	assert.ErrorIs(t, f.seq.HangUp(ctx), domain.ErrNoActiveRun)
	assert.ErrorIs(t, f.seq.OnContinueSignal(ctx), domain.ErrNoActiveRun)
	require.Len(t, f.ends, 1)
	assert.Equal(t, domain.OutcomeHungUp, f.ends[0].Outcome)
}

func TestSequencer_StaleTimerAcrossRuns(t *testing.T) {
	ctx := context.Background()
	f := newSeqFixture(false)
	g := twoNodeGraph(t)

	f.begin(t, g)
	f.tl.Advance(ctx, time.Second)
	require.NoError(t, f.seq.HangUp(ctx))

	f.rec.events = nil
	f.begin(t, g)
	f.tl.Advance(ctx, time.Second)
	assert.Equal(t, []string{"start:1:A"}, f.rec.events, "the first run's fallback must not advance the second run")

	f.tl.Advance(ctx, time.Second)
	assert.Equal(t, []string{"start:1:A", "end:1:A", "start:1:B"}, f.rec.events)
}

func TestSequencer_StaleSignals(t *testing.T) {
	ctx := context.Background()
	f := newSeqFixture(true)
	f.begin(t, twoNodeGraph(t))

	assert.ErrorIs(t, f.seq.OnMediaComplete(ctx, "B"), domain.ErrNotAwaiting)
	assert.ErrorIs(t, f.seq.OnContinueSignal(ctx), domain.ErrNotAwaiting)

	require.NoError(t, f.seq.OnMediaComplete(ctx, "A"))
	assert.ErrorIs(t, f.seq.OnMediaComplete(ctx, "A"), domain.ErrNotAwaiting, "duplicate completion is stale")
	assert.Equal(t, []string{"start:1:A", "end:1:A", "start:1:B"}, f.rec.events)
}

func TestSequencer_DanglingTargetAborts(t *testing.T) {
	ctx := context.Background()
	f := newSeqFixture(true)
	f.begin(t, twoNodeGraph(t))

	require.NoError(t, f.seq.GotoNode(ctx, "ghost"))
	assert.Equal(t, []string{"start:1:A", "end:1:A", "run:1:aborted"}, f.rec.events)
	require.Len(t, f.ends, 1)

	var cfg *domain.ConfigError
	require.ErrorAs(t, f.ends[0].Err, &cfg)
	assert.True(t, cfg.Has(domain.IssueDangling))
	assert.Contains(t, f.pres.calls, "close:aborted")
}

func TestSequencer_BeginValidation(t *testing.T) {
	f := newSeqFixture(true)
	noop := func(context.Context, RunEnd) {}

	err := f.seq.Begin(context.Background(), story.Stage1(), nil, noop)
	assert.ErrorIs(t, err, domain.ErrGraphNotFound)

	var cfg *domain.ConfigError
	err = f.seq.Begin(context.Background(), story.Stage1(), &domain.Graph{ID: "zero", Start: "x"}, noop)
	require.ErrorAs(t, err, &cfg)
	assert.False(t, f.seq.Active())

	f.begin(t, twoNodeGraph(t))
	assert.ErrorIs(t, f.seq.Begin(context.Background(), story.Stage2(), twoNodeGraph(t), noop), domain.ErrStageBusy)
}

func TestSequencer_EffectsBeforePayload(t *testing.T) {
	f := newSeqFixture(true)
	effects := NewEffectDispatcher(nil,
		shakerFunc(func(context.Context, float64, time.Duration) error {
			f.pres.calls = append(f.pres.calls, "shake")
			return nil
		}),
		cueFunc(func(context.Context) error {
			f.pres.calls = append(f.pres.calls, "glitch")
			return nil
		}),
	)
	f.seq.effects = effects

	b := dsl.New("fx")
	b.Media("boom").Clip("boom.webm").Shake(1, time.Second).Glitch()
	b.Beat("after").Glitch()
	f.begin(t, b.MustBuild())
	require.NoError(t, f.seq.OnMediaComplete(context.Background(), "boom"))

	want := []string{"open:1", "shake", "glitch", "play:boom", "glitch", "beat:after"}
	if diff := cmp.Diff(want, f.pres.calls); diff != "" {
		t.Errorf("presenter calls (-want +got):\n%s", diff)
	}
}

func TestSequencer_Deterministic(t *testing.T) {
	script := func() []string {
		ctx := context.Background()
		f := newSeqFixture(true)
		f.begin(t, story.Stage2Graph())
		for f.seq.Active() {
			info, _ := f.seq.Current()
			switch {
			case info.AwaitingMedia:
				require.NoError(t, f.seq.OnMediaComplete(ctx, info.NodeID))
			case info.AwaitingContinue:
				require.NoError(t, f.seq.OnContinueSignal(ctx))
			default:
				f.tl.Advance(ctx, 100*time.Millisecond)
			}
		}
		return f.rec.starts()
	}

	first := script()
	second := script()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("runs diverged (-first +second):\n%s", diff)
	}

	var want []string
	for _, id := range story.Stage2Graph().Chain() {
		want = append(want, "start:1:"+id)
	}
	assert.Equal(t, want, first)
}

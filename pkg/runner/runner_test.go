package runner_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/callgate"
	"github.com/aretw0/callgate/pkg/adapters/memory"
	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/callgate/pkg/runner"
	"github.com/aretw0/callgate/pkg/story"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stage1Flags() domain.Snapshot {
	return domain.Snapshot{
		story.KeyChatUnlocked:           domain.Bool(true),
		story.KeyQuestionnaireCompleted: domain.Bool(true),
		story.KeyPhotoUnlocked:          domain.Bool(true),
		story.KeyBrowserLastURL:         domain.String("companyname.example"),
	}
}

// fastEngine uses millisecond cadences so real-time tests finish quickly.
func fastEngine(t *testing.T, store *memory.Store, opts ...callgate.Option) (*callgate.Engine, <-chan string) {
	t.Helper()
	nodes := make(chan string, 32)
	opts = append([]callgate.Option{
		callgate.WithPollInterval(10 * time.Millisecond),
		callgate.WithIdleProbe(2 * time.Millisecond),
		callgate.WithSettleDelay(20 * time.Millisecond),
		callgate.WithLifecycleHooks(domain.LifecycleHooks{
			OnNodeStarted: func(_ context.Context, e *domain.NodeEvent) {
				select {
				case nodes <- e.NodeID:
				default:
				}
			},
		}),
	}, opts...)
	eng, err := callgate.New(store, opts...)
	require.NoError(t, err)
	return eng, nodes
}

func start(t *testing.T, r *runner.Runner) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-r.Stopped()
	})
	return cancel
}

func waitNode(t *testing.T, nodes <-chan string, want string) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case got := <-nodes:
			if got == want {
				return
			}
		case <-timeout:
			t.Fatalf("node %q never started", want)
		}
	}
}

func TestRunner_RingsInRealTime(t *testing.T) {
	eng, nodes := fastEngine(t, memory.NewStore(stage1Flags()))
	r := runner.New(eng, runner.WithTick(time.Millisecond))
	start(t, r)

	waitNode(t, nodes, "ring")

	var st callgate.Status
	require.NoError(t, r.Do(context.Background(), func(ctx context.Context, e *callgate.Engine) error {
		st = e.Status(ctx)
		return nil
	}))
	require.NotNil(t, st.Run)
	assert.Equal(t, story.GraphStage1, st.Run.GraphID)
}

func TestRunner_RecheckSource(t *testing.T) {
	store := memory.NewStore()
	eng, nodes := fastEngine(t, store, callgate.WithPollInterval(time.Hour))
	src := make(chan struct{})
	r := runner.New(eng, runner.WithTick(time.Millisecond), runner.WithRecheckSource(src))
	start(t, r)

	// Another process rewrites the save; only the watch notices.
	for k, v := range stage1Flags() {
		require.NoError(t, store.Set(context.Background(), k, v))
	}
	src <- struct{}{}

	waitNode(t, nodes, "ring")
}

func TestRunner_ClosedSourceIsDropped(t *testing.T) {
	eng, _ := fastEngine(t, memory.NewStore())
	src := make(chan struct{})
	close(src)
	r := runner.New(eng, runner.WithTick(time.Millisecond), runner.WithRecheckSource(src))
	start(t, r)

	err := r.Do(context.Background(), func(context.Context, *callgate.Engine) error { return nil })
	assert.NoError(t, err)
}

func TestRunner_Do(t *testing.T) {
	eng, _ := fastEngine(t, memory.NewStore())
	r := runner.New(eng, runner.WithTick(time.Millisecond))
	cancel := start(t, r)
	ctx := context.Background()

	boom := errors.New("boom")
	err := r.Do(ctx, func(context.Context, *callgate.Engine) error { return boom })
	assert.ErrorIs(t, err, boom)

	err = r.Do(ctx, func(context.Context, *callgate.Engine) error { panic("bad request") })
	assert.ErrorContains(t, err, "panicked")

	// The loop survives a panicking request.
	err = r.Do(ctx, func(ctx context.Context, e *callgate.Engine) error { return e.RequestCallStage(ctx, 9) })
	assert.ErrorIs(t, err, domain.ErrUnknownStage)

	cancelled, cancelNow := context.WithCancel(ctx)
	cancelNow()
	err = r.Do(cancelled, func(context.Context, *callgate.Engine) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)

	cancel()
	<-r.Stopped()
	err = r.Do(ctx, func(context.Context, *callgate.Engine) error { return nil })
	assert.ErrorIs(t, err, runner.ErrStopped)
}

func TestRunner_StopDoesNotCompleteCall(t *testing.T) {
	store := memory.NewStore(stage1Flags())
	eng, nodes := fastEngine(t, store)
	r := runner.New(eng, runner.WithTick(time.Millisecond))
	cancel := start(t, r)

	waitNode(t, nodes, "ring")
	cancel()
	<-r.Stopped()

	_, err := store.Get(context.Background(), story.KeyStage1Triggered)
	assert.ErrorIs(t, err, domain.ErrFlagNotFound, "an interrupted call rings again on the next run")
	assert.Nil(t, eng.Status(context.Background()).Run)
}

func TestRunner_Clock(t *testing.T) {
	// A frozen clock never advances the timeline past zero.
	frozen := time.Unix(0, 0)
	eng, _ := fastEngine(t, memory.NewStore(stage1Flags()))
	r := runner.New(eng, runner.WithTick(time.Millisecond), runner.WithClock(func() time.Time { return frozen }))
	start(t, r)

	time.Sleep(20 * time.Millisecond)
	var now time.Duration
	require.NoError(t, r.Do(context.Background(), func(_ context.Context, e *callgate.Engine) error {
		now = e.Now()
		return nil
	}))
	assert.Zero(t, now)
}

func TestRunner_NoEngine(t *testing.T) {
	r := runner.New(nil)
	assert.Error(t, r.Run(context.Background()))
	<-r.Stopped()
}

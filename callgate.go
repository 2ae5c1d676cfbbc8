package callgate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/callgate/internal/logging"
	"github.com/aretw0/callgate/internal/runtime"
	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/callgate/pkg/flags"
	"github.com/aretw0/callgate/pkg/ports"
	"github.com/aretw0/callgate/pkg/story"
	"github.com/aretw0/callgate/pkg/timeline"
)

// Engine is the high-level entry point of the call gate.
// It wires the flag store, the stage scheduler and the dialogue sequencer onto one timeline.
//
// Engine is not safe for concurrent use. Drive it from a single goroutine, or through
// pkg/runner when timers must follow the wall clock.
type Engine struct {
	tl        *timeline.Timeline
	store     ports.FlagStore
	loader    ports.GraphLoader
	idle      *runtime.IdleSynchronizer
	seq       *runtime.Sequencer
	sched     *runtime.Scheduler
	presenter ports.Presenter
	shaker    ports.Shaker
	cues      ports.CuePlayer
	owners    []ports.WindowOwner
	stages    []domain.Stage
	cfg       runtime.SchedulerConfig
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	runIDs    func() string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks. Several calls chain the hooks in order.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = domain.MergeHooks(e.hooks, hooks)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithPresenter sets the call surface. Without one the engine runs headless.
func WithPresenter(p ports.Presenter) Option {
	return func(e *Engine) {
		e.presenter = p
	}
}

// WithShaker sets the screen-shake collaborator.
func WithShaker(s ports.Shaker) Option {
	return func(e *Engine) {
		e.shaker = s
	}
}

// WithCuePlayer sets the glitch-cue collaborator.
func WithCuePlayer(c ports.CuePlayer) Option {
	return func(e *Engine) {
		e.cues = c
	}
}

// WithGraphLoader adds authored dialogue graphs. A graph found here replaces the
// built-in graph with the same id.
func WithGraphLoader(l ports.GraphLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithWindowOwners registers the apps whose windows keep the desktop busy.
func WithWindowOwners(owners ...ports.WindowOwner) Option {
	return func(e *Engine) {
		e.owners = append(e.owners, owners...)
	}
}

// WithStages replaces the built-in stage definitions.
func WithStages(stages ...domain.Stage) Option {
	return func(e *Engine) {
		e.stages = stages
	}
}

// WithPollInterval sets how often stage conditions are evaluated.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.cfg.PollInterval = d
	}
}

// WithSettleDelay sets how long the desktop must stay idle before a call starts.
func WithSettleDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.cfg.SettleDelay = d
	}
}

// WithIdleProbe sets how often the desktop is sampled while waiting for idle.
func WithIdleProbe(d time.Duration) Option {
	return func(e *Engine) {
		e.cfg.IdleProbe = d
	}
}

// WithTimeline runs the engine on an existing timeline.
func WithTimeline(tl *timeline.Timeline) Option {
	return func(e *Engine) {
		e.tl = tl
	}
}

// WithRunIDs overrides how run ids are generated.
func WithRunIDs(fn func() string) Option {
	return func(e *Engine) {
		e.runIDs = fn
	}
}

// New initializes an Engine over the given flag store and arms the stage scheduler.
// The first poll runs on the first Advance.
func New(store ports.FlagStore, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("a flag store is required")
	}
	eng := &Engine{store: store}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.tl == nil {
		eng.tl = timeline.New()
	}
	if len(eng.stages) == 0 {
		eng.stages = story.Stages()
	}
	eng.loader = Overlay(eng.loader, story.DefaultLoader())

	eng.idle = runtime.NewIdleSynchronizer(eng.owners...)

	seqOpts := []runtime.SequencerOption{
		runtime.WithSequencerHooks(eng.hooks),
		runtime.WithSequencerLogger(eng.logger),
		runtime.WithSequencerEffects(runtime.NewEffectDispatcher(eng.logger, eng.shaker, eng.cues)),
	}
	if eng.presenter != nil {
		seqOpts = append(seqOpts, runtime.WithSequencerPresenter(eng.presenter))
	}
	if eng.runIDs != nil {
		seqOpts = append(seqOpts, runtime.WithRunIDs(eng.runIDs))
	}
	eng.seq = runtime.NewSequencer(eng.tl, seqOpts...)

	sched, err := runtime.NewScheduler(runtime.SchedulerDeps{
		Timeline:  eng.tl,
		Store:     eng.store,
		Loader:    eng.loader,
		Idle:      eng.idle,
		Sequencer: eng.seq,
		Presenter: eng.presenter,
		Hooks:     eng.hooks,
		Logger:    eng.logger,
	}, eng.cfg, eng.stages...)
	if err != nil {
		return nil, fmt.Errorf("invalid stage configuration: %w", err)
	}
	eng.sched = sched
	eng.sched.Start()
	return eng, nil
}

// Advance moves the engine clock forward by d and runs every timer that falls due.
// It returns the number of timers fired.
func (e *Engine) Advance(ctx context.Context, d time.Duration) int {
	return e.tl.Advance(ctx, d)
}

// Now returns the engine clock.
func (e *Engine) Now() time.Duration {
	return e.tl.Now()
}

// NextDeadline returns when the next timer falls due.
func (e *Engine) NextDeadline() (time.Duration, bool) {
	return e.tl.NextDeadline()
}

// Recheck evaluates stage conditions immediately instead of waiting for the next poll.
func (e *Engine) Recheck(ctx context.Context) {
	e.sched.Recheck(ctx)
}

// NotifyPageChanged tells the engine the browser navigated. It is one poll step.
func (e *Engine) NotifyPageChanged(ctx context.Context, url string) {
	e.logger.Debug("page changed", "url", url)
	e.sched.Recheck(ctx)
}

// RequestCallStage forces a stage to wait for an idle desktop, skipping its conditions.
// It fails with domain.ErrStageBusy while another stage holds the call slot.
func (e *Engine) RequestCallStage(ctx context.Context, ordinal int) error {
	return e.sched.RequestCallStage(ctx, ordinal)
}

// ManualTrigger is RequestCallStage under the name tooling uses.
func (e *Engine) ManualTrigger(ctx context.Context, ordinal int) error {
	return e.RequestCallStage(ctx, ordinal)
}

// Continue advances the active run past the interactive beat it is showing.
func (e *Engine) Continue(ctx context.Context) error {
	return e.seq.OnContinueSignal(ctx)
}

// MediaFinished reports that the presenter finished playing the clip of nodeID.
func (e *Engine) MediaFinished(ctx context.Context, nodeID string) error {
	return e.seq.OnMediaComplete(ctx, nodeID)
}

// HangUp ends the active run. The stage counts as completed.
func (e *Engine) HangUp(ctx context.Context) error {
	return e.seq.HangUp(ctx)
}

// Reset cancels every pending timer, drops any active run and returns the stages that
// are not completed to idle. Completion flags already written are kept.
func (e *Engine) Reset(ctx context.Context) {
	e.sched.Reset(ctx)
}

// ResetProgress resets the scheduler and clears every completion and unlock flag the
// engine wrote, so the stages can fire again.
func (e *Engine) ResetProgress(ctx context.Context) error {
	e.sched.Reset(ctx)
	if err := flags.Clear(ctx, e.store, e.progressKeys()...); err != nil {
		return fmt.Errorf("failed to clear progress: %w", err)
	}
	e.sched.Resync(ctx)
	e.logger.Info("progress cleared")
	return nil
}

func (e *Engine) progressKeys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, st := range e.stages {
		for _, k := range []string{st.TriggeredKey, st.UnlockKey} {
			if k != "" && !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// Graph returns a dialogue graph by id, authored graphs first.
func (e *Engine) Graph(ctx context.Context, id string) (*domain.Graph, error) {
	return e.loader.LoadGraph(ctx, id)
}

// Stages returns the configured stages in ordinal order.
func (e *Engine) Stages() []domain.Stage {
	return e.sched.Stages()
}

// Store returns the flag store the engine reads and marks.
func (e *Engine) Store() ports.FlagStore {
	return e.store
}

// Loader returns the graph loader, built-in graphs included.
func (e *Engine) Loader() ports.GraphLoader {
	return e.loader
}

// Watch returns a channel that signals when the flag store changes outside the engine.
// Returns error if the store does not support watching.
func (e *Engine) Watch(ctx context.Context) (<-chan struct{}, error) {
	if w, ok := e.store.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	return nil, fmt.Errorf("current flag store does not support watching")
}

// Close stops every scheduler timer and hangs up an active run.
func (e *Engine) Close(ctx context.Context) {
	e.sched.Reset(ctx)
	e.sched.Stop()
}

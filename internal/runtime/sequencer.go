package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/callgate/internal/logging"
	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/callgate/pkg/ports"
	"github.com/aretw0/callgate/pkg/timeline"
	"github.com/google/uuid"
)

// RunEnd describes a finished dialogue run.
type RunEnd struct {
	RunID    string
	Stage    domain.Stage
	GraphID  string
	LastNode string
	Outcome  domain.Outcome
	Err      error
}

// RunInfo is a read-only view of the active run.
type RunInfo struct {
	RunID            string          `json:"run_id"`
	Stage            int             `json:"stage"`
	GraphID          string          `json:"graph_id"`
	NodeID           string          `json:"node_id,omitempty"`
	Kind             domain.NodeKind `json:"kind,omitempty"`
	AwaitingContinue bool            `json:"awaiting_continue"`
	AwaitingMedia    bool            `json:"awaiting_media"`
	StartedAt        time.Duration   `json:"started_at"`
}

// run is the transient state of one dialogue run. It is never persisted.
type run struct {
	id    string
	gen   uint64
	stage domain.Stage
	graph *domain.Graph
	onEnd func(context.Context, RunEnd)

	startedAt time.Duration
	current   domain.Node
	pending   *timeline.Timer

	awaitingContinue bool
	awaitingMedia    bool

	// transitioning is set while a node is being entered; nested transitions are rejected.
	transitioning bool
	// doneEarly records a completion signal delivered while the node was still being entered.
	doneEarly bool
	// deferred holds a timer callback that fired while the node was still being entered.
	deferred func(context.Context)
	ended    bool
}

// Sequencer walks a dialogue graph one node at a time.
// It is driven by the timeline and by external signals, all on the same goroutine.
type Sequencer struct {
	tl        *timeline.Timeline
	presenter ports.Presenter
	effects   *EffectDispatcher
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	newID     func() string

	gen uint64
	run *run
}

// SequencerOption configures a Sequencer.
type SequencerOption func(*Sequencer)

// WithSequencerPresenter sets the call surface. Without one, media segments use their
// fallback delay and beats still wait for a continue signal.
func WithSequencerPresenter(p ports.Presenter) SequencerOption {
	return func(s *Sequencer) { s.presenter = p }
}

// WithSequencerEffects sets the effect dispatcher.
func WithSequencerEffects(d *EffectDispatcher) SequencerOption {
	return func(s *Sequencer) { s.effects = d }
}

// WithSequencerHooks sets the lifecycle hooks.
func WithSequencerHooks(h domain.LifecycleHooks) SequencerOption {
	return func(s *Sequencer) { s.hooks = h }
}

// WithSequencerLogger sets the logger.
func WithSequencerLogger(l *slog.Logger) SequencerOption {
	return func(s *Sequencer) { s.logger = l }
}

// WithRunIDs overrides run id generation (tests use fixed ids).
func WithRunIDs(fn func() string) SequencerOption {
	return func(s *Sequencer) { s.newID = fn }
}

// NewSequencer creates a sequencer on the given timeline.
func NewSequencer(tl *timeline.Timeline, opts ...SequencerOption) *Sequencer {
	s := &Sequencer{
		tl:     tl,
		logger: logging.NewNop(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.effects == nil {
		s.effects = NewEffectDispatcher(s.logger, nil, nil)
	}
	return s
}

// Active reports whether a run is in progress.
func (s *Sequencer) Active() bool {
	return s.run != nil
}

// Current returns a view of the active run.
func (s *Sequencer) Current() (RunInfo, bool) {
	r := s.run
	if r == nil {
		return RunInfo{}, false
	}
	info := RunInfo{
		RunID:            r.id,
		Stage:            r.stage.Ordinal,
		GraphID:          r.graph.ID,
		AwaitingContinue: r.awaitingContinue,
		AwaitingMedia:    r.awaitingMedia,
		StartedAt:        r.startedAt,
	}
	if r.current != nil {
		info.NodeID = r.current.NodeID()
		info.Kind = r.current.Kind()
	}
	return info, true
}

// Begin starts a run of graph for stage. onEnd is called exactly once when the run terminates,
// which may happen before Begin returns if the presenter completes every node synchronously.
func (s *Sequencer) Begin(ctx context.Context, stage domain.Stage, graph *domain.Graph, onEnd func(context.Context, RunEnd)) error {
	if s.run != nil {
		return fmt.Errorf("%w: stage %d is running", domain.ErrStageBusy, s.run.stage.Ordinal)
	}
	if graph == nil {
		return fmt.Errorf("%w: %s", domain.ErrGraphNotFound, stage.GraphID)
	}
	if _, ok := graph.Node(graph.Start); !ok {
		return &domain.ConfigError{
			GraphID: graph.ID,
			Issues:  []domain.ConfigIssue{{Kind: domain.IssueMissingStart, NodeID: graph.Start, Detail: "start node not found"}},
		}
	}

	s.gen++
	r := &run{
		id:        s.newID(),
		gen:       s.gen,
		stage:     stage,
		graph:     graph,
		onEnd:     onEnd,
		startedAt: s.tl.Now(),
	}
	s.run = r
	s.logger.Info("call started", "run_id", r.id, "stage", stage.Ordinal, "graph", graph.ID)

	if s.presenter != nil {
		if err := s.presenter.OpenCall(ctx, stage); err != nil {
			s.logger.Warn("presenter failed to open call", "run_id", r.id, "err", err)
		}
		if r.ended {
			return nil
		}
	}

	s.transition(ctx, r, graph.Start)
	return nil
}

// GotoNode moves the active run to the node with the given id.
// It is rejected while another transition of the same run is still resolving.
func (s *Sequencer) GotoNode(ctx context.Context, id string) error {
	r := s.run
	if r == nil {
		return domain.ErrNoActiveRun
	}
	if r.transitioning {
		s.logger.Debug("transition rejected: already resolving", "run_id", r.id, "target", id)
		return domain.ErrTransitionInProgress
	}
	s.transition(ctx, r, id)
	return nil
}

// OnContinueSignal resumes an interactive beat.
func (s *Sequencer) OnContinueSignal(ctx context.Context) error {
	r := s.run
	if r == nil {
		return domain.ErrNoActiveRun
	}
	if !r.awaitingContinue {
		return fmt.Errorf("%w: continue", domain.ErrNotAwaiting)
	}
	r.awaitingContinue = false
	if r.transitioning {
		r.doneEarly = true
		return nil
	}
	s.advance(ctx, r)
	return nil
}

// OnMediaComplete reports that the presenter finished playing nodeID.
// Completions for any other node are stale and rejected.
func (s *Sequencer) OnMediaComplete(ctx context.Context, nodeID string) error {
	r := s.run
	if r == nil {
		return domain.ErrNoActiveRun
	}
	if !r.awaitingMedia || r.current == nil || r.current.NodeID() != nodeID {
		return fmt.Errorf("%w: media %q", domain.ErrNotAwaiting, nodeID)
	}
	r.awaitingMedia = false
	if r.transitioning {
		r.doneEarly = true
		return nil
	}
	s.afterMedia(ctx, r)
	return nil
}

// HangUp ends the active run early.
func (s *Sequencer) HangUp(ctx context.Context) error {
	r := s.run
	if r == nil {
		return domain.ErrNoActiveRun
	}
	s.finish(ctx, r, domain.OutcomeHungUp, nil)
	return nil
}

func (s *Sequencer) transition(ctx context.Context, r *run, id string) {
	r.transitioning = true
	s.enter(ctx, r, id)
	r.transitioning = false
	s.resolveDeferred(ctx, r)
}

// resolveDeferred applies a timer or completion signal that arrived while the current node
// was still being entered.
func (s *Sequencer) resolveDeferred(ctx context.Context, r *run) {
	if r.ended {
		return
	}
	if fn := r.deferred; fn != nil {
		r.deferred = nil
		r.doneEarly = false
		fn(ctx)
		return
	}
	if !r.doneEarly {
		return
	}
	r.doneEarly = false
	if r.current.Kind() == domain.KindMedia {
		s.afterMedia(ctx, r)
		return
	}
	s.advance(ctx, r)
}

// enter performs one node transition. Every call out (hooks, effects, presenter) may end the
// run, so r.ended is checked after each one.
func (s *Sequencer) enter(ctx context.Context, r *run, id string) {
	s.stopPending(r)

	if prev := r.current; prev != nil {
		r.current = nil
		r.awaitingContinue, r.awaitingMedia = false, false
		s.emitNode(ctx, s.hooks.OnNodeEnded, domain.EventNodeEnded, r, prev)
		if r.ended {
			return
		}
	}

	node, ok := r.graph.Node(id)
	if !ok {
		err := &domain.ConfigError{
			GraphID: r.graph.ID,
			Issues:  []domain.ConfigIssue{{Kind: domain.IssueDangling, NodeID: id, Detail: "node not found"}},
		}
		s.logger.Error("aborting call", "run_id", r.id, "node", id, "err", err)
		s.finish(ctx, r, domain.OutcomeAborted, err)
		return
	}

	r.current = node
	r.doneEarly = false
	s.logger.Debug("node started", "run_id", r.id, "node", node.NodeID(), "kind", node.Kind())
	s.emitNode(ctx, s.hooks.OnNodeStarted, domain.EventNodeStarted, r, node)
	if r.ended {
		return
	}

	s.effects.Apply(ctx, node.NodeEffects())
	if r.ended {
		return
	}

	switch n := node.(type) {
	case domain.MediaSegment:
		s.playMedia(ctx, r, n)
	case domain.InteractiveBeat:
		r.awaitingContinue = true
		if s.presenter != nil {
			if err := s.presenter.ShowBeat(ctx, n); err != nil {
				s.logger.Warn("presenter failed to show beat", "run_id", r.id, "node", n.ID, "err", err)
			}
		}
	}
}

func (s *Sequencer) playMedia(ctx context.Context, r *run, n domain.MediaSegment) {
	if n.Clip != "" && s.presenter != nil {
		r.awaitingMedia = true
		err := s.presenter.PlayMedia(ctx, n)
		if err == nil || r.ended {
			return
		}
		level := slog.LevelWarn
		if errors.Is(err, domain.ErrMediaUnsupported) {
			level = slog.LevelDebug
		}
		s.logger.Log(ctx, level, "media unavailable, using fallback", "run_id", r.id, "node", n.ID, "clip", n.Clip, "err", err)
		// A failed start cannot report completion; drop anything it did report.
		r.awaitingMedia = false
		r.doneEarly = false
	}
	s.schedule(r, n.FallbackDelay, func(ctx context.Context) {
		s.advance(ctx, r)
	})
}

func (s *Sequencer) afterMedia(ctx context.Context, r *run) {
	seg, _ := r.current.(domain.MediaSegment)
	if seg.Hold > 0 {
		s.schedule(r, seg.Hold, func(ctx context.Context) {
			s.advance(ctx, r)
		})
		return
	}
	s.advance(ctx, r)
}

func (s *Sequencer) advance(ctx context.Context, r *run) {
	next := r.current.NextID()
	if next == "" {
		s.finish(ctx, r, domain.OutcomeCompleted, nil)
		return
	}
	s.transition(ctx, r, next)
}

// schedule arms the run's single pending timer. The callback is a no-op unless the same run
// is still on the same node when it fires.
func (s *Sequencer) schedule(r *run, d time.Duration, fn func(context.Context)) {
	s.stopPending(r)
	gen, nodeID := r.gen, r.current.NodeID()
	r.pending = s.tl.AfterFunc(d, func(ctx context.Context) {
		cur := s.run
		if cur == nil || cur.gen != gen || cur.ended {
			return
		}
		if cur.current == nil || cur.current.NodeID() != nodeID {
			return
		}
		cur.pending = nil
		if cur.transitioning {
			cur.deferred = fn
			return
		}
		fn(ctx)
	})
}

func (s *Sequencer) stopPending(r *run) {
	r.deferred = nil
	if r.pending != nil {
		r.pending.Stop()
		r.pending = nil
	}
}

func (s *Sequencer) finish(ctx context.Context, r *run, outcome domain.Outcome, cause error) {
	if r.ended {
		return
	}
	r.ended = true
	s.stopPending(r)

	last := ""
	if cur := r.current; cur != nil {
		last = cur.NodeID()
		r.current = nil
		s.emitNode(ctx, s.hooks.OnNodeEnded, domain.EventNodeEnded, r, cur)
	}
	r.awaitingContinue, r.awaitingMedia = false, false
	if s.run == r {
		s.run = nil
	}

	if s.presenter != nil {
		if err := s.presenter.CloseCall(ctx, outcome); err != nil {
			s.logger.Warn("presenter failed to close call", "run_id", r.id, "err", err)
		}
	}

	s.logger.Info("call ended", "run_id", r.id, "stage", r.stage.Ordinal, "outcome", outcome, "last_node", last)

	if s.hooks.OnRunEnded != nil {
		s.hooks.OnRunEnded(ctx, &domain.RunEvent{
			EventBase: domain.EventBase{
				Timestamp: s.tl.Now(),
				Type:      domain.EventRunEnded,
				RunID:     r.id,
				Stage:     r.stage.Ordinal,
			},
			GraphID:  r.graph.ID,
			LastNode: last,
			Outcome:  outcome,
			Duration: s.tl.Now() - r.startedAt,
			Err:      cause,
		})
	}

	if r.onEnd != nil {
		r.onEnd(ctx, RunEnd{
			RunID:    r.id,
			Stage:    r.stage,
			GraphID:  r.graph.ID,
			LastNode: last,
			Outcome:  outcome,
			Err:      cause,
		})
	}
}

func (s *Sequencer) emitNode(ctx context.Context, hook func(context.Context, *domain.NodeEvent), typ domain.EventType, r *run, n domain.Node) {
	if hook == nil {
		return
	}
	hook(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{
			Timestamp: s.tl.Now(),
			Type:      typ,
			RunID:     r.id,
			Stage:     r.stage.Ordinal,
		},
		GraphID: r.graph.ID,
		NodeID:  n.NodeID(),
		Kind:    n.Kind(),
	})
}

package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aretw0/callgate/internal/logging"
	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/callgate/pkg/flags"
	"github.com/aretw0/callgate/pkg/ports"
	"github.com/aretw0/callgate/pkg/timeline"
)

// Default scheduler cadence.
const (
	DefaultPollInterval = time.Second
	DefaultIdleProbe    = 100 * time.Millisecond
	DefaultSettleDelay  = 500 * time.Millisecond
)

// StageState is the lifecycle position of one stage.
type StageState int

const (
	StateIdle StageState = iota
	StateConditionMet
	StateWaitingForIdle
	StateTriggered
	StateRunning
	StateCompleted
)

func (s StageState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConditionMet:
		return "condition_met"
	case StateWaitingForIdle:
		return "waiting_for_idle"
	case StateTriggered:
		return "triggered"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	}
	return fmt.Sprintf("StageState(%d)", int(s))
}

// MarshalText renders the state name in JSON and logs.
func (s StageState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *StageState) UnmarshalText(text []byte) error {
	for st := StateIdle; st <= StateCompleted; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown stage state %q", text)
}

// SchedulerConfig holds the scheduler cadence. Zero fields take the defaults.
type SchedulerConfig struct {
	PollInterval time.Duration
	IdleProbe    time.Duration
	SettleDelay  time.Duration
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.IdleProbe <= 0 {
		c.IdleProbe = DefaultIdleProbe
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	return c
}

// StageStatus is a read-only view of one stage.
type StageStatus struct {
	Stage       domain.Stage `json:"stage"`
	State       StageState   `json:"state"`
	Forced      bool         `json:"forced,omitempty"`
	PendingMark bool         `json:"pending_mark,omitempty"`
}

type stageSlot struct {
	stage       domain.Stage
	state       StageState
	forced      bool
	pendingMark bool
}

// Scheduler gates the stages: it polls their conditions, waits for an idle desktop,
// fires each stage at most once and records completion in the flag store.
// Only one stage holds the call slot (WaitingForIdle through Running) at a time.
type Scheduler struct {
	tl        *timeline.Timeline
	store     ports.FlagStore
	loader    ports.GraphLoader
	idle      *IdleSynchronizer
	seq       *Sequencer
	presenter ports.Presenter
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	cfg       SchedulerConfig

	slots  []*stageSlot
	active *stageSlot

	pollTimer  *timeline.Timer
	probeTimer *timeline.Timer

	idleSet   bool
	idleSince time.Duration

	started   bool
	resetting bool
}

// SchedulerDeps are the collaborators of a Scheduler.
type SchedulerDeps struct {
	Timeline  *timeline.Timeline
	Store     ports.FlagStore
	Loader    ports.GraphLoader
	Idle      *IdleSynchronizer
	Sequencer *Sequencer
	Presenter ports.Presenter
	Hooks     domain.LifecycleHooks
	Logger    *slog.Logger
}

// NewScheduler creates a scheduler for the given stages, ordered by ordinal.
func NewScheduler(deps SchedulerDeps, cfg SchedulerConfig, stages ...domain.Stage) (*Scheduler, error) {
	if deps.Timeline == nil || deps.Store == nil || deps.Loader == nil || deps.Sequencer == nil {
		return nil, errors.New("scheduler requires a timeline, a flag store, a graph loader and a sequencer")
	}
	s := &Scheduler{
		tl:        deps.Timeline,
		store:     deps.Store,
		loader:    deps.Loader,
		idle:      deps.Idle,
		seq:       deps.Sequencer,
		presenter: deps.Presenter,
		hooks:     deps.Hooks,
		logger:    deps.Logger,
		cfg:       cfg.withDefaults(),
	}
	if s.idle == nil {
		s.idle = NewIdleSynchronizer()
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}

	seen := make(map[int]bool)
	for _, st := range stages {
		if seen[st.Ordinal] {
			return nil, fmt.Errorf("duplicate stage ordinal %d", st.Ordinal)
		}
		if st.TriggeredKey == "" {
			return nil, fmt.Errorf("stage %d has no triggered key", st.Ordinal)
		}
		seen[st.Ordinal] = true
		s.slots = append(s.slots, &stageSlot{stage: st})
	}
	sort.Slice(s.slots, func(i, j int) bool { return s.slots[i].stage.Ordinal < s.slots[j].stage.Ordinal })
	return s, nil
}

// Start arms the poll timer. The first poll runs on the next timeline advance.
func (s *Scheduler) Start() {
	if s.started {
		return
	}
	s.started = true
	s.pollTimer = s.tl.AfterFunc(0, s.poll)
}

// Stop cancels every scheduler timer. A running call is left to the sequencer.
func (s *Scheduler) Stop() {
	s.started = false
	s.pollTimer.Stop()
	s.pollTimer = nil
	s.stopProbe()
}

// Recheck runs one poll step immediately (page change, save reload).
func (s *Scheduler) Recheck(ctx context.Context) {
	s.step(ctx)
	s.ensurePolling()
}

// RequestCallStage forces a stage into WaitingForIdle, bypassing its conditions.
// A completed stage may be replayed.
func (s *Scheduler) RequestCallStage(ctx context.Context, ordinal int) error {
	slot := s.slot(ordinal)
	if slot == nil {
		return fmt.Errorf("%w: %d", domain.ErrUnknownStage, ordinal)
	}
	if s.active == slot {
		return nil
	}
	if s.active != nil {
		return fmt.Errorf("%w: stage %d holds the call slot", domain.ErrStageBusy, s.active.stage.Ordinal)
	}
	s.logger.Info("stage requested", "stage", ordinal, "previous_state", slot.state)
	slot.forced = true
	s.wait(slot)
	return nil
}

// Reset cancels every timer, hangs up any run and returns every stage that is not
// completed to Idle. Completion is not recorded for a call cut short by a reset.
func (s *Scheduler) Reset(ctx context.Context) {
	s.stopProbe()
	s.idleSet = false
	if s.seq.Active() {
		s.resetting = true
		_ = s.seq.HangUp(ctx)
		s.resetting = false
	}
	s.active = nil
	for _, slot := range s.slots {
		slot.forced = false
		if slot.state != StateCompleted {
			slot.state = StateIdle
		}
	}
	s.pollTimer.Stop()
	s.pollTimer = nil
	if s.started {
		s.pollTimer = s.tl.AfterFunc(0, s.poll)
	}
	s.logger.Info("scheduler reset")
}

// Resync drops the completion cache so stage state is read back from the store.
// Reset tooling calls it after clearing progress flags.
func (s *Scheduler) Resync(ctx context.Context) {
	for _, slot := range s.slots {
		if slot == s.active {
			continue
		}
		slot.state = StateIdle
		slot.pendingMark = false
	}
	s.Recheck(ctx)
}

// Statuses returns a view of every stage in ordinal order.
func (s *Scheduler) Statuses() []StageStatus {
	out := make([]StageStatus, len(s.slots))
	for i, slot := range s.slots {
		out[i] = StageStatus{
			Stage:       slot.stage,
			State:       slot.state,
			Forced:      slot.forced,
			PendingMark: slot.pendingMark,
		}
	}
	return out
}

// State returns the state of one stage.
func (s *Scheduler) State(ordinal int) (StageState, error) {
	slot := s.slot(ordinal)
	if slot == nil {
		return StateIdle, fmt.Errorf("%w: %d", domain.ErrUnknownStage, ordinal)
	}
	return slot.state, nil
}

// Stages returns the configured stages in ordinal order.
func (s *Scheduler) Stages() []domain.Stage {
	out := make([]domain.Stage, len(s.slots))
	for i, slot := range s.slots {
		out[i] = slot.stage
	}
	return out
}

func (s *Scheduler) slot(ordinal int) *stageSlot {
	for _, slot := range s.slots {
		if slot.stage.Ordinal == ordinal {
			return slot
		}
	}
	return nil
}

func (s *Scheduler) poll(ctx context.Context) {
	s.pollTimer = nil
	s.step(ctx)
	s.ensurePolling()
}

func (s *Scheduler) ensurePolling() {
	if !s.started || s.pollTimer != nil || s.done() {
		return
	}
	s.pollTimer = s.tl.AfterFunc(s.cfg.PollInterval, s.poll)
}

// done is true once every stage is completed and durably marked.
// Polling then stops for good.
func (s *Scheduler) done() bool {
	if s.active != nil {
		return false
	}
	for _, slot := range s.slots {
		if slot.state != StateCompleted || slot.pendingMark {
			return false
		}
	}
	return true
}

// step is the poll tick: retry failed completion marks, sync completion from the store,
// then evaluate the lowest stage that is not completed.
func (s *Scheduler) step(ctx context.Context) {
	s.flushMarks(ctx)
	if s.active != nil {
		return
	}

	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		s.logger.Debug("flag store unavailable, retrying next poll", "err", err)
		return
	}

	for _, slot := range s.slots {
		if slot.state != StateCompleted && snap.Truthy(slot.stage.TriggeredKey) {
			slot.state = StateCompleted
			s.logger.Debug("stage already completed", "stage", slot.stage.Ordinal)
		}
	}

	for _, slot := range s.slots {
		if slot.state == StateCompleted {
			continue
		}
		if Evaluate(slot.stage, snap) {
			slot.state = StateConditionMet
			s.logger.Info("stage condition met", "stage", slot.stage.Ordinal)
			s.wait(slot)
		}
		// Later stages wait until this one completes.
		return
	}
}

func (s *Scheduler) flushMarks(ctx context.Context) {
	for _, slot := range s.slots {
		if !slot.pendingMark {
			continue
		}
		if _, err := flags.Mark(ctx, s.store, slot.stage.TriggeredKey); err != nil {
			s.logger.Warn("completion mark still failing", "stage", slot.stage.Ordinal, "err", err)
			continue
		}
		slot.pendingMark = false
		s.logger.Info("completion mark recovered", "stage", slot.stage.Ordinal)
	}
}

// wait claims the call slot for a stage and starts sampling the desktop.
func (s *Scheduler) wait(slot *stageSlot) {
	if s.active == slot && slot.state == StateWaitingForIdle {
		return
	}
	s.active = slot
	slot.state = StateWaitingForIdle
	s.idleSet = false
	s.stopProbe()
	s.probeTimer = s.tl.AfterFunc(0, s.probe)
}

func (s *Scheduler) scheduleProbe() {
	s.stopProbe()
	s.probeTimer = s.tl.AfterFunc(s.cfg.IdleProbe, s.probe)
}

func (s *Scheduler) stopProbe() {
	s.probeTimer.Stop()
	s.probeTimer = nil
}

func (s *Scheduler) probe(ctx context.Context) {
	s.probeTimer = nil
	slot := s.active
	if slot == nil {
		return
	}

	switch slot.state {
	case StateWaitingForIdle:
		if !s.idle.IsIdle() {
			s.idleSet = false
			s.scheduleProbe()
			return
		}
		now := s.tl.Now()
		if !s.idleSet {
			s.idleSet = true
			s.idleSince = now
		}
		if now-s.idleSince >= s.cfg.SettleDelay {
			s.trigger(ctx, slot)
			return
		}
		s.scheduleProbe()
	case StateTriggered:
		if !s.idle.IsIdle() {
			s.scheduleProbe()
			return
		}
		s.engage(ctx, slot)
	}
}

func (s *Scheduler) trigger(ctx context.Context, slot *stageSlot) {
	slot.state = StateTriggered
	s.logger.Info("stage triggered", "stage", slot.stage.Ordinal, "forced", slot.forced)

	if key := slot.stage.UnlockKey; key != "" {
		if _, err := flags.Mark(ctx, s.store, key); err != nil {
			s.logger.Warn("failed to unlock feature", "key", key, "err", err)
		}
	}

	if s.hooks.OnStageTriggered != nil {
		s.hooks.OnStageTriggered(ctx, &domain.StageEvent{
			EventBase: domain.EventBase{
				Timestamp: s.tl.Now(),
				Type:      domain.EventStageTriggered,
				Stage:     slot.stage.Ordinal,
			},
			Name:   slot.stage.Name,
			Forced: slot.forced,
		})
	}

	s.engage(ctx, slot)
}

// engage hands the stage to the sequencer. An unavailable presenter keeps the stage
// Triggered and engagement is retried on the next idle probe.
func (s *Scheduler) engage(ctx context.Context, slot *stageSlot) {
	if s.presenter != nil && !s.presenter.Available() {
		s.logger.Debug("presenter unavailable, retrying", "stage", slot.stage.Ordinal)
		s.scheduleProbe()
		return
	}

	graph, err := s.loader.LoadGraph(ctx, slot.stage.GraphID)
	if err != nil {
		s.logger.Error("cannot load call graph", "stage", slot.stage.Ordinal, "graph", slot.stage.GraphID, "err", err)
		s.complete(ctx, slot, domain.OutcomeAborted)
		return
	}

	slot.state = StateRunning
	err = s.seq.Begin(ctx, slot.stage, graph, func(ctx context.Context, end RunEnd) {
		s.complete(ctx, slot, end.Outcome)
	})
	if err != nil {
		s.logger.Error("cannot begin call", "stage", slot.stage.Ordinal, "err", err)
		s.complete(ctx, slot, domain.OutcomeAborted)
	}
}

// complete releases the call slot and durably records completion.
func (s *Scheduler) complete(ctx context.Context, slot *stageSlot, outcome domain.Outcome) {
	if s.active == slot {
		s.active = nil
	}
	s.stopProbe()
	slot.forced = false

	if s.resetting {
		slot.state = StateIdle
		return
	}

	slot.state = StateCompleted
	if _, err := flags.Mark(ctx, s.store, slot.stage.TriggeredKey); err != nil {
		slot.pendingMark = true
		s.logger.Warn("failed to record stage completion, will retry", "stage", slot.stage.Ordinal, "err", err)
	}
	s.logger.Info("stage completed", "stage", slot.stage.Ordinal, "outcome", outcome)
	s.ensurePolling()
}

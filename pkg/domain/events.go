package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeStarted    EventType = "node_started"
	EventNodeEnded      EventType = "node_ended"
	EventStageTriggered EventType = "stage_triggered"
	EventRunEnded       EventType = "run_ended"
)

// Outcome describes how a dialogue run terminated.
type Outcome string

const (
	// OutcomeCompleted means the run walked to a node with no next id.
	OutcomeCompleted Outcome = "completed"
	// OutcomeHungUp means the player (or tooling) ended the call early.
	OutcomeHungUp Outcome = "hung_up"
	// OutcomeAborted means a configuration error ended the run.
	OutcomeAborted Outcome = "aborted"
)

// EventBase contains common fields for all events.
type EventBase struct {
	// Timestamp is the timeline time of the event, not wall-clock time.
	Timestamp time.Duration `json:"timestamp"`
	Type      EventType     `json:"type"`
	RunID     string        `json:"run_id,omitempty"`
	Stage     int           `json:"stage"`
}

// NodeEvent represents entry into or exit from a dialogue node.
type NodeEvent struct {
	EventBase
	GraphID string   `json:"graph_id"`
	NodeID  string   `json:"node_id"`
	Kind    NodeKind `json:"kind"`
}

// StageEvent is emitted when a stage fires.
type StageEvent struct {
	EventBase
	Name   string `json:"name"`
	Forced bool   `json:"forced,omitempty"`
}

// RunEvent is emitted once when a dialogue run terminates.
type RunEvent struct {
	EventBase
	GraphID  string        `json:"graph_id"`
	LastNode string        `json:"last_node,omitempty"`
	Outcome  Outcome       `json:"outcome"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
// Hooks run on the engine's timeline; they must not call back into the engine.
type LifecycleHooks struct {
	OnNodeStarted    func(context.Context, *NodeEvent)
	OnNodeEnded      func(context.Context, *NodeEvent)
	OnStageTriggered func(context.Context, *StageEvent)
	OnRunEnded       func(context.Context, *RunEvent)
}

// MergeHooks fans every callback out to each non-nil hook set, in order.
func MergeHooks(hooks ...LifecycleHooks) LifecycleHooks {
	var merged LifecycleHooks
	for _, h := range hooks {
		if h.OnNodeStarted != nil {
			prev := merged.OnNodeStarted
			merged.OnNodeStarted = func(ctx context.Context, e *NodeEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnNodeStarted(ctx, e)
			}
		}
		if h.OnNodeEnded != nil {
			prev := merged.OnNodeEnded
			merged.OnNodeEnded = func(ctx context.Context, e *NodeEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnNodeEnded(ctx, e)
			}
		}
		if h.OnStageTriggered != nil {
			prev := merged.OnStageTriggered
			merged.OnStageTriggered = func(ctx context.Context, e *StageEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnStageTriggered(ctx, e)
			}
		}
		if h.OnRunEnded != nil {
			prev := merged.OnRunEnded
			merged.OnRunEnded = func(ctx context.Context, e *RunEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnRunEnded(ctx, e)
			}
		}
	}
	return merged
}

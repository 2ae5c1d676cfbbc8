package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFlagNotFound is returned when a flag key has never been written.
var ErrFlagNotFound = errors.New("flag not found")

// ErrStoreNotLoaded is returned while the backing save has not been read yet.
var ErrStoreNotLoaded = errors.New("flag store not loaded")

// ErrUnknownStage is returned for stage ordinals that are not configured.
var ErrUnknownStage = errors.New("unknown stage")

// ErrStageBusy is returned when another stage holds the call slot.
var ErrStageBusy = errors.New("another stage is in progress")

// ErrNoActiveRun is returned for run signals while no call is in progress.
var ErrNoActiveRun = errors.New("no active call")

// ErrTransitionInProgress is returned when a node transition is requested while one is resolving.
var ErrTransitionInProgress = errors.New("node transition already in progress")

// ErrNotAwaiting is returned for continue/media signals the current node is not waiting for.
var ErrNotAwaiting = errors.New("current node is not waiting for this signal")

// ErrGraphNotFound is returned by loaders for unknown graph ids.
var ErrGraphNotFound = errors.New("dialogue graph not found")

// ErrPresenterUnavailable is returned when the call surface cannot be engaged.
var ErrPresenterUnavailable = errors.New("presenter unavailable")

// ErrMediaUnsupported is returned by presenters that cannot play clips at all.
// The segment then advances on its fallback delay without a warning.
var ErrMediaUnsupported = errors.New("presenter cannot play media")

// IssueKind classifies a graph configuration problem.
type IssueKind string

const (
	IssueDuplicate    IssueKind = "duplicate_node"
	IssueDangling     IssueKind = "dangling_next"
	IssueMissingStart IssueKind = "missing_start"
	IssueCycle        IssueKind = "cycle"
	IssueEmptyID      IssueKind = "empty_id"
	IssueInvalidField IssueKind = "invalid_field"
)

// ConfigIssue is a single configuration problem in a graph.
type ConfigIssue struct {
	Kind   IssueKind
	NodeID string
	Detail string
}

func (i ConfigIssue) String() string {
	if i.NodeID == "" {
		return fmt.Sprintf("%s: %s", i.Kind, i.Detail)
	}
	return fmt.Sprintf("%s: node %q: %s", i.Kind, i.NodeID, i.Detail)
}

// ConfigError aggregates every configuration issue found in one graph.
// A graph with a ConfigError is never run.
type ConfigError struct {
	GraphID string
	Issues  []ConfigIssue
}

func (e *ConfigError) add(kind IssueKind, nodeID, detail string) {
	e.Issues = append(e.Issues, ConfigIssue{Kind: kind, NodeID: nodeID, Detail: detail})
}

// Has reports whether an issue of the given kind was recorded.
func (e *ConfigError) Has(kind IssueKind) bool {
	for _, i := range e.Issues {
		if i.Kind == kind {
			return true
		}
	}
	return false
}

func (e *ConfigError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("graph %q: %s", e.GraphID, e.Issues[0])
	}
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = fmt.Sprintf("  %d. %s", i+1, issue)
	}
	return fmt.Sprintf("graph %q: %d configuration errors:\n%s", e.GraphID, len(e.Issues), strings.Join(parts, "\n"))
}

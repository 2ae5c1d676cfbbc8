// Package validator checks authored and built-in graphs before they reach a player.
package validator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/callgate/pkg/ports"
)

// Report is the outcome of validating one graph.
type Report struct {
	GraphID string `json:"graph_id"`

	// Issues are configuration errors; a graph with issues never runs.
	Issues []domain.ConfigIssue `json:"issues,omitempty"`

	// Unreachable nodes are legal but usually a writing mistake.
	Unreachable []string `json:"unreachable,omitempty"`

	// Stages lists the stage ordinals that play this graph.
	Stages []int `json:"stages,omitempty"`

	// Err is a load failure that is not a configuration error (I/O, parse).
	Err error `json:"-"`
}

// OK reports whether the graph can run.
func (r Report) OK() bool {
	return r.Err == nil && len(r.Issues) == 0
}

func (r Report) String() string {
	var sb strings.Builder
	switch {
	case r.Err != nil:
		fmt.Fprintf(&sb, "✗ %s: %v", r.GraphID, r.Err)
	case len(r.Issues) > 0:
		fmt.Fprintf(&sb, "✗ %s: %d issue(s)", r.GraphID, len(r.Issues))
		for _, issue := range r.Issues {
			fmt.Fprintf(&sb, "\n  - %s", issue)
		}
	default:
		fmt.Fprintf(&sb, "✓ %s", r.GraphID)
	}
	if len(r.Unreachable) > 0 {
		fmt.Fprintf(&sb, "\n  ! unreachable: %s", strings.Join(r.Unreachable, ", "))
	}
	return sb.String()
}

// Validate loads every graph the loader lists plus every graph a stage references.
// Reports come back in loader order, with stage-only graphs appended.
func Validate(ctx context.Context, loader ports.GraphLoader, stages []domain.Stage) ([]Report, error) {
	ids, err := loader.ListGraphs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list graphs: %w", err)
	}

	users := make(map[string][]int)
	for _, s := range stages {
		if _, seen := users[s.GraphID]; !seen && !contains(ids, s.GraphID) {
			ids = append(ids, s.GraphID)
		}
		users[s.GraphID] = append(users[s.GraphID], s.Ordinal)
	}

	reports := make([]Report, 0, len(ids))
	for _, id := range ids {
		r := check(ctx, loader, id)
		r.Stages = users[id]
		reports = append(reports, r)
	}
	return reports, nil
}

func check(ctx context.Context, loader ports.GraphLoader, id string) Report {
	r := Report{GraphID: id}

	g, err := loader.LoadGraph(ctx, id)
	var cfgErr *domain.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		r.Issues = cfgErr.Issues
	case err != nil:
		r.Err = err
	default:
		r.Unreachable = g.Unreachable()
	}
	return r
}

// Failed returns the reports that would stop a graph from running.
func Failed(reports []Report) []Report {
	var out []Report
	for _, r := range reports {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

package runtime

import (
	"strings"

	"github.com/aretw0/callgate/pkg/domain"
)

// Evaluate reports whether every condition group of the stage holds in snap.
// It is pure: the same inputs always give the same answer. A nil snapshot (store not
// loaded), a stage without groups or an empty group all evaluate to false.
func Evaluate(stage domain.Stage, snap domain.Snapshot) bool {
	if snap == nil || len(stage.Groups) == 0 {
		return false
	}
	for _, g := range stage.Groups {
		if !groupHolds(g, snap) {
			return false
		}
	}
	return true
}

// GroupResult is the outcome of one condition group, for diagnostics.
type GroupResult struct {
	Name      string   `json:"name"`
	Satisfied bool     `json:"satisfied"`
	Matched   []string `json:"matched,omitempty"`
	Missing   []string `json:"missing,omitempty"`
}

// Explain evaluates each group of the stage separately.
func Explain(stage domain.Stage, snap domain.Snapshot) []GroupResult {
	out := make([]GroupResult, 0, len(stage.Groups))
	for _, g := range stage.Groups {
		res := GroupResult{Name: g.Name}
		for _, c := range g.AnyOf {
			if snap != nil && conditionHolds(c, snap) {
				res.Matched = append(res.Matched, c.String())
			} else {
				res.Missing = append(res.Missing, c.String())
			}
		}
		res.Satisfied = len(res.Matched) > 0
		out = append(out, res)
	}
	return out
}

func groupHolds(g domain.ConditionGroup, snap domain.Snapshot) bool {
	for _, c := range g.AnyOf {
		if conditionHolds(c, snap) {
			return true
		}
	}
	return false
}

func conditionHolds(c domain.Condition, snap domain.Snapshot) bool {
	v, ok := snap.Get(c.Key)
	if !ok {
		return false
	}
	switch c.Op {
	case domain.OpTrue, "":
		return v.Truthy()
	case domain.OpContains:
		s, isString := v.AsString()
		if !isString {
			return false
		}
		s = strings.ToLower(s)
		for _, kw := range c.Keywords {
			if kw != "" && strings.Contains(s, strings.ToLower(kw)) {
				return true
			}
		}
		return false
	case domain.OpAtLeast:
		n, isInt := v.Int()
		return isInt && n >= c.Min
	}
	return false
}

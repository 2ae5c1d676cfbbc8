package domain

import "fmt"

// Op names how a single condition inspects its flag.
type Op string

const (
	// OpTrue holds when the flag is truthy.
	OpTrue Op = "true"
	// OpContains holds when the flag is a string containing any keyword (case-insensitive).
	OpContains Op = "contains"
	// OpAtLeast holds when the flag parses as an integer >= Min.
	OpAtLeast Op = "at_least"
)

// Condition is one alternative inside a ConditionGroup.
type Condition struct {
	Key      string   `json:"key" yaml:"key"`
	Op       Op       `json:"op" yaml:"op"`
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Min      int      `json:"min,omitempty" yaml:"min,omitempty"`
}

// Flag is shorthand for an OpTrue condition.
func Flag(key string) Condition {
	return Condition{Key: key, Op: OpTrue}
}

// Contains is shorthand for an OpContains condition.
func Contains(key string, keywords ...string) Condition {
	return Condition{Key: key, Op: OpContains, Keywords: keywords}
}

// AtLeast is shorthand for an OpAtLeast condition.
func AtLeast(key string, min int) Condition {
	return Condition{Key: key, Op: OpAtLeast, Min: min}
}

func (c Condition) String() string {
	switch c.Op {
	case OpContains:
		return fmt.Sprintf("%s contains %v", c.Key, c.Keywords)
	case OpAtLeast:
		return fmt.Sprintf("%s >= %d", c.Key, c.Min)
	}
	return c.Key
}

// ConditionGroup is satisfied when at least one of its conditions holds.
// Alternatives are equivalent ids for the same fact (e.g. legacy puzzle ids).
type ConditionGroup struct {
	Name  string      `json:"name" yaml:"name"`
	AnyOf []Condition `json:"any_of" yaml:"any_of"`
}

// Group builds a named OR-group.
func Group(name string, anyOf ...Condition) ConditionGroup {
	return ConditionGroup{Name: name, AnyOf: anyOf}
}

// Stage is one narrative gate: all groups must hold before its call is placed.
type Stage struct {
	Ordinal int              `json:"ordinal"`
	Name    string           `json:"name"`
	Groups  []ConditionGroup `json:"groups"`

	// TriggeredKey marks completion in the flag store.
	TriggeredKey string `json:"triggered_key"`

	// UnlockKey, if set, is marked when the stage fires, before the call is engaged.
	UnlockKey string `json:"unlock_key,omitempty"`

	// GraphID selects the dialogue graph to run.
	GraphID string `json:"graph_id"`
}

// Package dto holds the on-disk shape of authored dialogue graphs.
// The same documents are read from YAML, JSON and Loam front matter.
package dto

// GraphDocument is one authored dialogue graph.
type GraphDocument struct {
	ID    string         `json:"id" yaml:"id" mapstructure:"id"`
	Start string         `json:"start,omitempty" yaml:"start,omitempty" mapstructure:"start"`
	Nodes []NodeDocument `json:"nodes" yaml:"nodes" mapstructure:"nodes"`
}

// NodeDocument is one node of a graph. Kind selects which fields apply.
//
// Without Next, a node flows into the node declared after it; End stops the call there.
// Durations are Go duration strings ("3s", "500ms").
type NodeDocument struct {
	ID   string `json:"id" yaml:"id" mapstructure:"id"`
	Kind string `json:"kind" yaml:"kind" mapstructure:"kind"`
	Next string `json:"next,omitempty" yaml:"next,omitempty" mapstructure:"next"`
	End  bool   `json:"end,omitempty" yaml:"end,omitempty" mapstructure:"end"`

	// Media segments
	Clip     string `json:"clip,omitempty" yaml:"clip,omitempty" mapstructure:"clip"`
	Fallback string `json:"fallback,omitempty" yaml:"fallback,omitempty" mapstructure:"fallback"`
	Hold     string `json:"hold,omitempty" yaml:"hold,omitempty" mapstructure:"hold"`
	Caption  string `json:"caption,omitempty" yaml:"caption,omitempty" mapstructure:"caption"`

	// Interactive beats
	Image string `json:"image,omitempty" yaml:"image,omitempty" mapstructure:"image"`
	Text  string `json:"text,omitempty" yaml:"text,omitempty" mapstructure:"text"`

	Shake  *ShakeDocument `json:"shake,omitempty" yaml:"shake,omitempty" mapstructure:"shake"`
	Glitch bool           `json:"glitch,omitempty" yaml:"glitch,omitempty" mapstructure:"glitch"`
}

// ShakeDocument is a screen shake effect.
type ShakeDocument struct {
	Intensity float64 `json:"intensity" yaml:"intensity" mapstructure:"intensity"`
	Duration  string  `json:"duration" yaml:"duration" mapstructure:"duration"`
}

package domain

import "time"

// NodeKind distinguishes the two dialogue node variants.
type NodeKind string

const (
	// KindMedia is a pre-rendered segment that advances on playback completion or a timed fallback.
	KindMedia NodeKind = "media"
	// KindBeat is a player-paced static beat that waits for an explicit continue signal.
	KindBeat NodeKind = "beat"
)

// Shake describes a screen shake request.
type Shake struct {
	Intensity float64       `json:"intensity" yaml:"intensity"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// Effects are cosmetic side effects applied once when a node is entered.
type Effects struct {
	Shake  *Shake `json:"shake,omitempty" yaml:"shake,omitempty"`
	Glitch bool   `json:"glitch,omitempty" yaml:"glitch,omitempty"`
}

// IsZero reports whether no effect is declared.
func (e Effects) IsZero() bool {
	return e.Shake == nil && !e.Glitch
}

// Node is a dialogue node. It is implemented only by MediaSegment and InteractiveBeat.
type Node interface {
	NodeID() string
	// NextID is the id of the following node; empty means end of graph.
	NextID() string
	NodeEffects() Effects
	Kind() NodeKind

	sealed()
}

// MediaSegment plays a clip, then advances.
type MediaSegment struct {
	ID   string
	Next string

	// Clip is an opaque reference the presenter resolves to a video/audio asset.
	Clip string

	// FallbackDelay is the auto-advance delay used when no clip can be played.
	FallbackDelay time.Duration

	// Hold is an optional pause after reported playback completion.
	Hold time.Duration

	Caption string
	Effects Effects
}

func (m MediaSegment) NodeID() string       { return m.ID }
func (m MediaSegment) NextID() string       { return m.Next }
func (m MediaSegment) NodeEffects() Effects { return m.Effects }
func (m MediaSegment) Kind() NodeKind       { return KindMedia }
func (MediaSegment) sealed()                {}

// InteractiveBeat shows a static payload and waits for the player to continue.
// It never advances on its own.
type InteractiveBeat struct {
	ID   string
	Next string

	// Image is an opaque reference to a still image.
	Image string
	Text  string

	Effects Effects
}

func (b InteractiveBeat) NodeID() string       { return b.ID }
func (b InteractiveBeat) NextID() string       { return b.Next }
func (b InteractiveBeat) NodeEffects() Effects { return b.Effects }
func (b InteractiveBeat) Kind() NodeKind       { return KindBeat }
func (InteractiveBeat) sealed()                {}

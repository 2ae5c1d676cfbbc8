package dsl

import (
	"time"

	"github.com/aretw0/callgate/pkg/domain"
)

// NodeBuilder provides a fluent API for configuring a node.
// Setters that do not apply to the node kind are ignored.
type NodeBuilder struct {
	id       string
	kind     domain.NodeKind
	next     string
	explicit bool

	clip     string
	fallback time.Duration
	hold     time.Duration
	caption  string

	image string
	text  string

	effects domain.Effects
}

// Clip sets the media payload reference.
func (n *NodeBuilder) Clip(ref string) *NodeBuilder {
	n.clip = ref
	return n
}

// Fallback sets the auto-advance delay used when the clip cannot be played.
func (n *NodeBuilder) Fallback(d time.Duration) *NodeBuilder {
	n.fallback = d
	return n
}

// Hold sets the pause after playback completes.
func (n *NodeBuilder) Hold(d time.Duration) *NodeBuilder {
	n.hold = d
	return n
}

// Caption sets subtitle text for a media segment.
func (n *NodeBuilder) Caption(text string) *NodeBuilder {
	n.caption = text
	return n
}

// Image sets the still image of a beat.
func (n *NodeBuilder) Image(ref string) *NodeBuilder {
	n.image = ref
	return n
}

// Text sets the text of a beat.
func (n *NodeBuilder) Text(content string) *NodeBuilder {
	n.text = content
	return n
}

// Shake requests a screen shake on entry.
func (n *NodeBuilder) Shake(intensity float64, d time.Duration) *NodeBuilder {
	n.effects.Shake = &domain.Shake{Intensity: intensity, Duration: d}
	return n
}

// Glitch requests the glitch cue on entry.
func (n *NodeBuilder) Glitch() *NodeBuilder {
	n.effects.Glitch = true
	return n
}

// Go sets an explicit next node.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.next = target
	n.explicit = true
	return n
}

// Terminal marks the node as the end of the call.
func (n *NodeBuilder) Terminal() *NodeBuilder {
	n.next = ""
	n.explicit = true
	return n
}

func (n *NodeBuilder) build(next string) domain.Node {
	if n.kind == domain.KindBeat {
		return domain.InteractiveBeat{
			ID:      n.id,
			Next:    next,
			Image:   n.image,
			Text:    n.text,
			Effects: n.effects,
		}
	}
	return domain.MediaSegment{
		ID:            n.id,
		Next:          next,
		Clip:          n.clip,
		FallbackDelay: n.fallback,
		Hold:          n.hold,
		Caption:       n.caption,
		Effects:       n.effects,
	}
}

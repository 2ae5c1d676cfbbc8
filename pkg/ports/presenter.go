package ports

import (
	"context"
	"time"

	"github.com/aretw0/callgate/pkg/domain"
)

// WindowOwner is a desktop collaborator that owns windows or modal overlays.
type WindowOwner interface {
	IsAnyWindowOpen() bool
}

// Presenter is the incoming-call surface. It renders nodes; the core decides when.
//
// Completion is reported back asynchronously through the engine (MediaFinished, Continue),
// never through return values. Implementations may report completion synchronously from
// inside PlayMedia.
type Presenter interface {
	// Available reports whether the surface can be engaged right now.
	Available() bool

	// OpenCall brings up the call surface for a stage.
	OpenCall(ctx context.Context, stage domain.Stage) error

	// PlayMedia starts playback of a segment's clip.
	// An error makes the sequencer fall back to the segment's FallbackDelay.
	PlayMedia(ctx context.Context, node domain.MediaSegment) error

	// ShowBeat displays a static beat and its continue affordance.
	ShowBeat(ctx context.Context, node domain.InteractiveBeat) error

	// CloseCall tears the call surface down.
	CloseCall(ctx context.Context, outcome domain.Outcome) error
}

// Shaker shakes the screen.
type Shaker interface {
	Shake(ctx context.Context, intensity float64, duration time.Duration) error
}

// CuePlayer plays the glitch audio cue.
type CuePlayer interface {
	PlayGlitchCue(ctx context.Context) error
}

package story

import (
	"time"

	"github.com/aretw0/callgate/pkg/adapters/memory"
	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/callgate/pkg/dsl"
)

// Stage1Graph is the built-in first call.
func Stage1Graph() *domain.Graph {
	b := dsl.New(GraphStage1)

	b.Media("ring").
		Clip("bugcall/ring.webm").
		Fallback(3 * time.Second).
		Glitch()

	b.Media("pickup").
		Clip("bugcall/stage1_pickup.webm").
		Fallback(4 * time.Second).
		Hold(500 * time.Millisecond).
		Caption("...is this thing on?")

	b.Beat("who").
		Image("bugcall/stage1_static.png").
		Text("You found the questionnaire. You found the photo. You shouldn't have.")

	b.Media("warning").
		Clip("bugcall/stage1_warning.webm").
		Fallback(5 * time.Second).
		Caption("They read everything you type on this machine.").
		Shake(0.4, 600*time.Millisecond)

	b.Beat("promise").
		Image("bugcall/stage1_eye.png").
		Text("Keep looking. I'll call again when it's safe.")

	b.Media("cutoff").
		Clip("bugcall/stage1_cutoff.webm").
		Fallback(2 * time.Second).
		Shake(0.8, 400*time.Millisecond).
		Glitch()

	return b.MustBuild()
}

// Stage2Graph is the built-in second call.
func Stage2Graph() *domain.Graph {
	b := dsl.New(GraphStage2)

	b.Media("ring").
		Clip("bugcall/ring_distorted.webm").
		Fallback(3 * time.Second).
		Glitch()

	b.Beat("album").
		Image("bugcall/stage2_album.png").
		Text("The hidden album. Look at the dates on the photos.")

	b.Media("confession").
		Clip("bugcall/stage2_confession.webm").
		Fallback(6 * time.Second).
		Hold(time.Second).
		Caption("I wrote the blog. I was the whistleblower.").
		Shake(0.3, time.Second)

	b.Beat("last").
		Image("bugcall/stage2_static.png").
		Text("Don't trust the next message you get from me.")

	b.Media("scream").
		Clip("bugcall/stage2_scream.webm").
		Fallback(2 * time.Second).
		Shake(1.0, 800*time.Millisecond).
		Glitch()

	return b.MustBuild()
}

// DefaultLoader serves the built-in graphs.
func DefaultLoader() *memory.Loader {
	return memory.NewLoader(Stage1Graph(), Stage2Graph())
}

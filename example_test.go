package callgate_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aretw0/callgate"
	"github.com/aretw0/callgate/pkg/adapters/memory"
	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/callgate/pkg/story"
)

// ExampleNew runs the first call headless: clips fall back to their delays and beats
// are clicked through by hand.
func ExampleNew() {
	ctx := context.Background()
	store := memory.NewStore(domain.Snapshot{
		story.KeyChatUnlocked:           domain.Bool(true),
		story.KeyQuestionnaireCompleted: domain.Bool(true),
		story.KeyPhotoUnlocked:          domain.Bool(true),
		story.KeyBrowserLastURL:         domain.String("https://companyname.example/about"),
	})

	engine, err := callgate.New(store, callgate.WithLifecycleHooks(domain.LifecycleHooks{
		OnStageTriggered: func(_ context.Context, e *domain.StageEvent) {
			fmt.Printf("stage %d rings\n", e.Stage)
		},
		OnNodeStarted: func(_ context.Context, e *domain.NodeEvent) {
			fmt.Printf("%s (%s)\n", e.NodeID, e.Kind)
		},
		OnRunEnded: func(_ context.Context, e *domain.RunEvent) {
			fmt.Println("call", e.Outcome)
		},
	}))
	if err != nil {
		log.Fatal(err)
	}

	// Ring after the desktop has been idle for the settle delay, then let the clips run out.
	engine.Advance(ctx, 9*time.Second)

	// The player reads the first beat and hangs up on the second clip.
	if err := engine.Continue(ctx); err != nil {
		log.Fatal(err)
	}
	if err := engine.HangUp(ctx); err != nil {
		log.Fatal(err)
	}

	// Output:
	// stage 1 rings
	// ring (media)
	// pickup (media)
	// who (beat)
	// warning (media)
	// call hung_up
}

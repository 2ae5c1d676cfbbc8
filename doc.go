/*
Package callgate is the progression gate and dialogue sequencer behind the "bug call" of a
desktop-simulation mystery game.

The desktop apps (chat, gallery, browser, puzzles) write flags into a shared store. The engine
polls those flags against the condition groups of each stage, waits until no window is open,
then rings: it walks a dialogue graph of timed media segments and player-paced beats, fires
screen shake and glitch cues, and marks the stage as done in the store so it never rings twice,
even across restarts.

# Concept

Everything runs on one cooperative timeline. Polls, the idle settle wait, media fallbacks and
holds are timers on that timeline, and the host moves it forward with Advance. The engine never
starts goroutines of its own; pkg/runner provides a wall-clock driver when one is needed.

	Flag Store -> Evaluate (polled) -> Scheduler trigger -> Sequencer walks the graph
	          <- completion flag marked <------------------------------'

Only one stage may hold the call slot at a time, and stage 2 is not considered until stage 1
has completed.

# Usage

	store := memory.NewStore()
	windows := memory.NewWindows()

	eng, err := callgate.New(store,
		callgate.WithWindowOwners(windows),
		callgate.WithPresenter(myPresenter),
	)
	if err != nil {
		log.Fatal(err)
	}

	// Host loop: advance by the frame delta and forward player input.
	eng.Advance(ctx, 16*time.Millisecond)
	_ = eng.Continue(ctx)                // player clicked through a beat
	_ = eng.MediaFinished(ctx, "ring")   // the clip of node "ring" ended

Built-in stages and graphs live in pkg/story. Authored graphs (YAML, JSON or Markdown through
Loam) replace built-in graphs with the same id when passed through WithGraphLoader.
*/
package callgate

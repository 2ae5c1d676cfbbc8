package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/callgate/pkg/domain"
)

// recorder captures lifecycle events as compact strings.
type recorder struct {
	events []string
	runs   []*domain.RunEvent
}

func (r *recorder) hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeStarted: func(_ context.Context, e *domain.NodeEvent) {
			r.events = append(r.events, fmt.Sprintf("start:%d:%s", e.Stage, e.NodeID))
		},
		OnNodeEnded: func(_ context.Context, e *domain.NodeEvent) {
			r.events = append(r.events, fmt.Sprintf("end:%d:%s", e.Stage, e.NodeID))
		},
		OnStageTriggered: func(_ context.Context, e *domain.StageEvent) {
			r.events = append(r.events, fmt.Sprintf("stage:%d", e.Stage))
		},
		OnRunEnded: func(_ context.Context, e *domain.RunEvent) {
			r.events = append(r.events, fmt.Sprintf("run:%d:%s", e.Stage, e.Outcome))
			r.runs = append(r.runs, e)
		},
	}
}

func (r *recorder) starts() []string {
	var out []string
	for _, e := range r.events {
		if len(e) > 6 && e[:6] == "start:" {
			out = append(out, e)
		}
	}
	return out
}

// fakePresenter records calls and can complete nodes synchronously.
type fakePresenter struct {
	unavailable bool
	playErr     error
	calls       []string

	onPlay func(ctx context.Context, n domain.MediaSegment)
	onBeat func(ctx context.Context, n domain.InteractiveBeat)
}

func (p *fakePresenter) Available() bool { return !p.unavailable }

func (p *fakePresenter) OpenCall(_ context.Context, stage domain.Stage) error {
	p.calls = append(p.calls, fmt.Sprintf("open:%d", stage.Ordinal))
	return nil
}

func (p *fakePresenter) PlayMedia(ctx context.Context, n domain.MediaSegment) error {
	p.calls = append(p.calls, "play:"+n.ID)
	if p.playErr != nil {
		return p.playErr
	}
	if p.onPlay != nil {
		p.onPlay(ctx, n)
	}
	return nil
}

func (p *fakePresenter) ShowBeat(ctx context.Context, n domain.InteractiveBeat) error {
	p.calls = append(p.calls, "beat:"+n.ID)
	if p.onBeat != nil {
		p.onBeat(ctx, n)
	}
	return nil
}

func (p *fakePresenter) CloseCall(_ context.Context, outcome domain.Outcome) error {
	p.calls = append(p.calls, "close:"+string(outcome))
	return nil
}

// windowFlag is a single toggleable window owner.
type windowFlag struct{ open bool }

func (w *windowFlag) IsAnyWindowOpen() bool { return w.open }

package callgate

import (
	"context"
	"time"

	"github.com/aretw0/callgate/internal/runtime"
)

// Status is a diagnostic snapshot of the engine.
type Status struct {
	Now         time.Duration    `json:"now"`
	FlagsLoaded bool             `json:"flags_loaded"`
	Stages      []StageReport    `json:"stages"`
	Run         *runtime.RunInfo `json:"run,omitempty"`
}

// StageReport is the scheduler view of one stage plus its condition breakdown.
// Groups is empty when the flag store could not be read.
type StageReport struct {
	runtime.StageStatus
	Satisfied bool                  `json:"satisfied"`
	Groups    []runtime.GroupResult `json:"groups,omitempty"`
}

// Status reports every stage and the active run. It has no side effects.
func (e *Engine) Status(ctx context.Context) Status {
	st := Status{Now: e.tl.Now()}

	snap, err := e.store.Snapshot(ctx)
	if err != nil {
		e.logger.Debug("status without flags", "err", err)
	} else {
		st.FlagsLoaded = true
	}

	for _, s := range e.sched.Statuses() {
		rep := StageReport{StageStatus: s}
		if st.FlagsLoaded {
			rep.Satisfied = runtime.Evaluate(s.Stage, snap)
			rep.Groups = runtime.Explain(s.Stage, snap)
		}
		st.Stages = append(st.Stages, rep)
	}

	if info, ok := e.seq.Current(); ok {
		st.Run = &info
	}
	return st
}

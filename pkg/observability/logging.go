package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/callgate/pkg/domain"
)

// LoggingHooks logs every lifecycle event. Node events are Debug, stage and run events Info;
// a run that ended with an error is logged at Warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeStarted: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_started",
				"run_id", e.RunID,
				"stage", e.Stage,
				"node_id", e.NodeID,
				"kind", e.Kind,
				"at", e.Timestamp,
			)
		},
		OnNodeEnded: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_ended", "run_id", e.RunID, "node_id", e.NodeID, "at", e.Timestamp)
		},
		OnStageTriggered: func(ctx context.Context, e *domain.StageEvent) {
			logger.InfoContext(ctx, "stage_triggered",
				"stage", e.Stage,
				"name", e.Name,
				"forced", e.Forced,
				"at", e.Timestamp,
			)
		},
		OnRunEnded: func(ctx context.Context, e *domain.RunEvent) {
			attrs := []any{
				"run_id", e.RunID,
				"stage", e.Stage,
				"graph_id", e.GraphID,
				"outcome", e.Outcome,
				"last_node", e.LastNode,
				"duration", e.Duration,
			}
			if e.Err != nil {
				logger.WarnContext(ctx, "run_ended", append(attrs, "err", e.Err)...)
				return
			}
			logger.InfoContext(ctx, "run_ended", attrs...)
		},
	}
}

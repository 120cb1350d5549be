package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/weave/pkg/domain"
)

// LogHooks returns lifecycle hooks writing one structured line per event.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepStart: func(ctx context.Context, e *domain.StepEvent) {
			logger.InfoContext(ctx, "step_start",
				"run_id", e.RunID,
				"step", e.Step,
				"position", e.Position,
				"inputs", e.Inputs,
			)
		},
		OnStepFinish: func(ctx context.Context, e *domain.StepEvent) {
			attrs := []any{
				"run_id", e.RunID,
				"step", e.Step,
				"position", e.Position,
				"status", e.Status,
				"outputs", e.Outputs,
				"duration", e.Duration,
			}
			if e.Err != nil {
				logger.WarnContext(ctx, "step_finish", append(attrs, "err", e.Err)...)
				return
			}
			logger.InfoContext(ctx, "step_finish", attrs...)
		},
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "run_finish", "run_id", e.RunID, "status", e.Status, "err", e.Err)
				return
			}
			logger.InfoContext(ctx, "run_finish", "run_id", e.RunID, "status", e.Status)
		},
	}
}

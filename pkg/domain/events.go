package domain

import (
	"context"
	"time"
)

// StepEvent describes a step entering or leaving execution.
type StepEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	RunID     string        `json:"run_id"`
	Step      string        `json:"step"`
	Type      string        `json:"type"`
	Method    string        `json:"method"`
	Position  int           `json:"position"`
	Status    StepStatus    `json:"status"`
	Inputs    int           `json:"inputs"`
	Outputs   int           `json:"outputs,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Err       error         `json:"-"`
}

// RunEvent describes a run reaching a terminal status.
type RunEvent struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	Status    RunStatus `json:"status"`
	Err       error     `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability. Nil fields are skipped.
type LifecycleHooks struct {
	OnStepStart  func(context.Context, *StepEvent)
	OnStepFinish func(context.Context, *StepEvent)
	OnRunFinish  func(context.Context, *RunEvent)
}

// CombineHooks fans each callback out to every non-nil hook set, in order.
func CombineHooks(all ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStepStart: func(ctx context.Context, e *StepEvent) {
			for _, h := range all {
				if h.OnStepStart != nil {
					h.OnStepStart(ctx, e)
				}
			}
		},
		OnStepFinish: func(ctx context.Context, e *StepEvent) {
			for _, h := range all {
				if h.OnStepFinish != nil {
					h.OnStepFinish(ctx, e)
				}
			}
		},
		OnRunFinish: func(ctx context.Context, e *RunEvent) {
			for _, h := range all {
				if h.OnRunFinish != nil {
					h.OnRunFinish(ctx, e)
				}
			}
		},
	}
}

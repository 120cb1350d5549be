package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/weave/internal/logging"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/ports"
	"github.com/aretw0/weave/pkg/registry"
	"github.com/google/uuid"
)

// StepRunner executes one step and keeps its record in sync:
//
//  1. the step is set running and its inputs are recorded;
//  2. the executor runs; an error or panic marks the step errored and is returned as is;
//  3. outputs get their ancestry stamped from their parent input;
//  4. the step is set completed and its outputs are recorded.
//
// A failure in step 1 is returned without touching the record, so a completed
// step can never be turned into an errored one.
type StepRunner struct {
	Step     *domain.Step
	Executor registry.Executor

	// Journal records transitions. Nil means Ephemeral().
	Journal ports.StepJournal
	Hooks   domain.LifecycleHooks
	Logger  *slog.Logger
}

// Run executes the step over inputs and returns the stamped outputs.
func (r *StepRunner) Run(ctx context.Context, inputs []domain.Node) ([]domain.Node, error) {
	journal := r.Journal
	if journal == nil {
		journal = Ephemeral()
	}
	logger := r.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	step := r.Step
	logger = logger.With("run_id", step.RunID, "step", step.Name, "position", step.Position)

	if err := journal.SetRunning(ctx, step, inputs); err != nil {
		logger.Error("step could not start", "err", err)
		return nil, err
	}

	start := time.Now()
	r.emit(ctx, r.Hooks.OnStepStart, domain.StepRunning, len(inputs), 0, 0, nil)
	logger.Debug("step started", "inputs", len(inputs), "attempt", step.Attempt)

	outputs, err := r.execute(ctx, inputs)
	if err == nil {
		outputs, err = stampAncestry(step.Name, inputs, outputs)
	}
	if err != nil {
		if ferr := journal.Fail(context.WithoutCancel(ctx), step, err); ferr != nil {
			logger.Error("failed to record step failure", "err", ferr)
		}
		r.emit(ctx, r.Hooks.OnStepFinish, domain.StepErrored, len(inputs), 0, time.Since(start), err)
		logger.Warn("step failed", "err", err)
		return nil, err
	}

	if err := journal.SetCompleted(ctx, step, outputs); err != nil {
		r.emit(ctx, r.Hooks.OnStepFinish, domain.StepErrored, len(inputs), 0, time.Since(start), err)
		logger.Error("step could not complete", "err", err)
		return nil, err
	}

	r.emit(ctx, r.Hooks.OnStepFinish, domain.StepCompleted, len(inputs), len(outputs), time.Since(start), nil)
	logger.Info("step completed", "inputs", len(inputs), "outputs", len(outputs), "duration", time.Since(start))
	return outputs, nil
}

func (r *StepRunner) execute(ctx context.Context, inputs []domain.Node) (out []domain.Node, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("%w: step %q: %v", domain.ErrStepPanicked, r.Step.Name, p)
		}
	}()
	// Executors get their own slice header so reordering cannot reach the caller.
	return r.Executor.Execute(ctx, append([]domain.Node(nil), inputs...))
}

func (r *StepRunner) emit(ctx context.Context, hook func(context.Context, *domain.StepEvent), status domain.StepStatus, in, out int, d time.Duration, err error) {
	if hook == nil {
		return
	}
	hook(ctx, &domain.StepEvent{
		Timestamp: time.Now(),
		RunID:     r.Step.RunID,
		Step:      r.Step.Name,
		Type:      r.Step.Type,
		Method:    r.Step.Method,
		Position:  r.Step.Position,
		Status:    status,
		Inputs:    in,
		Outputs:   out,
		Duration:  d,
		Err:       err,
	})
}

// stampAncestry gives every output a fresh ancestry: its parent's plus
// stepName -> parent ID. Outputs without a parent are roots with an empty one.
func stampAncestry(stepName string, inputs, outputs []domain.Node) ([]domain.Node, error) {
	byID := make(map[string]domain.Node, len(inputs))
	for _, n := range inputs {
		byID[n.ID] = n
	}

	stamped := make([]domain.Node, len(outputs))
	for i, out := range outputs {
		if out.ID == "" {
			out.ID = uuid.NewString()
		}
		if out.ParentNodeID == "" {
			out.Ancestors = domain.Ancestry{}
		} else {
			parent, ok := byID[out.ParentNodeID]
			if !ok {
				return nil, fmt.Errorf("%w: step %q output %s references %s",
					domain.ErrUnknownParent, stepName, out.ID, out.ParentNodeID)
			}
			out.Ancestors = parent.Ancestors.With(stepName, parent.ID)
		}
		stamped[i] = out
	}
	return stamped, nil
}

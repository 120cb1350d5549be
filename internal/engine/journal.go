package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/ports"
)

// Ephemeral returns a journal that applies transitions to the in-memory records
// and persists nothing. Step inputs are never recorded, so runs driven with it
// cannot be restarted.
func Ephemeral() ports.Journal {
	return ephemeral{now: time.Now}
}

type ephemeral struct {
	now func() time.Time
}

func (j ephemeral) SetRunning(_ context.Context, step *domain.Step, _ []domain.Node) error {
	return step.SetRunning(j.now())
}

func (j ephemeral) SetCompleted(_ context.Context, step *domain.Step, _ []domain.Node) error {
	return step.SetCompleted(j.now())
}

func (j ephemeral) Fail(_ context.Context, step *domain.Step, cause error) error {
	step.Fail(cause, j.now())
	return nil
}

func (j ephemeral) CreateRun(context.Context, *domain.Run) error {
	return nil
}

func (j ephemeral) SetRunStatus(_ context.Context, run *domain.Run, status domain.RunStatus) error {
	return run.SetStatus(status, j.now())
}

func (j ephemeral) ReopenRun(_ context.Context, run *domain.Run) error {
	return run.Reopen(j.now())
}

func (j ephemeral) RearmStep(_ context.Context, step *domain.Step) error {
	return step.Rearm(j.now())
}

func (j ephemeral) LoadRun(_ context.Context, runID string) (*domain.Run, error) {
	return nil, fmt.Errorf("run %s: %w", runID, domain.ErrNotRecorded)
}

func (j ephemeral) StepInputs(_ context.Context, step domain.Step) ([]domain.Node, error) {
	return nil, fmt.Errorf("step %q: %w", step.Name, domain.ErrNotRecorded)
}

func (j ephemeral) StepOutputs(_ context.Context, step domain.Step) ([]domain.Node, error) {
	return nil, fmt.Errorf("step %q: %w", step.Name, domain.ErrNotRecorded)
}

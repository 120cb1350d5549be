package ports

import (
	"context"

	"github.com/aretw0/weave/pkg/domain"
)

// StepJournal records the status transitions of a single step.
// Every method applies the domain transition to step and, when the journal is
// durable, commits it in one transaction before returning. On error, step is unchanged.
type StepJournal interface {
	// SetRunning moves step to running and records inputs as its input association.
	SetRunning(ctx context.Context, step *domain.Step, inputs []domain.Node) error

	// SetCompleted stores outputs, records them as the output association and moves step to completed.
	SetCompleted(ctx context.Context, step *domain.Step, outputs []domain.Node) error

	// Fail marks step errored unconditionally, keeping the cause for audit.
	Fail(ctx context.Context, step *domain.Step, cause error) error
}

// Journal is the persistence collaborator of the run controller.
type Journal interface {
	StepJournal

	// CreateRun writes run and all of its steps atomically.
	CreateRun(ctx context.Context, run *domain.Run) error

	// SetRunStatus moves run to a terminal status.
	SetRunStatus(ctx context.Context, run *domain.Run, status domain.RunStatus) error

	// ReopenRun moves an errored run back to running.
	ReopenRun(ctx context.Context, run *domain.Run) error

	// RearmStep moves an errored or interrupted step back to pending.
	RearmStep(ctx context.Context, step *domain.Step) error

	// LoadRun returns the run with its steps ordered by position.
	LoadRun(ctx context.Context, runID string) (*domain.Run, error)

	// StepInputs returns the nodes recorded as the inputs of step, in recorded order.
	StepInputs(ctx context.Context, step domain.Step) ([]domain.Node, error)

	// StepOutputs returns the nodes recorded as the outputs of step, in recorded order.
	StepOutputs(ctx context.Context, step domain.Step) ([]domain.Node, error)
}

// Catalog answers read-only queries over recorded runs and nodes.
type Catalog interface {
	LoadRun(ctx context.Context, runID string) (*domain.Run, error)

	// ListRuns returns every run, most recent first, without steps.
	ListRuns(ctx context.Context) ([]domain.Run, error)

	StepInputs(ctx context.Context, step domain.Step) ([]domain.Node, error)
	StepOutputs(ctx context.Context, step domain.Step) ([]domain.Node, error)

	// GetNode returns a stored node.
	// Returns an error wrapping domain.ErrNotFound if it does not exist.
	GetNode(ctx context.Context, nodeID string) (domain.Node, error)

	// Lineage returns the lineage edges of a stored node in pipeline order.
	Lineage(ctx context.Context, nodeID string) ([]domain.Edge, error)
}

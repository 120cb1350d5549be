package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/weave/internal/logging"
	"github.com/aretw0/weave/pkg/config"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/ports"
	"github.com/aretw0/weave/pkg/registry"
	"github.com/aretw0/weave/pkg/runlock"
	"github.com/google/uuid"
)

// Controller creates runs and drives their steps in order.
type Controller struct {
	journal  ports.Journal
	registry *registry.Registry
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	locks    *runlock.Manager
	now      func() time.Time
	newID    func() string
}

// NewController creates a controller. A nil journal means Ephemeral().
func NewController(journal ports.Journal, reg *registry.Registry, opts ...Option) *Controller {
	if journal == nil {
		journal = Ephemeral()
	}
	c := &Controller{
		journal:  journal,
		registry: reg,
		logger:   logging.NewNop(),
		locks:    runlock.NewManager(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Journal returns the persistence collaborator.
func (c *Controller) Journal() ports.Journal {
	return c.journal
}

// Validate checks cfg and that every stage resolves to a buildable executor.
func (c *Controller) Validate(cfg domain.Config) error {
	_, err := c.resolve(cfg)
	return err
}

// resolve hands the pipeline defaults to every stage and builds each executor once.
func (c *Controller) resolve(cfg domain.Config) (domain.Config, error) {
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	cfg = config.ApplyDefaults(cfg)
	var errs []error
	for i, stage := range cfg.Pipeline {
		step, err := domain.NewStep("validate", "validate", i+1, stage, c.now())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := c.registry.Build(step); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		err := errors.Join(errs...)
		if !errors.Is(err, domain.ErrConfigMismatch) {
			err = fmt.Errorf("%w: %w", domain.ErrConfigMismatch, err)
		}
		return cfg, err
	}
	return cfg, nil
}

// CreateWithSteps validates cfg and records a new running run with one pending
// step per stage, all in one transaction.
func (c *Controller) CreateWithSteps(ctx context.Context, cfg domain.Config) (*domain.Run, error) {
	cfg, err := c.resolve(cfg)
	if err != nil {
		return nil, err
	}

	now := c.now()
	run := domain.NewRun(c.newID(), cfg, now)
	for i, stage := range run.Config.Pipeline {
		step, err := domain.NewStep(c.newID(), run.ID, i+1, stage, now)
		if err != nil {
			return nil, err
		}
		run.Steps = append(run.Steps, step)
	}

	if err := c.journal.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	c.logger.Info("run created", "run_id", run.ID, "pipeline", cfg.Name, "steps", len(run.Steps))
	return run, nil
}

// Execute drives run from its first step.
func (c *Controller) Execute(ctx context.Context, run *domain.Run, inputs []domain.Node) ([]domain.Node, error) {
	return c.Drive(ctx, run, 1, inputs)
}

// Drive executes run's steps from position from onwards, feeding each step the
// previous step's outputs. The first failure marks the run errored and is
// returned as a *domain.StepError; later steps are left untouched.
func (c *Controller) Drive(ctx context.Context, run *domain.Run, from int, inputs []domain.Node) ([]domain.Node, error) {
	var outputs []domain.Node
	err := c.locks.WithLock(ctx, run.ID, func(ctx context.Context) error {
		var err error
		outputs, err = c.drive(ctx, run, from, inputs)
		return err
	})
	return outputs, err
}

func (c *Controller) drive(ctx context.Context, run *domain.Run, from int, inputs []domain.Node) ([]domain.Node, error) {
	if run.Status != domain.RunRunning {
		return nil, &domain.TransitionError{Entity: "run", ID: run.ID, From: string(run.Status), To: string(domain.RunRunning)}
	}
	if from < 1 || from > len(run.Steps) {
		return nil, fmt.Errorf("%w: run %s has no step at position %d", domain.ErrNotFound, run.ID, from)
	}

	logger := c.logger.With("run_id", run.ID)
	current := inputs
	for i := from - 1; i < len(run.Steps); i++ {
		step := &run.Steps[i]

		if err := ctx.Err(); err != nil {
			return nil, c.abort(ctx, run, step, err)
		}

		exec, err := c.registry.Build(*step)
		if err != nil {
			if ferr := c.journal.Fail(ctx, step, err); ferr != nil {
				logger.Error("failed to record step failure", "step", step.Name, "err", ferr)
			}
			return nil, c.abort(ctx, run, step, err)
		}

		runner := &StepRunner{
			Step:     step,
			Executor: exec,
			Journal:  c.journal,
			Hooks:    c.hooks,
			Logger:   c.logger,
		}
		out, err := runner.Run(ctx, current)
		if err != nil {
			return nil, c.abort(ctx, run, step, err)
		}
		current = out
	}

	if err := c.journal.SetRunStatus(ctx, run, domain.RunFinished); err != nil {
		return nil, fmt.Errorf("failed to finish run %s: %w", run.ID, err)
	}
	c.emitRun(ctx, run, nil)
	logger.Info("run finished", "outputs", len(current))
	return current, nil
}

// abort marks run errored after a failure at step and returns the wrapped cause.
func (c *Controller) abort(ctx context.Context, run *domain.Run, step *domain.Step, cause error) error {
	stepErr := &domain.StepError{Step: step.Name, Position: step.Position, Err: cause}

	// The run must be marked even when ctx was canceled.
	if err := c.journal.SetRunStatus(context.WithoutCancel(ctx), run, domain.RunErrored); err != nil {
		c.logger.Error("failed to mark run errored", "run_id", run.ID, "err", err)
		return errors.Join(stepErr, fmt.Errorf("failed to mark run errored: %w", err))
	}
	c.emitRun(ctx, run, stepErr)
	c.logger.Warn("run errored", "run_id", run.ID, "step", step.Name, "position", step.Position, "err", cause)
	return stepErr
}

// Restart returns what is needed to re-execute run from failed: the nodes
// recorded as failed's inputs and the steps from failed onwards. It reads the
// persisted records only and is idempotent.
// Fails with domain.ErrNotRestartable unless every earlier step is completed and
// failed is not.
func (c *Controller) Restart(ctx context.Context, run *domain.Run, failed domain.Step) ([]domain.Node, []domain.Step, error) {
	persisted, err := c.journal.LoadRun(ctx, run.ID)
	if err != nil {
		return nil, nil, err
	}
	return c.restart(ctx, persisted, failed.Position)
}

func (c *Controller) restart(ctx context.Context, run *domain.Run, position int) ([]domain.Node, []domain.Step, error) {
	step := run.Step(position)
	if step == nil {
		return nil, nil, fmt.Errorf("%w: run %s has no step at position %d", domain.ErrNotRestartable, run.ID, position)
	}
	for _, earlier := range run.Steps[:position-1] {
		if earlier.Status != domain.StepCompleted {
			return nil, nil, fmt.Errorf("%w: step %q at position %d is %s",
				domain.ErrNotRestartable, earlier.Name, earlier.Position, earlier.Status)
		}
	}
	if step.Status == domain.StepCompleted {
		return nil, nil, fmt.Errorf("%w: step %q already completed", domain.ErrNotRestartable, step.Name)
	}

	var inputs []domain.Node
	var err error
	switch {
	case step.Attempt > 0:
		inputs, err = c.journal.StepInputs(ctx, *step)
	case position > 1:
		// Never started: its inputs are exactly the previous step's outputs.
		inputs, err = c.journal.StepOutputs(ctx, run.Steps[position-2])
	default:
		err = fmt.Errorf("step %q never started: %w", step.Name, domain.ErrNotRecorded)
	}
	if err != nil {
		return nil, nil, err
	}

	remaining := append([]domain.Step(nil), run.Steps[position-1:]...)
	return inputs, remaining, nil
}

// Resume restarts runID from its first incomplete step and drives it to the end.
// It reopens an errored run and re-arms the failed step first.
func (c *Controller) Resume(ctx context.Context, runID string) (*domain.Run, []domain.Node, error) {
	var (
		run     *domain.Run
		outputs []domain.Node
	)
	err := c.locks.WithLock(ctx, runID, func(ctx context.Context) error {
		var err error
		run, err = c.journal.LoadRun(ctx, runID)
		if err != nil {
			return err
		}
		if run.Status == domain.RunFinished {
			return fmt.Errorf("%w: run %s already finished", domain.ErrNotRestartable, runID)
		}

		step, ok := run.FirstIncomplete()
		if !ok {
			// Every step completed but the run was never closed.
			outputs, err = c.finishCompleted(ctx, run)
			return err
		}

		inputs, _, err := c.restart(ctx, run, step.Position)
		if err != nil {
			return err
		}
		if run.Status == domain.RunErrored {
			if err := c.journal.ReopenRun(ctx, run); err != nil {
				return err
			}
		}
		if step.Status != domain.StepPending {
			if err := c.journal.RearmStep(ctx, step); err != nil {
				return err
			}
		}

		c.logger.Info("run resumed", "run_id", run.ID, "step", step.Name, "position", step.Position, "inputs", len(inputs))
		outputs, err = c.drive(ctx, run, step.Position, inputs)
		return err
	})
	return run, outputs, err
}

func (c *Controller) finishCompleted(ctx context.Context, run *domain.Run) ([]domain.Node, error) {
	if run.Status == domain.RunErrored {
		if err := c.journal.ReopenRun(ctx, run); err != nil {
			return nil, err
		}
	}
	outputs, err := c.journal.StepOutputs(ctx, run.Steps[len(run.Steps)-1])
	if err != nil {
		return nil, err
	}
	if err := c.journal.SetRunStatus(ctx, run, domain.RunFinished); err != nil {
		return nil, err
	}
	c.emitRun(ctx, run, nil)
	return outputs, nil
}

// Update writes a terminal status on run. A second call on a terminal run fails
// with domain.ErrInvalidTransition.
func (c *Controller) Update(ctx context.Context, run *domain.Run, status domain.RunStatus) error {
	return c.locks.WithLock(ctx, run.ID, func(ctx context.Context) error {
		if err := c.journal.SetRunStatus(ctx, run, status); err != nil {
			return err
		}
		c.emitRun(ctx, run, nil)
		return nil
	})
}

// Load returns a recorded run with its steps.
func (c *Controller) Load(ctx context.Context, runID string) (*domain.Run, error) {
	return c.journal.LoadRun(ctx, runID)
}

func (c *Controller) emitRun(ctx context.Context, run *domain.Run, err error) {
	if c.hooks.OnRunFinish == nil {
		return
	}
	c.hooks.OnRunFinish(ctx, &domain.RunEvent{
		Timestamp: c.now(),
		RunID:     run.ID,
		Status:    run.Status,
		Err:       err,
	})
}

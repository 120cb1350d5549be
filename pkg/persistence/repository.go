package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/ports"
)

var (
	_ ports.Journal = (*Repository)(nil)
	_ ports.Catalog = (*Repository)(nil)
)

// Repository implements ports.Journal and ports.Catalog over a ports.Store.
// Every transition loads the persisted record, applies the domain rule to it and
// writes it back in one Update, so the store is the single source of truth.
type Repository struct {
	store ports.Store
	now   func() time.Time
}

// Option configures the Repository.
type Option func(*Repository)

// WithClock overrides the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// New creates a Repository over store.
func New(store ports.Store, opts ...Option) *Repository {
	r := &Repository{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the underlying store.
func (r *Repository) Store() ports.Store {
	return r.store
}

// CreateRun writes run and its steps in one transaction.
func (r *Repository) CreateRun(ctx context.Context, run *domain.Run) error {
	return r.update(ctx, func(tx ports.Tx) error {
		if _, err := tx.Get(runKey(run.ID)); err == nil {
			return fmt.Errorf("run %s already exists", run.ID)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		if err := putRun(tx, run); err != nil {
			return err
		}
		for _, step := range run.Steps {
			if err := put(tx, stepKey(run.ID, step.Position), step); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetRunning moves the persisted step to running and records inputs, in order,
// as its input association. A retried step replaces its previous association.
func (r *Repository) SetRunning(ctx context.Context, step *domain.Step, inputs []domain.Node) error {
	var updated domain.Step
	err := r.update(ctx, func(tx ports.Tx) error {
		cur, err := loadStep(tx, step.RunID, step.Position)
		if err != nil {
			return err
		}
		if err := cur.SetRunning(r.now()); err != nil {
			return err
		}
		if err := putLinks(tx, cur, dirIn, inputs); err != nil {
			return err
		}
		updated = cur
		return put(tx, stepKey(cur.RunID, cur.Position), cur)
	})
	if err != nil {
		return err
	}
	*step = updated
	return nil
}

// SetCompleted stores outputs, records the output association and completes the step.
func (r *Repository) SetCompleted(ctx context.Context, step *domain.Step, outputs []domain.Node) error {
	var updated domain.Step
	err := r.update(ctx, func(tx ports.Tx) error {
		cur, err := loadStep(tx, step.RunID, step.Position)
		if err != nil {
			return err
		}
		if err := cur.SetCompleted(r.now()); err != nil {
			return err
		}
		if err := putLinks(tx, cur, dirOut, outputs); err != nil {
			return err
		}
		updated = cur
		return put(tx, stepKey(cur.RunID, cur.Position), cur)
	})
	if err != nil {
		return err
	}
	*step = updated
	return nil
}

// Fail marks the persisted step errored.
func (r *Repository) Fail(ctx context.Context, step *domain.Step, cause error) error {
	return r.mutateStep(ctx, step, func(s *domain.Step, now time.Time) error {
		s.Fail(cause, now)
		return nil
	})
}

// RearmStep moves an errored or interrupted step back to pending.
func (r *Repository) RearmStep(ctx context.Context, step *domain.Step) error {
	return r.mutateStep(ctx, step, func(s *domain.Step, now time.Time) error {
		return s.Rearm(now)
	})
}

// SetRunStatus moves the persisted run to a terminal status.
// The finished check runs against the persisted steps.
func (r *Repository) SetRunStatus(ctx context.Context, run *domain.Run, status domain.RunStatus) error {
	return r.mutateRun(ctx, run, func(cur *domain.Run, now time.Time) error {
		return cur.SetStatus(status, now)
	})
}

// ReopenRun moves an errored run back to running.
func (r *Repository) ReopenRun(ctx context.Context, run *domain.Run) error {
	return r.mutateRun(ctx, run, func(cur *domain.Run, now time.Time) error {
		return cur.Reopen(now)
	})
}

// LoadRun returns the run with its steps ordered by position.
func (r *Repository) LoadRun(ctx context.Context, runID string) (*domain.Run, error) {
	var run *domain.Run
	err := r.view(ctx, func(tx ports.Tx) error {
		var err error
		run, err = loadRun(tx, runID)
		return err
	})
	return run, err
}

// ListRuns returns every run, most recent first, without steps.
func (r *Repository) ListRuns(ctx context.Context) ([]domain.Run, error) {
	var runs []domain.Run
	err := r.view(ctx, func(tx ports.Tx) error {
		kvs, err := tx.Scan(runPrefix)
		if err != nil {
			return err
		}
		runs, err = decodeAll[domain.Run](kvs)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	return runs, nil
}

// StepInputs returns the nodes recorded as the inputs of step, in recorded order.
func (r *Repository) StepInputs(ctx context.Context, step domain.Step) ([]domain.Node, error) {
	return r.links(ctx, step.ID, dirIn)
}

// StepOutputs returns the nodes recorded as the outputs of step, in recorded order.
func (r *Repository) StepOutputs(ctx context.Context, step domain.Step) ([]domain.Node, error) {
	return r.links(ctx, step.ID, dirOut)
}

// GetNode returns a stored node.
func (r *Repository) GetNode(ctx context.Context, nodeID string) (domain.Node, error) {
	var rec nodeRecord
	err := r.view(ctx, func(tx ports.Tx) error {
		return loadNode(tx, nodeID, &rec)
	})
	return rec.Node, err
}

// Lineage returns the lineage edges of a stored node in pipeline order.
func (r *Repository) Lineage(ctx context.Context, nodeID string) ([]domain.Edge, error) {
	var edges []domain.Edge
	err := r.view(ctx, func(tx ports.Tx) error {
		var rec nodeRecord
		if err := loadNode(tx, nodeID, &rec); err != nil {
			return err
		}
		steps, err := loadSteps(tx, rec.RunID)
		if err != nil {
			return err
		}
		edges = domain.Trace(rec.Node, steps)
		return nil
	})
	return edges, err
}

func (r *Repository) mutateStep(ctx context.Context, step *domain.Step, fn func(*domain.Step, time.Time) error) error {
	var updated domain.Step
	err := r.update(ctx, func(tx ports.Tx) error {
		cur, err := loadStep(tx, step.RunID, step.Position)
		if err != nil {
			return err
		}
		if err := fn(&cur, r.now()); err != nil {
			return err
		}
		updated = cur
		return put(tx, stepKey(cur.RunID, cur.Position), cur)
	})
	if err != nil {
		return err
	}
	*step = updated
	return nil
}

func (r *Repository) mutateRun(ctx context.Context, run *domain.Run, fn func(*domain.Run, time.Time) error) error {
	var updated *domain.Run
	err := r.update(ctx, func(tx ports.Tx) error {
		cur, err := loadRun(tx, run.ID)
		if err != nil {
			return err
		}
		if err := fn(cur, r.now()); err != nil {
			return err
		}
		updated = cur
		return putRun(tx, cur)
	})
	if err != nil {
		return err
	}
	run.Status = updated.Status
	run.UpdatedAt = updated.UpdatedAt
	return nil
}

func (r *Repository) links(ctx context.Context, stepID, dir string) ([]domain.Node, error) {
	var nodes []domain.Node
	err := r.view(ctx, func(tx ports.Tx) error {
		kvs, err := tx.Scan(linksPrefix(stepID, dir))
		if err != nil {
			return err
		}
		nodes = make([]domain.Node, 0, len(kvs))
		for _, kv := range kvs {
			var rec nodeRecord
			if err := loadNode(tx, string(kv.Value), &rec); err != nil {
				return err
			}
			nodes = append(nodes, rec.Node)
		}
		return nil
	})
	return nodes, err
}

func (r *Repository) update(ctx context.Context, fn func(tx ports.Tx) error) error {
	return classify(r.store.Update(ctx, fn))
}

func (r *Repository) view(ctx context.Context, fn func(tx ports.Tx) error) error {
	return classify(r.store.View(ctx, fn))
}

// classify keeps domain errors as they are and tags everything else as a persistence failure.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
}

func putRun(tx ports.Tx, run *domain.Run) error {
	rec := *run
	rec.Steps = nil
	return put(tx, runKey(run.ID), rec)
}

func loadRun(tx ports.Tx, runID string) (*domain.Run, error) {
	var run domain.Run
	if err := get(tx, runKey(runID), &run); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("run %s: %w", runID, domain.ErrNotFound)
		}
		return nil, err
	}
	steps, err := loadSteps(tx, runID)
	if err != nil {
		return nil, err
	}
	run.Steps = steps
	run.SortSteps()
	return &run, nil
}

func loadSteps(tx ports.Tx, runID string) ([]domain.Step, error) {
	kvs, err := tx.Scan(stepsPrefix(runID))
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.Step](kvs)
}

func loadStep(tx ports.Tx, runID string, position int) (domain.Step, error) {
	var step domain.Step
	if err := get(tx, stepKey(runID, position), &step); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return step, fmt.Errorf("run %s step %d: %w", runID, position, domain.ErrNotFound)
		}
		return step, err
	}
	return step, nil
}

func loadNode(tx ports.Tx, nodeID string, rec *nodeRecord) error {
	if err := get(tx, nodeKey(nodeID), rec); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("node %s: %w", nodeID, domain.ErrNotFound)
		}
		return err
	}
	return nil
}

// putLinks replaces the step's association in direction dir with nodes and
// stores any node not yet known.
func putLinks(tx ports.Tx, step domain.Step, dir string, nodes []domain.Node) error {
	stale, err := tx.Scan(linksPrefix(step.ID, dir))
	if err != nil {
		return err
	}
	for _, kv := range stale {
		if err := tx.Delete(kv.Key); err != nil {
			return err
		}
	}

	for i, n := range nodes {
		if _, err := tx.Get(nodeKey(n.ID)); errors.Is(err, domain.ErrNotFound) {
			if err := put(tx, nodeKey(n.ID), nodeRecord{Node: n, RunID: step.RunID}); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		if err := tx.Set(linkKey(step.ID, dir, i), []byte(n.ID)); err != nil {
			return err
		}
	}
	return nil
}

func decodeAll[T any](kvs []ports.KV) ([]T, error) {
	out := make([]T, 0, len(kvs))
	for _, kv := range kvs {
		var v T
		if err := unmarshal(kv.Value, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kv.Key, err)
		}
		out = append(out, v)
	}
	return out, nil
}

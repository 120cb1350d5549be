package domain

import (
	"fmt"
	"sort"
	"time"
)

// RunStatus is the status of a whole pipeline invocation.
type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunFinished RunStatus = "finished"
	RunErrored  RunStatus = "errored"
)

// IsTerminal reports whether the run has reached its final status.
func (s RunStatus) IsTerminal() bool {
	return s == RunFinished || s == RunErrored
}

// Run is the persisted description of a pipeline invocation.
type Run struct {
	ID        string    `json:"id"`
	Status    RunStatus `json:"status"`
	Config    Config    `json:"config"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Steps is ordered by position.
	Steps []Step `json:"steps,omitempty"`
}

// NewRun creates a running run holding a snapshot of cfg.
func NewRun(id string, cfg Config, now time.Time) *Run {
	return &Run{
		ID:        id,
		Status:    RunRunning,
		Config:    cfg.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetStatus moves a running run to a terminal status.
func (r *Run) SetStatus(status RunStatus, now time.Time) error {
	if r.Status != RunRunning || !status.IsTerminal() {
		return &TransitionError{Entity: "run", ID: r.ID, From: string(r.Status), To: string(status)}
	}
	if status == RunFinished {
		if err := r.CheckFinished(); err != nil {
			return err
		}
	}
	r.Status = status
	r.UpdatedAt = now
	return nil
}

// Reopen moves an errored run back to running. Reserved for restart-from-failure.
func (r *Run) Reopen(now time.Time) error {
	if r.Status != RunErrored {
		return &TransitionError{Entity: "run", ID: r.ID, From: string(r.Status), To: string(RunRunning)}
	}
	r.Status = RunRunning
	r.UpdatedAt = now
	return nil
}

// CheckFinished verifies that every step is completed and positions are exactly 1..N.
func (r *Run) CheckFinished() error {
	if len(r.Steps) == 0 {
		return &TransitionError{Entity: "run", ID: r.ID, From: string(r.Status), To: string(RunFinished)}
	}
	for i, s := range r.Steps {
		if s.Position != i+1 {
			return fmt.Errorf("%w: run %s has a gap at position %d (found %d)", ErrInvalidTransition, r.ID, i+1, s.Position)
		}
		if s.Status != StepCompleted {
			return fmt.Errorf("%w: run %s step %q is %s", ErrInvalidTransition, r.ID, s.Name, s.Status)
		}
	}
	return nil
}

// SortSteps orders the steps by position.
func (r *Run) SortSteps() {
	sort.Slice(r.Steps, func(i, j int) bool { return r.Steps[i].Position < r.Steps[j].Position })
}

// Step returns a pointer to the step at position, or nil.
func (r *Run) Step(position int) *Step {
	if position < 1 || position > len(r.Steps) || r.Steps[position-1].Position != position {
		for i := range r.Steps {
			if r.Steps[i].Position == position {
				return &r.Steps[i]
			}
		}
		return nil
	}
	return &r.Steps[position-1]
}

// FirstIncomplete returns the first step, in position order, that is not completed.
func (r *Run) FirstIncomplete() (*Step, bool) {
	for i := range r.Steps {
		if r.Steps[i].Status != StepCompleted {
			return &r.Steps[i], true
		}
	}
	return nil, false
}

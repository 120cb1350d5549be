package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a status change is attempted from a state that forbids it.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrConfigMismatch is returned when a step configuration does not match the executor built for it.
	ErrConfigMismatch = errors.New("step configuration mismatch")

	// ErrStepFailed marks errors raised by step logic.
	ErrStepFailed = errors.New("step failed")

	// ErrPersistence is returned when the store could not commit a required write.
	ErrPersistence = errors.New("persistence failure")

	// ErrNotFound is returned when a run, step or node does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnknownParent is returned when an output node references a parent outside the step inputs.
	ErrUnknownParent = errors.New("parent node not among step inputs")

	// ErrNotRestartable is returned when a run cannot be restarted at the requested step.
	ErrNotRestartable = errors.New("run is not restartable at this step")

	// ErrNotRecorded is returned when step inputs were never persisted (e.g. dry runs).
	ErrNotRecorded = errors.New("step inputs were not recorded")

	// ErrStepPanicked wraps a panic raised inside step logic.
	ErrStepPanicked = errors.New("step logic panicked")
)

// TransitionError details a rejected status change.
type TransitionError struct {
	Entity string // "run" or "step"
	ID     string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %s: cannot move from %q to %q", e.Entity, e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// StepError is returned by the run controller when a step's logic fails.
// Err is the error the step returned, untouched.
type StepError struct {
	Step     string
	Position int
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q (position %d): %v", e.Step, e.Position, e.Err)
}

func (e *StepError) Unwrap() []error {
	return []error{ErrStepFailed, e.Err}
}

// IsInvalidTransition reports whether err is (or wraps) ErrInvalidTransition.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

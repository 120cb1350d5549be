package domain

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// StepStatus is the execution status of a step record.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepErrored   StepStatus = "errored"
)

// IsTerminal reports whether no regular transition leaves s.
func (s StepStatus) IsTerminal() bool {
	return s == StepCompleted || s == StepErrored
}

// Step is the persisted description of one pipeline stage and its execution status.
type Step struct {
	ID       string `json:"id"`
	RunID    string `json:"run_id"`
	Position int    `json:"position"` // 1-based

	Type   string `json:"type"`
	Method string `json:"method"`
	Name   string `json:"name"`

	// Config is the serialized PipelineStep the record was created from.
	Config json.RawMessage `json:"config"`

	Status    StepStatus `json:"status"`
	Attempt   int        `json:"attempt"`
	Error     string     `json:"error,omitempty"`
	RunAt     time.Time  `json:"run_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewStep builds a pending step record for a pipeline stage.
func NewStep(id, runID string, position int, stage PipelineStep, now time.Time) (Step, error) {
	raw, err := json.Marshal(stage)
	if err != nil {
		return Step{}, fmt.Errorf("failed to serialize step %q: %w", stage.Name, err)
	}
	return Step{
		ID:        id,
		RunID:     runID,
		Position:  position,
		Type:      stage.Type,
		Method:    stage.Method,
		Name:      stage.Name,
		Config:    raw,
		Status:    StepPending,
		UpdatedAt: now,
	}, nil
}

func (s *Step) transition(from, to StepStatus) error {
	if s.Status != from {
		return &TransitionError{Entity: "step", ID: s.Name, From: string(s.Status), To: string(to)}
	}
	s.Status = to
	return nil
}

// SetRunning moves the step from pending to running and records the run time.
func (s *Step) SetRunning(now time.Time) error {
	if err := s.transition(StepPending, StepRunning); err != nil {
		return err
	}
	s.Attempt++
	s.Error = ""
	s.RunAt = now
	s.UpdatedAt = now
	return nil
}

// SetCompleted moves the step from running to completed.
func (s *Step) SetCompleted(now time.Time) error {
	if err := s.transition(StepRunning, StepCompleted); err != nil {
		return err
	}
	s.UpdatedAt = now
	return nil
}

// SetStatus overwrites the status unconditionally. It exists for error marking only.
func (s *Step) SetStatus(status StepStatus, now time.Time) {
	s.Status = status
	s.UpdatedAt = now
}

// Fail marks the step errored and keeps the failure message for audit.
func (s *Step) Fail(cause error, now time.Time) {
	s.SetStatus(StepErrored, now)
	if cause != nil {
		s.Error = cause.Error()
	}
}

// Rearm puts an errored (or interrupted running) step back to pending so it can be retried.
// It is the only way out of errored and is reserved for restart-from-failure.
func (s *Step) Rearm(now time.Time) error {
	if s.Status != StepErrored && s.Status != StepRunning {
		return &TransitionError{Entity: "step", ID: s.Name, From: string(s.Status), To: string(StepPending)}
	}
	s.Status = StepPending
	s.UpdatedAt = now
	return nil
}

// StepConfig decodes the stored stage declaration.
func (s Step) StepConfig() (PipelineStep, error) {
	var stage PipelineStep
	if len(s.Config) == 0 {
		return stage, fmt.Errorf("%w: step %q has no stored configuration", ErrConfigMismatch, s.Name)
	}
	if err := json.Unmarshal(s.Config, &stage); err != nil {
		return stage, fmt.Errorf("%w: step %q: %v", ErrConfigMismatch, s.Name, err)
	}
	if stage.Type != s.Type || stage.Method != s.Method || stage.Name != s.Name {
		return stage, fmt.Errorf("%w: step %q stores %s/%s, record says %s/%s",
			ErrConfigMismatch, s.Name, stage.Type, stage.Method, s.Type, s.Method)
	}
	return stage, nil
}

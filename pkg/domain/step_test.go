package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/aretw0/weave/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStep(t *testing.T) domain.Step {
	t.Helper()
	step, err := domain.NewStep("s1", "r1", 1, domain.PipelineStep{
		Type:       "split",
		Method:     "separator",
		Name:       "words",
		Parameters: map[string]any{"separator": " "},
	}, time.Now())
	require.NoError(t, err)
	return step
}

func TestStep_HappyPath(t *testing.T) {
	step := newStep(t)
	assert.Equal(t, domain.StepPending, step.Status)

	now := time.Now()
	require.NoError(t, step.SetRunning(now))
	assert.Equal(t, domain.StepRunning, step.Status)
	assert.Equal(t, now, step.RunAt)
	assert.Equal(t, 1, step.Attempt)

	require.NoError(t, step.SetCompleted(now))
	assert.Equal(t, domain.StepCompleted, step.Status)
}

func TestStep_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(s *domain.Step)
		apply func(s *domain.Step) error
	}{
		{
			name:  "running to running",
			setup: func(s *domain.Step) { _ = s.SetRunning(time.Now()) },
			apply: func(s *domain.Step) error { return s.SetRunning(time.Now()) },
		},
		{
			name: "completed to running",
			setup: func(s *domain.Step) {
				_ = s.SetRunning(time.Now())
				_ = s.SetCompleted(time.Now())
			},
			apply: func(s *domain.Step) error { return s.SetRunning(time.Now()) },
		},
		{
			name:  "pending to completed",
			setup: func(s *domain.Step) {},
			apply: func(s *domain.Step) error { return s.SetCompleted(time.Now()) },
		},
		{
			name:  "errored to running",
			setup: func(s *domain.Step) { s.Fail(errors.New("boom"), time.Now()) },
			apply: func(s *domain.Step) error { return s.SetRunning(time.Now()) },
		},
		{
			name: "rearm completed",
			setup: func(s *domain.Step) {
				_ = s.SetRunning(time.Now())
				_ = s.SetCompleted(time.Now())
			},
			apply: func(s *domain.Step) error { return s.Rearm(time.Now()) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := newStep(t)
			tt.setup(&step)
			before := step.Status

			err := tt.apply(&step)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)

			var te *domain.TransitionError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, "step", te.Entity)
			assert.Equal(t, before, step.Status, "a rejected transition must not change the status")
		})
	}
}

func TestStep_FailAndRearm(t *testing.T) {
	step := newStep(t)
	require.NoError(t, step.SetRunning(time.Now()))

	step.Fail(errors.New("llm timeout"), time.Now())
	assert.Equal(t, domain.StepErrored, step.Status)
	assert.Equal(t, "llm timeout", step.Error)

	require.NoError(t, step.Rearm(time.Now()))
	assert.Equal(t, domain.StepPending, step.Status)

	require.NoError(t, step.SetRunning(time.Now()))
	assert.Equal(t, 2, step.Attempt)
	assert.Empty(t, step.Error, "a new attempt clears the previous failure")
}

func TestStep_StepConfig(t *testing.T) {
	step := newStep(t)

	cfg, err := step.StepConfig()
	require.NoError(t, err)
	assert.Equal(t, "words", cfg.Name)
	assert.Equal(t, " ", cfg.Parameters["separator"])

	t.Run("type drift", func(t *testing.T) {
		drifted := step
		drifted.Type = "filter"
		_, err := drifted.StepConfig()
		assert.ErrorIs(t, err, domain.ErrConfigMismatch)
	})

	t.Run("corrupt payload", func(t *testing.T) {
		corrupt := step
		corrupt.Config = []byte("{not json")
		_, err := corrupt.StepConfig()
		assert.ErrorIs(t, err, domain.ErrConfigMismatch)
	})

	t.Run("missing payload", func(t *testing.T) {
		empty := step
		empty.Config = nil
		_, err := empty.StepConfig()
		assert.ErrorIs(t, err, domain.ErrConfigMismatch)
	})
}

package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/weave/internal/engine"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingStep(t *testing.T, name string) *domain.Step {
	t.Helper()
	step, err := domain.NewStep("step-"+name, "run-1", 1, domain.PipelineStep{Type: "test", Method: "derive", Name: name}, time.Now())
	require.NoError(t, err)
	return &step
}

func TestStepRunner_StampsFreshAncestry(t *testing.T) {
	parent := domain.NewNode("p")
	parent.Ancestors = domain.Ancestry{"Upstream": "root-id"}

	runner := &engine.StepRunner{
		Step: pendingStep(t, "split"),
		Executor: registry.ExecutorFunc(func(_ context.Context, in []domain.Node) ([]domain.Node, error) {
			return []domain.Node{in[0].Derive("x"), in[0].Derive("y")}, nil
		}),
	}

	out, err := runner.Run(context.Background(), []domain.Node{parent})
	require.NoError(t, err)
	require.Len(t, out, 2)

	want := domain.Ancestry{"Upstream": "root-id", "split": parent.ID}
	assert.Equal(t, want, out[0].Ancestors)
	assert.Equal(t, want, out[1].Ancestors)
	assert.Equal(t, domain.Ancestry{"Upstream": "root-id"}, parent.Ancestors, "parent ancestry must not change")

	out[0].Ancestors["extra"] = "z"
	assert.NotContains(t, out[1].Ancestors, "extra", "siblings must not share an ancestry map")
	assert.Equal(t, domain.StepCompleted, runner.Step.Status)
}

func TestStepRunner_RootOutputsHaveEmptyAncestry(t *testing.T) {
	runner := &engine.StepRunner{
		Step: pendingStep(t, "generate"),
		Executor: registry.ExecutorFunc(func(context.Context, []domain.Node) ([]domain.Node, error) {
			n := domain.NewNode("fresh")
			n.Ancestors = domain.Ancestry{"forged": "id"}
			return []domain.Node{n}, nil
		}),
	}

	out, err := runner.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Empty(t, out[0].Ancestors)
	assert.NotNil(t, out[0].Ancestors)
}

func TestStepRunner_UnknownParent(t *testing.T) {
	stranger := domain.NewNode("stranger")
	runner := &engine.StepRunner{
		Step: pendingStep(t, "leaky"),
		Executor: registry.ExecutorFunc(func(context.Context, []domain.Node) ([]domain.Node, error) {
			return []domain.Node{stranger.Derive("child")}, nil
		}),
	}

	_, err := runner.Run(context.Background(), []domain.Node{domain.NewNode("input")})
	assert.ErrorIs(t, err, domain.ErrUnknownParent)
	assert.Equal(t, domain.StepErrored, runner.Step.Status)
}

func TestStepRunner_ErrorPropagatesUnchanged(t *testing.T) {
	runner := &engine.StepRunner{
		Step: pendingStep(t, "B"),
		Executor: registry.ExecutorFunc(func(context.Context, []domain.Node) ([]domain.Node, error) {
			return nil, errBoom
		}),
	}

	_, err := runner.Run(context.Background(), []domain.Node{domain.NewNode("a1")})
	assert.Equal(t, errBoom, err)
	assert.Equal(t, domain.StepErrored, runner.Step.Status)
	assert.Equal(t, "boom", runner.Step.Error)
}

func TestStepRunner_StartFailureLeavesStatus(t *testing.T) {
	step := pendingStep(t, "A")
	require.NoError(t, step.SetRunning(time.Now()))
	require.NoError(t, step.SetCompleted(time.Now()))

	called := false
	runner := &engine.StepRunner{
		Step: step,
		Executor: registry.ExecutorFunc(func(context.Context, []domain.Node) ([]domain.Node, error) {
			called = true
			return nil, nil
		}),
	}

	_, err := runner.Run(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.False(t, called)
	assert.Equal(t, domain.StepCompleted, step.Status, "a completed step must never become errored")
}

func TestStepRunner_Panic(t *testing.T) {
	runner := &engine.StepRunner{
		Step: pendingStep(t, "P"),
		Executor: registry.ExecutorFunc(func(context.Context, []domain.Node) ([]domain.Node, error) {
			var m map[string]int
			m["x"] = 1
			return nil, nil
		}),
	}

	_, err := runner.Run(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrStepPanicked)
	assert.Equal(t, domain.StepErrored, runner.Step.Status)
}

func TestStepRunner_ExecutorCannotReorderCallerInputs(t *testing.T) {
	inputs := []domain.Node{domain.NewNode("1"), domain.NewNode("2")}
	first := inputs[0].ID

	runner := &engine.StepRunner{
		Step: pendingStep(t, "R"),
		Executor: registry.ExecutorFunc(func(_ context.Context, in []domain.Node) ([]domain.Node, error) {
			in[0], in[1] = in[1], in[0]
			return nil, nil
		}),
	}

	_, err := runner.Run(context.Background(), inputs)
	require.NoError(t, err)
	assert.Equal(t, first, inputs[0].ID)
}

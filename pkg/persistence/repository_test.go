package persistence_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/weave/pkg/adapters/badger"
	"github.com/aretw0/weave/pkg/adapters/memory"
	"github.com/aretw0/weave/pkg/adapters/redis"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/persistence"
	"github.com/aretw0/weave/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]ports.Store {
	t.Helper()

	bs, err := badger.Open("", badger.InMemory())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bs.Close() })

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]ports.Store{
		"memory": memory.NewStore(),
		"badger": bs,
		"redis":  redis.NewFromClient(client),
	}
}

func newRun(t *testing.T, id string, names ...string) *domain.Run {
	t.Helper()
	cfg := domain.Config{Name: "test"}
	for _, n := range names {
		cfg.Pipeline = append(cfg.Pipeline, domain.PipelineStep{Type: "demo", Method: "noop", Name: n})
	}
	run := domain.NewRun(id, cfg, time.Now())
	for i, stage := range cfg.Pipeline {
		step, err := domain.NewStep(id+"-"+stage.Name, id, i+1, stage, time.Now())
		require.NoError(t, err)
		run.Steps = append(run.Steps, step)
	}
	return run
}

func TestRepository_Lifecycle(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := persistence.New(store)
			run := newRun(t, "run-"+name, "A", "B")
			require.NoError(t, repo.CreateRun(ctx, run))

			loaded, err := repo.LoadRun(ctx, run.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.RunRunning, loaded.Status)
			require.Len(t, loaded.Steps, 2)
			assert.Equal(t, "A", loaded.Steps[0].Name)
			assert.Equal(t, "B", loaded.Steps[1].Name)
			assert.Equal(t, "test", loaded.Config.Name)

			// Step A: root inputs in, derived outputs out.
			n0 := domain.NewNode("hello world")
			n1 := domain.NewNode("goodbye")
			stepA := &run.Steps[0]
			require.NoError(t, repo.SetRunning(ctx, stepA, []domain.Node{n0, n1}))
			assert.Equal(t, domain.StepRunning, stepA.Status)
			assert.False(t, stepA.RunAt.IsZero())

			a1 := n0.Derive("hello")
			a1.Ancestors = n0.Ancestors.With("A", n0.ID)
			require.NoError(t, repo.SetCompleted(ctx, stepA, []domain.Node{a1}))
			assert.Equal(t, domain.StepCompleted, stepA.Status)

			inputs, err := repo.StepInputs(ctx, *stepA)
			require.NoError(t, err)
			assert.Equal(t, []string{n0.ID, n1.ID}, domain.NodeIDs(inputs), "inputs keep their recorded order")

			outputs, err := repo.StepOutputs(ctx, *stepA)
			require.NoError(t, err)
			require.Len(t, outputs, 1)
			assert.Equal(t, domain.Ancestry{"A": n0.ID}, outputs[0].Ancestors)

			got, err := repo.GetNode(ctx, a1.ID)
			require.NoError(t, err)
			assert.Equal(t, "hello", got.Value)
			assert.Equal(t, n0.ID, got.ParentNodeID)

			edges, err := repo.Lineage(ctx, a1.ID)
			require.NoError(t, err)
			require.Len(t, edges, 1)
			assert.Equal(t, domain.Edge{Node: a1.ID, Step: "A", Position: 1, Ancestor: n0.ID}, edges[0])

			// Finishing with B pending is rejected against the persisted steps.
			err = repo.SetRunStatus(ctx, run, domain.RunFinished)
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)
			assert.NotErrorIs(t, err, domain.ErrPersistence)

			stepB := &run.Steps[1]
			require.NoError(t, repo.SetRunning(ctx, stepB, []domain.Node{a1}))
			require.NoError(t, repo.SetCompleted(ctx, stepB, nil))
			require.NoError(t, repo.SetRunStatus(ctx, run, domain.RunFinished))
			assert.Equal(t, domain.RunFinished, run.Status)

			err = repo.SetRunStatus(ctx, run, domain.RunErrored)
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		})
	}
}

func TestRepository_RetryReplacesInputs(t *testing.T) {
	ctx := context.Background()
	repo := persistence.New(memory.NewStore())
	run := newRun(t, "run-retry", "A")
	require.NoError(t, repo.CreateRun(ctx, run))

	first := []domain.Node{domain.NewNode("a"), domain.NewNode("b"), domain.NewNode("c")}
	step := &run.Steps[0]
	require.NoError(t, repo.SetRunning(ctx, step, first))
	require.NoError(t, repo.Fail(ctx, step, errors.New("boom")))
	assert.Equal(t, domain.StepErrored, step.Status)
	assert.Equal(t, "boom", step.Error)

	require.NoError(t, repo.RearmStep(ctx, step))
	retry := first[:1]
	require.NoError(t, repo.SetRunning(ctx, step, retry))
	assert.Equal(t, 2, step.Attempt)

	inputs, err := repo.StepInputs(ctx, *step)
	require.NoError(t, err)
	assert.Equal(t, domain.NodeIDs(retry), domain.NodeIDs(inputs))
}

func TestRepository_InvalidTransitionLeavesRecord(t *testing.T) {
	ctx := context.Background()
	repo := persistence.New(memory.NewStore())
	run := newRun(t, "run-invalid", "A")
	require.NoError(t, repo.CreateRun(ctx, run))

	step := &run.Steps[0]
	err := repo.SetCompleted(ctx, step, []domain.Node{domain.NewNode("x")})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.StepPending, step.Status)

	loaded, err := repo.LoadRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StepPending, loaded.Steps[0].Status)

	outputs, err := repo.StepOutputs(ctx, *step)
	require.NoError(t, err)
	assert.Empty(t, outputs, "a rejected transition must not record outputs")
}

func TestRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := persistence.New(memory.NewStore())

	_, err := repo.LoadRun(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.GetNode(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	step := domain.Step{RunID: "missing", Position: 1}
	assert.ErrorIs(t, repo.Fail(ctx, &step, errors.New("x")), domain.ErrNotFound)
}

func TestRepository_DuplicateRun(t *testing.T) {
	ctx := context.Background()
	repo := persistence.New(memory.NewStore())
	run := newRun(t, "run-dup", "A")
	require.NoError(t, repo.CreateRun(ctx, run))

	err := repo.CreateRun(ctx, run)
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestRepository_ListRuns(t *testing.T) {
	ctx := context.Background()
	repo := persistence.New(memory.NewStore())

	older := newRun(t, "run-old", "A")
	older.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := newRun(t, "run-new", "A")
	newer.CreatedAt = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.CreateRun(ctx, older))
	require.NoError(t, repo.CreateRun(ctx, newer))

	runs, err := repo.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-new", runs[0].ID)
	assert.Equal(t, "run-old", runs[1].ID)
	assert.Empty(t, runs[0].Steps)
}

func TestRepository_WithClock(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	repo := persistence.New(memory.NewStore(), persistence.WithClock(func() time.Time { return fixed }))
	run := newRun(t, "run-clock", "A")
	require.NoError(t, repo.CreateRun(ctx, run))

	step := &run.Steps[0]
	require.NoError(t, repo.SetRunning(ctx, step, nil))
	assert.True(t, step.RunAt.Equal(fixed))
}

// failingStore rejects every commit.
type failingStore struct {
	ports.Store
}

func (failingStore) Update(ctx context.Context, fn func(tx ports.Tx) error) error {
	return errors.New("disk full")
}

func TestRepository_StoreFailure(t *testing.T) {
	ctx := context.Background()
	repo := persistence.New(failingStore{Store: memory.NewStore()})

	err := repo.CreateRun(ctx, newRun(t, "run-fail", "A"))
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorContains(t, err, "disk full")
}

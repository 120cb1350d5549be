package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	hooks := m.Hooks()
	ctx := context.Background()

	start := &domain.StepEvent{Type: "split", Method: "separator", Inputs: 2}
	hooks.OnStepStart(ctx, start)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepsActive))

	hooks.OnStepFinish(ctx, &domain.StepEvent{
		Type: "split", Method: "separator", Status: domain.StepCompleted,
		Inputs: 2, Outputs: 5, Duration: 20 * time.Millisecond,
	})
	hooks.OnStepFinish(ctx, &domain.StepEvent{Type: "split", Method: "separator", Status: domain.StepErrored})
	hooks.OnRunFinish(ctx, &domain.RunEvent{Status: domain.RunFinished})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepsTotal.WithLabelValues("split", "separator", string(domain.StepCompleted))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepsTotal.WithLabelValues("split", "separator", string(domain.StepErrored))))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.NodesTotal.WithLabelValues("in")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.NodesTotal.WithLabelValues("out")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(string(domain.RunFinished))))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StepDuration))
}

func TestMetrics_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	m.RunsTotal.WithLabelValues("finished").Inc()

	rec := httptest.NewRecorder()
	observability.Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `weave_runs_total{status="finished"} 1`)
}

func TestMetrics_Unregistered(t *testing.T) {
	m := observability.NewMetrics(nil)
	m.Hooks().OnRunFinish(context.Background(), &domain.RunEvent{Status: domain.RunErrored})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(string(domain.RunErrored))))
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	hooks := observability.LogHooks(logger)
	ctx := context.Background()

	hooks.OnStepStart(ctx, &domain.StepEvent{RunID: "r1", Step: "words", Position: 1, Inputs: 3})
	hooks.OnStepFinish(ctx, &domain.StepEvent{RunID: "r1", Step: "words", Status: domain.StepErrored, Err: errors.New("boom")})
	hooks.OnRunFinish(ctx, &domain.RunEvent{RunID: "r1", Status: domain.RunFinished})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "msg=step_start")
	assert.Contains(t, lines[0], "inputs=3")
	assert.Contains(t, lines[1], "level=WARN")
	assert.Contains(t, lines[1], "err=boom")
	assert.Contains(t, lines[2], "status=finished")
}

package tui_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/weave/internal/presentation/tui"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRun(t *testing.T) *domain.Run {
	t.Helper()
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	run := domain.NewRun("run-1", domain.Config{Name: "demo"}, now)
	a, err := domain.NewStep("a", "run-1", 1, domain.PipelineStep{Type: "split", Method: "separator", Name: "words"}, now)
	require.NoError(t, err)
	b, err := domain.NewStep("b", "run-1", 2, domain.PipelineStep{Type: "filter", Method: "length", Name: "long"}, now)
	require.NoError(t, err)
	require.NoError(t, a.SetRunning(now))
	require.NoError(t, a.SetCompleted(now))
	require.NoError(t, b.SetRunning(now))
	b.Fail(errors.New("bad | input"), now)
	run.Steps = []domain.Step{a, b}
	return run
}

func TestRunMarkdown(t *testing.T) {
	md := tui.RunMarkdown(sampleRun(t))
	assert.Contains(t, md, "# Run `run-1`")
	assert.Contains(t, md, "- **Pipeline:** demo")
	assert.Contains(t, md, "| 1 | words | `split/separator` | completed | 1 |  |")
	assert.Contains(t, md, `| 2 | long | `+"`filter/length`"+` | errored | 1 | bad \| input |`)
}

func TestWriteRun_Plain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, tui.WriteRun(&buf, sampleRun(t), tui.PlainPalette()))
	out := buf.String()
	assert.Contains(t, out, "run run-1  running")
	assert.Contains(t, out, "split/separator")
	assert.NotContains(t, out, "\x1b[", "plain output must not carry escape sequences")
}

func TestWriteRuns(t *testing.T) {
	var buf bytes.Buffer
	run := sampleRun(t)
	require.NoError(t, tui.WriteRuns(&buf, []domain.Run{*run}, tui.PlainPalette()))
	assert.Contains(t, buf.String(), "run-1")
	assert.Contains(t, buf.String(), "2025-01-02T03:04:05Z")
}

func TestRenderer(t *testing.T) {
	render, err := tui.NewRenderer(80)
	require.NoError(t, err)
	out, err := render("# Title\n\nbody")
	require.NoError(t, err)
	assert.Contains(t, out, "Title")
}

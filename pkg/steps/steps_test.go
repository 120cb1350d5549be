package steps_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/registry"
	"github.com/aretw0/weave/pkg/steps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, typ, method string, params map[string]any) registry.Executor {
	t.Helper()
	exec, err := buildErr(typ, method, params)
	require.NoError(t, err)
	return exec
}

func buildErr(typ, method string, params map[string]any) (registry.Executor, error) {
	stage := domain.PipelineStep{Type: typ, Method: method, Name: typ, Parameters: params}
	step, err := domain.NewStep("s1", "r1", 1, stage, time.Now())
	if err != nil {
		return nil, err
	}
	return steps.Default().Build(step)
}

func values(nodes []domain.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Value
	}
	return out
}

func TestDefault_Keys(t *testing.T) {
	keys := steps.Default().Keys()
	assert.Equal(t, []registry.Key{
		{Type: "filter", Method: "length"},
		{Type: "split", Method: "separator"},
		{Type: "transform", Method: "template"},
	}, keys)
}

func TestTemplate(t *testing.T) {
	exec := build(t, "transform", "template", map[string]any{"template": "<{{ upper . }}>"})
	in := []domain.Node{domain.NewNode("hi"), domain.NewNode("there")}

	out, err := exec.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"<HI>", "<THERE>"}, values(out))
	assert.Equal(t, in[0].ID, out[0].ParentNodeID)
	assert.NotEqual(t, in[0].ID, out[0].ID)
}

func TestTemplate_Title(t *testing.T) {
	exec := build(t, "transform", "template", map[string]any{"template": "{{ title . }}"})
	out, err := exec.Execute(context.Background(), []domain.Node{domain.NewNode("hello  big world")})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello Big World"}, values(out))
}

func TestTemplate_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
	}{
		{"missing template", nil},
		{"parse error", map[string]any{"template": "{{ .Foo"}},
		{"unknown key", map[string]any{"template": "{{.}}", "color": "red"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildErr("transform", "template", tt.params)
			assert.ErrorIs(t, err, domain.ErrConfigMismatch)
		})
	}
}

func TestLength(t *testing.T) {
	exec := build(t, "filter", "length", map[string]any{"min": "3", "max": 5})
	in := []domain.Node{domain.NewNode("ab"), domain.NewNode("abc"), domain.NewNode("ábcde"), domain.NewNode("abcdef")}

	out, err := exec.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"abc", "ábcde"}, values(out))
	for _, n := range out {
		assert.NotEqual(t, n.ParentNodeID, n.ID)
		assert.Contains(t, domain.NodeIDs(in), n.ParentNodeID)
	}
}

func TestLength_InvalidBounds(t *testing.T) {
	_, err := buildErr("filter", "length", map[string]any{"min": 5, "max": 2})
	assert.ErrorIs(t, err, domain.ErrConfigMismatch)
}

func TestSeparator(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		input  string
		want   []string
	}{
		{"whitespace", nil, "  hello   world ", []string{"hello", "world"}},
		{"comma", map[string]any{"separator": ","}, "a,,b", []string{"a", "b"}},
		{"keep empty", map[string]any{"separator": ",", "keep_empty": true}, "a,,b", []string{"a", "", "b"}},
		{"trim", map[string]any{"separator": ",", "trim": true}, "a , b", []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := build(t, "split", "separator", tt.params)
			parent := domain.NewNode(tt.input)
			out, err := exec.Execute(context.Background(), []domain.Node{parent})
			require.NoError(t, err)
			assert.Equal(t, tt.want, values(out))
			for _, n := range out {
				assert.Equal(t, parent.ID, n.ParentNodeID)
			}
		})
	}
}

func TestExecutors_HonorCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := build(t, "split", "separator", nil)
	_, err := exec.Execute(ctx, []domain.Node{domain.NewNode("a b")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeConfig_WrongStep(t *testing.T) {
	step, err := domain.NewStep("s1", "r1", 1, domain.PipelineStep{Type: "split", Method: "separator", Name: "x"}, time.Now())
	require.NoError(t, err)
	_, err = steps.NewTemplate(step)
	assert.ErrorIs(t, err, domain.ErrConfigMismatch)
}

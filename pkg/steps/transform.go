package steps

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/registry"
)

// TemplateConfig configures transform/template.
type TemplateConfig struct {
	// Template is a text/template rendered with the node value as dot.
	Template string `mapstructure:"template"`
}

var templateFuncs = template.FuncMap{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"trim":  strings.TrimSpace,
	"title": func(s string) string {
		words := strings.Fields(s)
		for i, w := range words {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
		return strings.Join(words, " ")
	},
}

type templateStep struct {
	name string
	tmpl *template.Template
}

// NewTemplate builds a transform/template executor.
func NewTemplate(step domain.Step) (registry.Executor, error) {
	cfg, err := registry.DecodeConfig[TemplateConfig](step, TypeTransform, MethodTemplate)
	if err != nil {
		return nil, err
	}
	if cfg.Template == "" {
		return nil, fmt.Errorf("%w: step %q: template is required", domain.ErrConfigMismatch, step.Name)
	}
	tmpl, err := template.New(step.Name).Funcs(templateFuncs).Option("missingkey=error").Parse(cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("%w: step %q: %v", domain.ErrConfigMismatch, step.Name, err)
	}
	return &templateStep{name: step.Name, tmpl: tmpl}, nil
}

func (s *templateStep) Execute(ctx context.Context, inputs []domain.Node) ([]domain.Node, error) {
	out := make([]domain.Node, 0, len(inputs))
	var buf strings.Builder
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		buf.Reset()
		if err := s.tmpl.Execute(&buf, in.Value); err != nil {
			return nil, fmt.Errorf("render node %s: %w", in.ID, err)
		}
		out = append(out, in.Derive(buf.String()))
	}
	return out, nil
}

package steps

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/registry"
)

// LengthConfig configures filter/length. Lengths count runes; Max 0 means no upper bound.
type LengthConfig struct {
	Min int `mapstructure:"min"`
	Max int `mapstructure:"max"`
}

type lengthStep struct {
	cfg LengthConfig
}

// NewLength builds a filter/length executor.
func NewLength(step domain.Step) (registry.Executor, error) {
	cfg, err := registry.DecodeConfig[LengthConfig](step, TypeFilter, MethodLength)
	if err != nil {
		return nil, err
	}
	if cfg.Min < 0 || cfg.Max < 0 || (cfg.Max > 0 && cfg.Max < cfg.Min) {
		return nil, fmt.Errorf("%w: step %q: invalid bounds min=%d max=%d", domain.ErrConfigMismatch, step.Name, cfg.Min, cfg.Max)
	}
	return &lengthStep{cfg: cfg}, nil
}

// Execute keeps the nodes whose value fits the bounds. Kept nodes are derived,
// never passed through, since a node belongs to the step that produced it.
func (s *lengthStep) Execute(ctx context.Context, inputs []domain.Node) ([]domain.Node, error) {
	var out []domain.Node
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := utf8.RuneCountInString(in.Value)
		if n < s.cfg.Min || (s.cfg.Max > 0 && n > s.cfg.Max) {
			continue
		}
		out = append(out, in.Derive(in.Value))
	}
	return out, nil
}

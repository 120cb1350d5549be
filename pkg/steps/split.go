package steps

import (
	"context"
	"strings"

	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/registry"
)

// SeparatorConfig configures split/separator.
type SeparatorConfig struct {
	// Separator splits each value. Empty splits on runs of whitespace.
	Separator string `mapstructure:"separator"`
	// KeepEmpty keeps empty pieces produced by adjacent separators.
	KeepEmpty bool `mapstructure:"keep_empty"`
	// Trim strips surrounding whitespace from every piece.
	Trim bool `mapstructure:"trim"`
}

type separatorStep struct {
	cfg SeparatorConfig
}

// NewSeparator builds a split/separator executor.
func NewSeparator(step domain.Step) (registry.Executor, error) {
	cfg, err := registry.DecodeConfig[SeparatorConfig](step, TypeSplit, MethodSeparator)
	if err != nil {
		return nil, err
	}
	return &separatorStep{cfg: cfg}, nil
}

func (s *separatorStep) Execute(ctx context.Context, inputs []domain.Node) ([]domain.Node, error) {
	var out []domain.Node
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, piece := range s.split(in.Value) {
			if s.cfg.Trim {
				piece = strings.TrimSpace(piece)
			}
			if piece == "" && !s.cfg.KeepEmpty {
				continue
			}
			out = append(out, in.Derive(piece))
		}
	}
	return out, nil
}

func (s *separatorStep) split(v string) []string {
	if s.cfg.Separator == "" {
		return strings.Fields(v)
	}
	return strings.Split(v, s.cfg.Separator)
}

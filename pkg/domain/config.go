package domain

import (
	"errors"
	"fmt"
)

// Config is the pipeline declaration a run is created from.
// A run keeps its own deep copy; later edits to the source never reach it.
type Config struct {
	Name     string         `json:"name,omitempty" yaml:"name" mapstructure:"name"`
	Input    InputConfig    `json:"input" yaml:"input" mapstructure:"input"`
	Defaults map[string]any `json:"defaults,omitempty" yaml:"defaults" mapstructure:"defaults"`
	Pipeline []PipelineStep `json:"pipeline" yaml:"pipeline" mapstructure:"pipeline"`
}

// InputConfig declares where the root nodes of a run come from.
type InputConfig struct {
	Values []string `json:"values,omitempty" yaml:"values" mapstructure:"values"`
	File   string   `json:"file,omitempty" yaml:"file" mapstructure:"file"`
}

// PipelineStep declares one stage of the pipeline.
type PipelineStep struct {
	Type       string         `json:"type" yaml:"type" mapstructure:"type"`
	Method     string         `json:"method" yaml:"method" mapstructure:"method"`
	Name       string         `json:"name" yaml:"name" mapstructure:"name"`
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters" mapstructure:"parameters"`

	// Defaults holds the pipeline defaults the stage did not set itself.
	// Keys the step does not declare are ignored when its parameters are decoded.
	Defaults map[string]any `json:"defaults,omitempty" yaml:"-" mapstructure:"-"`
}

// Validate checks the structural rules the engine relies on.
// Stage names key the ancestry map, so they must be present and unique.
func (c Config) Validate() error {
	if len(c.Pipeline) == 0 {
		return fmt.Errorf("%w: pipeline has no steps", ErrConfigMismatch)
	}

	var errs []error
	seen := make(map[string]int, len(c.Pipeline))
	for i, stage := range c.Pipeline {
		pos := i + 1
		if stage.Type == "" {
			errs = append(errs, fmt.Errorf("step %d: type is required", pos))
		}
		if stage.Name == "" {
			errs = append(errs, fmt.Errorf("step %d: name is required", pos))
			continue
		}
		if prev, dup := seen[stage.Name]; dup {
			errs = append(errs, fmt.Errorf("step %d: name %q already used by step %d", pos, stage.Name, prev))
			continue
		}
		seen[stage.Name] = pos
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrConfigMismatch, errors.Join(errs...))
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c Config) Clone() Config {
	out := Config{
		Name: c.Name,
		Input: InputConfig{
			Values: append([]string(nil), c.Input.Values...),
			File:   c.Input.File,
		},
		Defaults: deepCopyMap(c.Defaults),
	}
	if c.Pipeline != nil {
		out.Pipeline = make([]PipelineStep, len(c.Pipeline))
		for i, stage := range c.Pipeline {
			out.Pipeline[i] = stage.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the stage declaration.
func (p PipelineStep) Clone() PipelineStep {
	p.Parameters = deepCopyMap(p.Parameters)
	p.Defaults = deepCopyMap(p.Defaults)
	return p
}

// CloneParameters returns a deep copy of a parameter map.
func CloneParameters(m map[string]any) map[string]any {
	return deepCopyMap(m)
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return val
	}
}

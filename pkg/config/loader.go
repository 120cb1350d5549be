// Package config loads pipeline declarations from YAML or JSON files.
package config

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/goccy/go-json"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Format is the serialization of a pipeline file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf picks the format from the file extension. Anything but .json is YAML.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Load reads and parses the pipeline file at path.
// A relative input.file is resolved against the directory of path.
func Load(path string) (domain.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Config{}, fmt.Errorf("failed to read pipeline config: %w", err)
	}
	cfg, err := Parse(data, FormatOf(path))
	if err != nil {
		return domain.Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.Input.File != "" && !filepath.IsAbs(cfg.Input.File) {
		cfg.Input.File = filepath.Join(filepath.Dir(path), cfg.Input.File)
	}
	return cfg, nil
}

// Parse decodes a pipeline declaration, hands the defaults to every stage and
// validates the result.
func Parse(data []byte, format Format) (domain.Config, error) {
	raw := map[string]any{}
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return domain.Config{}, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return domain.Config{}, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	var cfg domain.Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &cfg,
		ErrorUnused: true,
	})
	if err != nil {
		return cfg, err
	}
	if err := dec.Decode(raw); err != nil {
		return cfg, fmt.Errorf("%w: %v", domain.ErrConfigMismatch, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return ApplyDefaults(cfg), nil
}

// ApplyDefaults returns a copy of cfg where every stage carries the defaults
// it does not override. They are kept apart from the stage's own parameters,
// which stay strictly checked, so a default a step does not declare is unused
// rather than rejected. Calling it again recomputes the stage defaults.
func ApplyDefaults(cfg domain.Config) domain.Config {
	out := cfg.Clone()
	for i := range out.Pipeline {
		stage := &out.Pipeline[i]
		stage.Defaults = nil
		if len(out.Defaults) == 0 {
			continue
		}
		defaults := domain.CloneParameters(out.Defaults)
		for key := range stage.Parameters {
			delete(defaults, key)
		}
		if len(defaults) > 0 {
			stage.Defaults = defaults
		}
	}
	return out
}

// Effective returns the parameters stage runs with: its own parameters with
// its defaults merged underneath.
func Effective(stage domain.PipelineStep) (map[string]any, error) {
	params := domain.CloneParameters(stage.Parameters)
	if params == nil {
		params = map[string]any{}
	}
	if len(stage.Defaults) == 0 {
		return params, nil
	}
	if err := mergo.Merge(&params, domain.CloneParameters(stage.Defaults)); err != nil {
		return nil, fmt.Errorf("failed to merge defaults into step %q: %w", stage.Name, err)
	}
	return params, nil
}

// InputNodes builds the root nodes declared by cfg.Input: inline values first,
// then one node per non-empty line of the input file.
func InputNodes(cfg domain.Config) ([]domain.Node, error) {
	nodes := make([]domain.Node, 0, len(cfg.Input.Values))
	for _, v := range cfg.Input.Values {
		nodes = append(nodes, domain.NewNode(v))
	}
	if cfg.Input.File == "" {
		return nodes, nil
	}

	data, err := os.ReadFile(cfg.Input.File)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	lines, err := ReadLines(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Input.File, err)
	}
	for _, line := range lines {
		nodes = append(nodes, domain.NewNode(line))
	}
	return nodes, nil
}

// ReadLines returns the non-blank lines of r, trimmed of trailing whitespace.
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

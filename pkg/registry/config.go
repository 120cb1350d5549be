package registry

import (
	"fmt"

	"github.com/aretw0/weave/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// DecodeConfig decodes the stored parameters of step into T.
// It fails with domain.ErrConfigMismatch when the step is not of (typ, method),
// or when the parameters carry unknown keys or values that do not fit T.
// Pipeline defaults are decoded first; keys T does not declare are skipped there.
func DecodeConfig[T any](step domain.Step, typ, method string) (T, error) {
	var out T
	if step.Type != typ || step.Method != method {
		return out, fmt.Errorf("%w: step %q is %s, expected %s",
			domain.ErrConfigMismatch, step.Name, Key{step.Type, step.Method}, Key{typ, method})
	}

	stage, err := step.StepConfig()
	if err != nil {
		return out, err
	}

	if len(stage.Defaults) > 0 {
		if err := decodeInto(&out, stage.Defaults, false); err != nil {
			return out, fmt.Errorf("%w: step %q defaults: %v", domain.ErrConfigMismatch, step.Name, err)
		}
	}
	if err := decodeInto(&out, stage.Parameters, true); err != nil {
		return out, fmt.Errorf("%w: step %q parameters: %v", domain.ErrConfigMismatch, step.Name, err)
	}
	return out, nil
}

func decodeInto(out any, params map[string]any, strict bool) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      strict,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return dec.Decode(params)
}

package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Decode copies the configuration into out, a pointer to a struct tagged
// with `mapstructure:"..."`. Strings are converted to numbers, bools and
// durations as needed, so values from files and environment mix freely.
func (c Config) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}
	if err := dec.Decode(normalize(c.data)); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// normalize converts YAML-style nested maps so mapstructure sees string keys.
func normalize(v any) any {
	if m, ok := asMap(v); ok {
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = normalize(val)
		}
		return out
	}
	if s, ok := v.([]any); ok {
		out := make([]any, len(s))
		for i, val := range s {
			out[i] = normalize(val)
		}
		return out
	}
	return v
}

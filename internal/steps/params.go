package steps

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

// Param helpers accept the numeric types YAML, TOML and JSON decoding produce.

func paramString(step domain.ProcessStep, key, defaultVal string) string {
	if v, ok := step.Params[key].(string); ok && v != "" {
		return v
	}
	return defaultVal
}

func paramInt(step domain.ProcessStep, key string, defaultVal int) int {
	switch v := step.Params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return defaultVal
	}
}

func paramDuration(step domain.ProcessStep, key string, defaultVal time.Duration) time.Duration {
	s, ok := step.Params[key].(string)
	if !ok || s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

func paramStrings(step domain.ProcessStep, key string) []string {
	switch v := step.Params[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}

// decodeInputs decodes every prerequisite output of type T, in step ID order.
// Outputs that are not a T are skipped.
func decodeInputs[T output](inputs map[string]json.RawMessage) ([]T, error) {
	var out []T
	for _, id := range sortedKeys(inputs) {
		raw := inputs[id]
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			continue
		}
		var v T
		if probe.Type != v.outputType() {
			continue
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: decode output of step %s: %v", domain.ErrValidation, id, err)
		}
		out = append(out, v)
	}
	return out, nil
}

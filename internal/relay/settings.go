// ABOUTME: Model parameter resolution from an agent's stored settings
// ABOUTME: Missing or malformed settings fall back to defaults per field

package relay

import "encoding/json"

// Default model parameters, applied field-by-field when an agent's
// settings omit or mangle a value.
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
)

// ModelSettings are the resolved model parameters for a relay attempt.
type ModelSettings struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// ParseModelSettings resolves an agent's raw settings JSON against the
// defaults. Malformed JSON yields the defaults unchanged; well-formed
// JSON overrides only the fields it names.
func ParseModelSettings(raw string) ModelSettings {
	settings := ModelSettings{
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
	if raw == "" {
		return settings
	}

	var overrides struct {
		Model       *string  `json:"model"`
		Temperature *float64 `json:"temperature"`
		MaxTokens   *int     `json:"max_tokens"`
	}
	if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
		return settings
	}

	if overrides.Model != nil && *overrides.Model != "" {
		settings.Model = *overrides.Model
	}
	if overrides.Temperature != nil {
		settings.Temperature = *overrides.Temperature
	}
	if overrides.MaxTokens != nil {
		settings.MaxTokens = *overrides.MaxTokens
	}
	return settings
}

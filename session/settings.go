package session

import (
	"errors"
	"fmt"
	"slices"
)

var ErrInvalidSettings = errors.New("invalid settings")

// Settings are the per-request completion parameters chosen in the sidebar.
type Settings struct {
	Model        string  `json:"model"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
	SystemPrompt string  `json:"system_prompt"`
}

// Limits bound what a user may pick for Settings.
type Limits struct {
	Models              []string
	DefaultModel        string
	MinTemperature      float64
	MaxTemperature      float64
	DefaultTemperature  float64
	MinMaxTokens        int
	MaxMaxTokens        int
	DefaultMaxTokens    int
	DefaultSystemPrompt string
}

// Defaults returns the settings a new session starts with.
func (l Limits) Defaults() Settings {
	return Settings{
		Model:        l.DefaultModel,
		Temperature:  l.DefaultTemperature,
		MaxTokens:    l.DefaultMaxTokens,
		SystemPrompt: l.DefaultSystemPrompt,
	}
}

func (l Limits) Validate(s Settings) error {
	if !slices.Contains(l.Models, s.Model) {
		return fmt.Errorf("%w: unknown model %q", ErrInvalidSettings, s.Model)
	}

	// written so NaN fails too
	if !(s.Temperature >= l.MinTemperature && s.Temperature <= l.MaxTemperature) {
		return fmt.Errorf("%w: temperature %v outside [%.2f, %.2f]", ErrInvalidSettings, s.Temperature, l.MinTemperature, l.MaxTemperature)
	}

	if s.MaxTokens < l.MinMaxTokens || s.MaxTokens > l.MaxMaxTokens {
		return fmt.Errorf("%w: max tokens %d outside [%d, %d]", ErrInvalidSettings, s.MaxTokens, l.MinMaxTokens, l.MaxMaxTokens)
	}

	return nil
}

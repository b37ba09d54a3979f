package appconfig

import (
	"slices"
	"strings"
	"time"

	"github.com/SaiNageswarS/chat-boot/session"
	"github.com/SaiNageswarS/go-api-boot/config"
)

type AppConfig struct {
	config.BootConfig `ini:",extends"`

	ListenAddr  string `env:"LISTEN-ADDR" ini:"listen_addr"`
	Title       string `ini:"title"`
	LLMProvider string `env:"LLM-PROVIDER" ini:"llm_provider"`
	LLMBaseURL  string `env:"LLM-BASE-URL" ini:"llm_base_url"`

	// comma separated
	Models       string `ini:"models"`
	DefaultModel string `ini:"default_model"`

	MinTemperature     float64 `ini:"min_temperature"`
	MaxTemperature     float64 `ini:"max_temperature"`
	DefaultTemperature float64 `ini:"default_temperature"`
	MinMaxTokens       int     `ini:"min_max_tokens"`
	MaxMaxTokens       int     `ini:"max_max_tokens"`
	DefaultMaxTokens   int     `ini:"default_max_tokens"`

	Audience string `ini:"audience"`

	SessionIdleMinutes int `ini:"session_idle_minutes"`
	TypewriterChunk    int `ini:"typewriter_chunk"`
	TypewriterDelayMs  int `ini:"typewriter_delay_ms"`
}

// ApplyDefaults fills every unset key with the built-in value.
func (c *AppConfig) ApplyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.Title == "" {
		c.Title = "EDUCATION ASSISTANT"
	}
	if c.LLMProvider == "" {
		c.LLMProvider = "groq"
	}
	if strings.TrimSpace(c.Models) == "" {
		c.Models = "llama-3.1-8b-instant,groq/compound,openai/gpt-oss-120b"
	}
	if c.DefaultModel == "" {
		c.DefaultModel = "groq/compound"
	}
	if c.MinTemperature == 0 && c.MaxTemperature == 0 {
		c.MinTemperature, c.MaxTemperature = 0.1, 0.9
	}
	// 0 is a real default only when the range allows it
	if c.DefaultTemperature == 0 && c.MinTemperature > 0 {
		c.DefaultTemperature = 0.4
	}
	if c.MinMaxTokens == 0 && c.MaxMaxTokens == 0 {
		c.MinMaxTokens, c.MaxMaxTokens = 100, 400
	}
	if c.DefaultMaxTokens == 0 {
		c.DefaultMaxTokens = 350
	}
	if c.SessionIdleMinutes == 0 {
		c.SessionIdleMinutes = 120
	}
	if c.TypewriterChunk == 0 {
		c.TypewriterChunk = 3
	}
	if c.TypewriterDelayMs == 0 {
		c.TypewriterDelayMs = 15
	}
}

func (c *AppConfig) ModelList() []string {
	var models []string
	for _, m := range strings.Split(c.Models, ",") {
		if m = strings.TrimSpace(m); m != "" {
			models = append(models, m)
		}
	}
	return models
}

// Limits derives the settings bounds offered in the sidebar.
func (c *AppConfig) Limits(defaultSystemPrompt string) session.Limits {
	models := c.ModelList()
	defaultModel := c.DefaultModel
	if len(models) > 0 && !slices.Contains(models, defaultModel) {
		defaultModel = models[0]
	}

	return session.Limits{
		Models:              models,
		DefaultModel:        defaultModel,
		MinTemperature:      c.MinTemperature,
		MaxTemperature:      c.MaxTemperature,
		DefaultTemperature:  clampFloat(c.DefaultTemperature, c.MinTemperature, c.MaxTemperature),
		MinMaxTokens:        c.MinMaxTokens,
		MaxMaxTokens:        c.MaxMaxTokens,
		DefaultMaxTokens:    clampInt(c.DefaultMaxTokens, c.MinMaxTokens, c.MaxMaxTokens),
		DefaultSystemPrompt: defaultSystemPrompt,
	}
}

func (c *AppConfig) SessionIdleTTL() time.Duration {
	if c.SessionIdleMinutes < 0 {
		return 0
	}
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

func (c *AppConfig) TypewriterDelay() time.Duration {
	if c.TypewriterDelayMs < 0 {
		return 0
	}
	return time.Duration(c.TypewriterDelayMs) * time.Millisecond
}

func clampFloat(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// Package config provides configuration for the persona server.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// ModeMock replaces every configured provider with the local mock provider.
const ModeMock = "MOCK"

// Config holds the server configuration.
type Config struct {
	// Server settings
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// Database
	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:persona.db?cache=shared&mode=rwc"`

	// Characters
	CharacterStore string `env:"CHARACTER_STORE" envDefault:"file"` // file or sqlite
	CharactersDir  string `env:"CHARACTERS_DIR" envDefault:"storage/characters"`

	// Providers
	Mode            string `env:"PERSONA_MODE"`
	DefaultProvider string `env:"DEFAULT_PROVIDER"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	OpenAIModel     string `env:"OPENAI_MODEL" envDefault:"gpt-4o"`
	DeepSeekAPIKey  string `env:"DEEPSEEK_API_KEY"`
	AliyunAPIKey    string `env:"ALIYUN_API_KEY"`
	LiteLLMURL      string `env:"LITELLM_URL"`
	LiteLLMAPIKey   string `env:"LITELLM_API_KEY"`
	LiteLLMModel    string `env:"LITELLM_MODEL" envDefault:"gpt-4o-mini"`
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	GeminiModel     string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	LLMTimeoutMs    int    `env:"LLM_TIMEOUT_MS" envDefault:"60000"`

	// Turns
	MaxInputChars int    `env:"MAX_INPUT_CHARS" envDefault:"8000"`
	PolicyPath    string `env:"POLICY_PATH"` // rego module; built-in policy when empty

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.CharacterStore != "file" && cfg.CharacterStore != "sqlite" {
		return nil, fmt.Errorf("invalid CHARACTER_STORE %q: want file or sqlite", cfg.CharacterStore)
	}
	return cfg, nil
}

// LLMTimeout returns the per-call provider timeout.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutMs) * time.Millisecond
}

// MockMode reports whether providers should be replaced by the mock provider.
func (c *Config) MockMode() bool {
	return strings.EqualFold(c.Mode, ModeMock)
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

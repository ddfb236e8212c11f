// Package groq binds the Groq chat API, which is OpenAI-compatible.
package groq

import (
	"github.com/sirupsen/logrus"

	"github.com/tripgrid/trip-router/internal/providers/openaicompat"
	"github.com/tripgrid/trip-router/internal/types"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.3-70b-versatile"
)

// Config holds Groq-specific settings.
type Config struct {
	APIKey  string              `yaml:"api_key"`
	BaseURL string              `yaml:"base_url"`
	Model   string              `yaml:"model"`
	Profile types.ProviderProfile `yaml:"profile"`
}

// New creates the Groq provider handle.
func New(cfg *Config, logger *logrus.Logger) (*openaicompat.Adapter, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	profile := cfg.Profile
	profile.Name = types.ProviderGroq

	return openaicompat.New(openaicompat.Config{
		APIKey:  cfg.APIKey,
		BaseURL: baseURL,
		Model:   model,
		Profile: profile,
	}, logger)
}

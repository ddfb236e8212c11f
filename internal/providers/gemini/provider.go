// Package gemini binds Google's Gemini API through its OpenAI-compatible
// endpoint.
package gemini

import (
	"github.com/sirupsen/logrus"

	"github.com/tripgrid/trip-router/internal/providers/openaicompat"
	"github.com/tripgrid/trip-router/internal/types"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	DefaultModel   = "gemini-2.0-flash"
)

// Config holds Gemini-specific settings.
type Config struct {
	APIKey  string              `yaml:"api_key"`
	BaseURL string              `yaml:"base_url"`
	Model   string              `yaml:"model"`
	Profile types.ProviderProfile `yaml:"profile"`
}

// New creates the Gemini provider handle.
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
	profile.Name = types.ProviderGemini

	return openaicompat.New(openaicompat.Config{
		APIKey:  cfg.APIKey,
		BaseURL: baseURL,
		Model:   model,
		Profile: profile,
	}, logger)
}

// Package cerebras binds the Cerebras inference API, which is
// OpenAI-compatible.
package cerebras

import (
	"github.com/sirupsen/logrus"

	"github.com/tripgrid/trip-router/internal/providers/openaicompat"
	"github.com/tripgrid/trip-router/internal/types"
)

const (
	DefaultBaseURL = "https://api.cerebras.ai/v1"
	DefaultModel   = "llama-3.3-70b"
)

// Config holds Cerebras-specific settings.
type Config struct {
	APIKey  string              `yaml:"api_key"`
	BaseURL string              `yaml:"base_url"`
	Model   string              `yaml:"model"`
	Profile types.ProviderProfile `yaml:"profile"`
}

// New creates the Cerebras provider handle.
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
	profile.Name = types.ProviderCerebras

	return openaicompat.New(openaicompat.Config{
		APIKey:  cfg.APIKey,
		BaseURL: baseURL,
		Model:   model,
		Profile: profile,
	}, logger)
}

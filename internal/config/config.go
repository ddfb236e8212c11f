// Package config loads trip-router configuration from a YAML file with
// environment-variable overrides on top of built-in defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tripgrid/trip-router/internal/complexity"
	"github.com/tripgrid/trip-router/internal/providers/anthropic"
	"github.com/tripgrid/trip-router/internal/providers/cerebras"
	"github.com/tripgrid/trip-router/internal/providers/gemini"
	"github.com/tripgrid/trip-router/internal/providers/groq"
	"github.com/tripgrid/trip-router/internal/routing"
	"github.com/tripgrid/trip-router/internal/types"
)

// Config is the complete application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Router     RouterConfig     `yaml:"router"`
	Complexity ComplexityConfig `yaml:"complexity"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Logging    LoggingConfig    `yaml:"logging"`
	Security   SecurityConfig   `yaml:"security"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string        `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
}

// RouterConfig holds routing engine settings.
type RouterConfig struct {
	HealthCacheTTL time.Duration            `yaml:"health_cache_ttl"`
	Evaluator      routing.EvaluatorWeights `yaml:"evaluator"`
}

// ComplexityConfig holds analyzer settings.
type ComplexityConfig struct {
	Weights    complexity.Weights    `yaml:"weights"`
	Thresholds complexity.Thresholds `yaml:"thresholds"`
}

// ProvidersConfig holds per-vendor settings. A nil section disables the
// vendor entirely.
type ProvidersConfig struct {
	Groq      *groq.Config      `yaml:"groq"`
	Gemini    *gemini.Config    `yaml:"gemini"`
	Cerebras  *cerebras.Config  `yaml:"cerebras"`
	Anthropic *anthropic.Config `yaml:"anthropic"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
	Output string `yaml:"output"` // "stdout", "stderr", or file path
}

// SecurityConfig holds the HTTP security settings.
type SecurityConfig struct {
	APIKeys      []string         `yaml:"api_keys"`
	JWTSecret    string           `yaml:"jwt_secret"`
	RateLimiting RateLimitConfig  `yaml:"rate_limiting"`
	Validation   ValidationConfig `yaml:"request_validation"`
	CORS         CORSConfig       `yaml:"cors"`
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_minute"`
	BurstSize      int  `yaml:"burst_size"`
}

// ValidationConfig holds inbound request validation settings.
type ValidationConfig struct {
	MaxRequestBytes int64 `yaml:"max_request_bytes"`
	MaxJSONDepth    int   `yaml:"max_json_depth"`
	OpenAPIEnabled  bool  `yaml:"openapi_enabled"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Load reads configuration: defaults, then the optional file, then
// environment variables, then validation.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.setDefaults()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	c.Server = ServerConfig{
		Port:           "8080",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	c.Router = RouterConfig{
		HealthCacheTTL: 15 * time.Second,
		Evaluator:      routing.DefaultEvaluatorWeights(),
	}
	c.Complexity = ComplexityConfig{
		Weights:    complexity.DefaultWeights(),
		Thresholds: complexity.DefaultThresholds(),
	}
	c.Logging = LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}
	c.Security = SecurityConfig{
		RateLimiting: RateLimitConfig{
			Enabled:        false,
			RequestsPerMin: 60,
			BurstSize:      10,
		},
		Validation: ValidationConfig{
			MaxRequestBytes: 1 << 20,
			MaxJSONDepth:    10,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
	}
	c.Providers = ProvidersConfig{
		Groq: &groq.Config{
			Profile: types.ProviderProfile{
				PreferredComplexity:   types.ComplexityLow,
				MaxConcurrentRequests: 8,
				Timeout:               10 * time.Second,
				RetryAttempts:         2,
				Cost:                  types.CostRates{InputPer1K: 0.00005, OutputPer1K: 0.00008},
			},
		},
		Gemini: &gemini.Config{
			Profile: types.ProviderProfile{
				PreferredComplexity:   types.ComplexityMedium,
				MaxConcurrentRequests: 8,
				Timeout:               20 * time.Second,
				RetryAttempts:         2,
				Cost:                  types.CostRates{InputPer1K: 0.000075, OutputPer1K: 0.0003},
			},
		},
		Cerebras: &cerebras.Config{
			Profile: types.ProviderProfile{
				PreferredComplexity:   types.ComplexityMedium,
				MaxConcurrentRequests: 4,
				Timeout:               15 * time.Second,
				RetryAttempts:         1,
				Cost:                  types.CostRates{InputPer1K: 0.0001, OutputPer1K: 0.0001},
			},
		},
		Anthropic: &anthropic.Config{
			Profile: types.ProviderProfile{
				PreferredComplexity:   types.ComplexityHigh,
				MaxConcurrentRequests: 4,
				Timeout:               60 * time.Second,
				RetryAttempts:         2,
				Cost:                  types.CostRates{InputPer1K: 0.0008, OutputPer1K: 0.004},
			},
		},
	}
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadFromEnv applies environment overrides. An API key present in the
// environment enables its provider.
func (c *Config) loadFromEnv() {
	if port := os.Getenv("TRIP_ROUTER_PORT"); port != "" {
		c.Server.Port = port
	}
	if level := os.Getenv("TRIP_ROUTER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("TRIP_ROUTER_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
	if secret := os.Getenv("TRIP_ROUTER_JWT_SECRET"); secret != "" {
		c.Security.JWTSecret = secret
	}

	if key := os.Getenv("GROQ_API_KEY"); key != "" && c.Providers.Groq != nil {
		c.Providers.Groq.APIKey = key
		c.Providers.Groq.Profile.Enabled = true
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && c.Providers.Gemini != nil {
		c.Providers.Gemini.APIKey = key
		c.Providers.Gemini.Profile.Enabled = true
	}
	if key := os.Getenv("CEREBRAS_API_KEY"); key != "" && c.Providers.Cerebras != nil {
		c.Providers.Cerebras.APIKey = key
		c.Providers.Cerebras.Profile.Enabled = true
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && c.Providers.Anthropic != nil {
		c.Providers.Anthropic.APIKey = key
		c.Providers.Anthropic.Profile.Enabled = true
	}
}

func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "fatal": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	// The analyzer constructor is the authority on weight and threshold
	// validity; run it here so bad config fails at startup.
	if _, err := complexity.NewAnalyzer(c.Complexity.Weights, c.Complexity.Thresholds); err != nil {
		return err
	}

	enabled := 0
	if c.Providers.Groq != nil && c.Providers.Groq.Profile.Enabled {
		if c.Providers.Groq.APIKey == "" {
			return fmt.Errorf("groq is enabled but has no API key")
		}
		enabled++
	}
	if c.Providers.Gemini != nil && c.Providers.Gemini.Profile.Enabled {
		if c.Providers.Gemini.APIKey == "" {
			return fmt.Errorf("gemini is enabled but has no API key")
		}
		enabled++
	}
	if c.Providers.Cerebras != nil && c.Providers.Cerebras.Profile.Enabled {
		if c.Providers.Cerebras.APIKey == "" {
			return fmt.Errorf("cerebras is enabled but has no API key")
		}
		enabled++
	}
	if c.Providers.Anthropic != nil && c.Providers.Anthropic.Profile.Enabled {
		if c.Providers.Anthropic.APIKey == "" {
			return fmt.Errorf("anthropic is enabled but has no API key")
		}
		enabled++
	}
	if enabled == 0 {
		return fmt.Errorf("at least one provider must be enabled")
	}
	return nil
}

// EnabledProviders lists the vendors that will be registered.
func (c *Config) EnabledProviders() []types.ProviderID {
	var out []types.ProviderID
	if c.Providers.Groq != nil && c.Providers.Groq.Profile.Enabled {
		out = append(out, types.ProviderGroq)
	}
	if c.Providers.Gemini != nil && c.Providers.Gemini.Profile.Enabled {
		out = append(out, types.ProviderGemini)
	}
	if c.Providers.Cerebras != nil && c.Providers.Cerebras.Profile.Enabled {
		out = append(out, types.ProviderCerebras)
	}
	if c.Providers.Anthropic != nil && c.Providers.Anthropic.Profile.Enabled {
		out = append(out, types.ProviderAnthropic)
	}
	return out
}

// Package anthropic binds the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	"github.com/tripgrid/trip-router/internal/providers"
	"github.com/tripgrid/trip-router/internal/types"
)

const DefaultModel = "claude-3-5-haiku-20241022"

const systemPrompt = "You are a travel-itinerary planner. Produce practical, day-by-day itineraries grounded in the traveler's constraints."

// Config holds Anthropic-specific settings.
type Config struct {
	APIKey  string              `yaml:"api_key"`
	BaseURL string              `yaml:"base_url"`
	Model   string              `yaml:"model"`
	Profile types.ProviderProfile `yaml:"profile"`
}

// Provider is the Anthropic capability handle.
type Provider struct {
	*providers.Core
	client anthropic.Client
	model  string
	logger *logrus.Logger
}

// New validates the configuration and builds the provider.
func New(cfg *Config, logger *logrus.Logger) (*Provider, error) {
	if cfg.Profile.Enabled && cfg.APIKey == "" {
		return nil, fmt.Errorf("provider anthropic: api key is required when enabled")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	profile := cfg.Profile
	profile.Name = types.ProviderAnthropic

	return &Provider{
		Core:   providers.NewCore(profile),
		client: anthropic.NewClient(opts...),
		model:  model,
		logger: logger,
	}, nil
}

// IsAvailable reports whether the provider has not tripped its failure
// threshold.
func (p *Provider) IsAvailable(_ context.Context) bool {
	return p.Available()
}

// GenerateResponse calls the Messages API, retrying up to the profile's
// RetryAttempts.
func (p *Provider) GenerateResponse(ctx context.Context, req *types.TripRequest) (*types.GenerationResponse, error) {
	p.Recorder().Begin()
	start := time.Now()

	var lastErr error
	attempts := p.Profile().RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		resp, err := p.client.Messages.New(ctx, p.buildParams(req))
		if err != nil {
			lastErr = err
			p.logger.WithError(err).WithFields(logrus.Fields{
				"provider": p.Name(),
				"attempt":  attempt,
			}).Warn("Generation attempt failed")
			continue
		}

		var content strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				content.WriteString(block.Text)
			}
		}
		usage := types.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		}
		p.NoteSuccess()
		p.Recorder().RecordSuccess(time.Since(start), usage, p.cost(usage))

		return &types.GenerationResponse{
			ID:        resp.ID,
			Provider:  p.Name(),
			Model:     string(resp.Model),
			Content:   content.String(),
			Usage:     usage,
			CreatedAt: time.Now(),
		}, nil
	}

	p.NoteFailure()
	p.Recorder().RecordFailure(time.Since(start))
	return nil, p.wrapError(lastErr)
}

// GenerateStream emulates streaming over a single Messages call: the full
// response is delivered as one content chunk followed by the completion
// chunk. Token-level streaming over the SDK's event stream is a known
// followup once the chain executor needs it.
func (p *Provider) GenerateStream(ctx context.Context, req *types.TripRequest) (<-chan *types.StreamChunk, error) {
	resp, err := p.GenerateResponse(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(chan *types.StreamChunk, 2)
	out <- &types.StreamChunk{Content: resp.Content}
	usage := resp.Usage
	out <- &types.StreamChunk{
		IsComplete: true,
		Metadata: &types.ChunkMetadata{
			Provider:     p.Name(),
			Model:        resp.Model,
			Usage:        &usage,
			FinishReason: "stop",
		},
	}
	close(out)
	return out, nil
}

func (p *Provider) buildParams(req *types.TripRequest) anthropic.MessageNewParams {
	maxTokens := int64(req.Options.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Query)),
		},
	}
	if req.Options.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(req.Options.Temperature))
	}
	if len(req.Options.StopSequences) > 0 {
		params.StopSequences = req.Options.StopSequences
	}
	return params
}

func (p *Provider) cost(usage types.TokenUsage) float64 {
	rates := p.Profile().Cost
	return float64(usage.PromptTokens)*rates.InputPer1K/1000 +
		float64(usage.CompletionTokens)*rates.OutputPer1K/1000
}

func (p *Provider) wrapError(err error) *types.ProviderError {
	code := types.ErrCodeVendor
	retryable := true
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = types.ErrCodeTimeout
	case errors.Is(err, context.Canceled):
		code = types.ErrCodeCancelled
		retryable = false
	}
	msg := "generation failed"
	if err != nil {
		msg = err.Error()
	}
	return &types.ProviderError{
		Provider:  p.Name(),
		Code:      code,
		Message:   msg,
		Retryable: retryable,
		Err:       err,
	}
}

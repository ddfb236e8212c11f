// Package openaicompat implements the provider capability contract over any
// OpenAI-compatible chat endpoint. Groq, Gemini, and Cerebras all expose one,
// so their packages are thin wrappers around this adapter.
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/tripgrid/trip-router/internal/providers"
	"github.com/tripgrid/trip-router/internal/types"
)

const systemPrompt = "You are a travel-itinerary planner. Produce practical, day-by-day itineraries grounded in the traveler's constraints."

// Config holds one vendor endpoint's settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Profile types.ProviderProfile
}

// Adapter is a capability handle backed by an OpenAI-compatible API.
type Adapter struct {
	*providers.Core
	client *openai.Client
	model  string
	logger *logrus.Logger
}

// New validates the configuration and builds the adapter. An enabled
// provider without an API key is a construction-time error.
func New(cfg Config, logger *logrus.Logger) (*Adapter, error) {
	if cfg.Profile.Enabled && cfg.APIKey == "" {
		return nil, fmt.Errorf("provider %s: api key is required when enabled", cfg.Profile.Name)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("provider %s: model is required", cfg.Profile.Name)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Adapter{
		Core:   providers.NewCore(cfg.Profile),
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger,
	}, nil
}

// IsAvailable reports whether the adapter has not tripped its failure
// threshold. No probe request is issued; failures feed the verdict.
func (a *Adapter) IsAvailable(_ context.Context) bool {
	return a.Available()
}

// GenerateResponse calls the vendor endpoint, retrying up to the profile's
// RetryAttempts. Callers observe a single final outcome.
func (a *Adapter) GenerateResponse(ctx context.Context, req *types.TripRequest) (*types.GenerationResponse, error) {
	a.Recorder().Begin()
	start := time.Now()

	var lastErr error
	attempts := a.Profile().RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		resp, err := a.client.CreateChatCompletion(ctx, a.buildRequest(req))
		if err != nil {
			lastErr = err
			a.logger.WithError(err).WithFields(logrus.Fields{
				"provider": a.Name(),
				"attempt":  attempt,
			}).Warn("Generation attempt failed")
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("empty choices in response")
			continue
		}

		usage := types.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
		a.NoteSuccess()
		a.Recorder().RecordSuccess(time.Since(start), usage, a.cost(usage))

		return &types.GenerationResponse{
			ID:        resp.ID,
			Provider:  a.Name(),
			Model:     resp.Model,
			Content:   resp.Choices[0].Message.Content,
			Usage:     usage,
			CreatedAt: time.Now(),
		}, nil
	}

	a.NoteFailure()
	a.Recorder().RecordFailure(time.Since(start))
	return nil, a.wrapError(lastErr)
}

// GenerateStream streams chunks from the vendor endpoint. The final chunk
// carries IsComplete and summary metadata, then the channel closes.
func (a *Adapter) GenerateStream(ctx context.Context, req *types.TripRequest) (<-chan *types.StreamChunk, error) {
	a.Recorder().Begin()
	start := time.Now()

	streamReq := a.buildRequest(req)
	streamReq.Stream = true

	stream, err := a.client.CreateChatCompletionStream(ctx, streamReq)
	if err != nil {
		a.NoteFailure()
		a.Recorder().RecordFailure(time.Since(start))
		return nil, a.wrapError(err)
	}

	out := make(chan *types.StreamChunk)
	go func() {
		defer close(out)
		defer stream.Close()

		var tokens int
		finishReason := "stop"
		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				a.NoteFailure()
				a.Recorder().RecordFailure(time.Since(start))
				a.logger.WithError(err).WithField("provider", a.Name()).Warn("Stream interrupted")
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if chunk.Choices[0].FinishReason != "" {
				finishReason = string(chunk.Choices[0].FinishReason)
			}
			tokens++
			select {
			case out <- &types.StreamChunk{Content: delta}:
			case <-ctx.Done():
				a.NoteFailure()
				a.Recorder().RecordFailure(time.Since(start))
				return
			}
		}

		usage := types.TokenUsage{CompletionTokens: tokens, TotalTokens: tokens}
		final := &types.StreamChunk{
			IsComplete: true,
			Metadata: &types.ChunkMetadata{
				Provider:     a.Name(),
				Model:        a.model,
				Usage:        &usage,
				FinishReason: finishReason,
			},
		}
		// The stream only counts as delivered once the consumer takes the
		// final chunk; a consumer that cancelled and stopped reading must not
		// strand this goroutine on the send.
		select {
		case out <- final:
			a.NoteSuccess()
			a.Recorder().RecordSuccess(time.Since(start), usage, a.cost(usage))
		case <-ctx.Done():
			a.NoteFailure()
			a.Recorder().RecordFailure(time.Since(start))
		}
	}()
	return out, nil
}

func (a *Adapter) buildRequest(req *types.TripRequest) openai.ChatCompletionRequest {
	out := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.Query},
		},
		Stop: req.Options.StopSequences,
	}
	if req.Options.MaxTokens > 0 {
		out.MaxTokens = req.Options.MaxTokens
	}
	if req.Options.Temperature > 0 {
		out.Temperature = req.Options.Temperature
	}
	return out
}

func (a *Adapter) cost(usage types.TokenUsage) float64 {
	rates := a.Profile().Cost
	return float64(usage.PromptTokens)*rates.InputPer1K/1000 +
		float64(usage.CompletionTokens)*rates.OutputPer1K/1000
}

func (a *Adapter) wrapError(err error) *types.ProviderError {
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
		Provider:  a.Name(),
		Code:      code,
		Message:   msg,
		Retryable: retryable,
		Err:       err,
	}
}

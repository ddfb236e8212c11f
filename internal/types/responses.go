package types

import (
	"fmt"
	"time"
)

// TokenUsage reports token consumption for one generation.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerationResponse is a completed itinerary generation from one provider.
type GenerationResponse struct {
	ID        string     `json:"id"`
	Provider  ProviderID `json:"provider"`
	Model     string     `json:"model"`
	Content   string     `json:"content"`
	Usage     TokenUsage `json:"usage"`
	CreatedAt time.Time  `json:"created_at"`
}

// StreamChunk is one element of a streaming generation. The final chunk has
// IsComplete set and carries summary metadata; the stream ends after it.
type StreamChunk struct {
	Content    string         `json:"content"`
	IsComplete bool           `json:"is_complete"`
	Metadata   *ChunkMetadata `json:"metadata,omitempty"`
}

// ChunkMetadata summarizes a finished stream.
type ChunkMetadata struct {
	Provider     ProviderID  `json:"provider"`
	Model        string      `json:"model"`
	Usage        *TokenUsage `json:"usage,omitempty"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// ProviderErrorCode distinguishes the failure modes a provider call can hit.
type ProviderErrorCode string

const (
	ErrCodeTimeout     ProviderErrorCode = "timeout"
	ErrCodeUnavailable ProviderErrorCode = "unavailable"
	ErrCodeCapacity    ProviderErrorCode = "capacity"
	ErrCodeVendor      ProviderErrorCode = "vendor_error"
	ErrCodeCancelled   ProviderErrorCode = "cancelled"
)

// ProviderError wraps a failed provider call with enough context for the
// fallback executor to record and advance past it.
type ProviderError struct {
	Provider  ProviderID        `json:"provider"`
	Code      ProviderErrorCode `json:"code"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable"`
	Err       error             `json:"-"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Message, e.Code)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

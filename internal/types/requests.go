package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxQueryBytes bounds inbound query text. Requests above this are rejected
// before any analysis runs.
const MaxQueryBytes = 32 << 10

// DefaultTemperature is the sampling temperature assumed when the caller
// does not set one.
const DefaultTemperature = 0.7

// TripRequest is a single natural-language itinerary request. It is
// immutable once constructed; routing and execution never modify it.
type TripRequest struct {
	Query    string          `json:"query"`
	Options  RequestOptions  `json:"options"`
	Metadata RequestMetadata `json:"metadata"`
}

// RequestOptions carries generation controls forwarded to the provider.
type RequestOptions struct {
	MaxTokens     int      `json:"max_tokens,omitempty"`
	Temperature   float32  `json:"temperature,omitempty"`
	Stream        bool     `json:"stream,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty"`
}

// RequestMetadata identifies and contextualizes a request.
type RequestMetadata struct {
	RequestID      string    `json:"request_id"`
	Timestamp      time.Time `json:"timestamp"`
	SessionID      string    `json:"session_id,omitempty"`
	UserPreference string    `json:"user_preference,omitempty"`
}

var (
	// ErrEmptyQuery is returned for requests with no query text.
	ErrEmptyQuery = errors.New("query text is required")

	// ErrQueryTooLarge is returned for requests exceeding MaxQueryBytes.
	ErrQueryTooLarge = fmt.Errorf("query exceeds %d bytes", MaxQueryBytes)
)

// Validate rejects malformed requests before complexity analysis begins.
// Validation failures are caller-input errors and are never retried.
func (r *TripRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return ErrEmptyQuery
	}
	if len(r.Query) > MaxQueryBytes {
		return ErrQueryTooLarge
	}
	if r.Options.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative, got %d", r.Options.MaxTokens)
	}
	if r.Options.Temperature < 0 || r.Options.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0,2], got %g", r.Options.Temperature)
	}
	return nil
}

// HasCustomTemperature reports whether the caller overrode the default
// sampling temperature.
func (r *TripRequest) HasCustomTemperature() bool {
	return r.Options.Temperature != 0 && r.Options.Temperature != DefaultTemperature
}

package types

import (
	"time"
)

// ProviderID is the closed enumeration of vendor identifiers. Providers are
// always addressed through this type, never through ad hoc strings.
type ProviderID string

const (
	ProviderGroq      ProviderID = "groq"
	ProviderGemini    ProviderID = "gemini"
	ProviderCerebras  ProviderID = "cerebras"
	ProviderAnthropic ProviderID = "anthropic"
)

// KnownProviders lists every valid provider identifier.
var KnownProviders = []ProviderID{ProviderGroq, ProviderGemini, ProviderCerebras, ProviderAnthropic}

// Valid reports whether the identifier names a known vendor.
func (id ProviderID) Valid() bool {
	for _, known := range KnownProviders {
		if id == known {
			return true
		}
	}
	return false
}

// ProviderStatus summarizes a provider's current operational state.
type ProviderStatus string

const (
	StatusActive      ProviderStatus = "active"
	StatusDegraded    ProviderStatus = "degraded"
	StatusUnavailable ProviderStatus = "unavailable"
)

// ComplexityLevel classifies how demanding a request is.
type ComplexityLevel string

const (
	ComplexityLow    ComplexityLevel = "low"
	ComplexityMedium ComplexityLevel = "medium"
	ComplexityHigh   ComplexityLevel = "high"
)

// CostRates is the per-provider token pricing table entry.
type CostRates struct {
	InputPer1K  float64 `json:"input_per_1k" yaml:"input_per_1k"`
	OutputPer1K float64 `json:"output_per_1k" yaml:"output_per_1k"`
}

// ProviderProfile holds a provider's registration-time preferences. Set once
// when the provider is registered and never mutated afterwards.
type ProviderProfile struct {
	Name                  ProviderID      `json:"name" yaml:"name"`
	PreferredComplexity   ComplexityLevel `json:"preferred_complexity" yaml:"preferred_complexity"`
	MaxConcurrentRequests int             `json:"max_concurrent_requests" yaml:"max_concurrent_requests"`
	Timeout               time.Duration   `json:"timeout" yaml:"timeout"`
	RetryAttempts         int             `json:"retry_attempts" yaml:"retry_attempts"`
	Enabled               bool            `json:"enabled" yaml:"enabled"`
	Cost                  CostRates       `json:"cost" yaml:"cost"`
}

// ProviderMetrics is the rolling counters a provider accumulates across
// requests. Snapshots are value copies; the owning recorder serializes all
// writes.
type ProviderMetrics struct {
	RequestCount         int64         `json:"request_count"`
	SuccessfulRequests   int64         `json:"successful_requests"`
	FailedRequests       int64         `json:"failed_requests"`
	AverageLatency       time.Duration `json:"average_latency"`
	TotalTokensProcessed int64         `json:"total_tokens_processed"`
	TotalCostUSD         float64       `json:"total_cost_usd"`
	ErrorRate            float64       `json:"error_rate"`
	Availability         float64       `json:"availability"`
	CapacityUtilization  float64       `json:"capacity_utilization"`
	LastRequestAt        time.Time     `json:"last_request_at"`
}

// SuccessRate returns the historical success ratio, or -1 when there is no
// history to judge by.
func (m ProviderMetrics) SuccessRate() float64 {
	if m.RequestCount == 0 {
		return -1
	}
	return float64(m.SuccessfulRequests) / float64(m.RequestCount)
}

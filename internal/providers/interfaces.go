package providers

import (
	"context"

	"github.com/tripgrid/trip-router/internal/types"
)

// Provider is the capability contract every vendor adapter implements.
// The routing core depends only on this interface and stays fully testable
// against fakes.
type Provider interface {
	// Name returns the provider's identifier.
	Name() types.ProviderID

	// Profile returns the registration-time preferences. The returned value
	// never changes for the lifetime of the provider.
	Profile() types.ProviderProfile

	// GenerateResponse produces a complete itinerary. Internal retries up to
	// the profile's RetryAttempts are the adapter's concern; callers see a
	// single outcome.
	GenerateResponse(ctx context.Context, req *types.TripRequest) (*types.GenerationResponse, error)

	// GenerateStream produces a lazy, finite chunk sequence. The final chunk
	// has IsComplete set, then the channel closes.
	GenerateStream(ctx context.Context, req *types.TripRequest) (<-chan *types.StreamChunk, error)

	// IsAvailable reports whether the provider can currently serve requests.
	IsAvailable(ctx context.Context) bool

	// HasCapacity reports whether the provider is below its concurrency limit.
	HasCapacity() bool

	// Metrics returns a snapshot of the provider's rolling counters.
	Metrics() types.ProviderMetrics

	// Status summarizes availability and capacity in one value.
	Status() types.ProviderStatus

	// ResetMetrics zeroes the rolling counters.
	ResetMetrics()
}

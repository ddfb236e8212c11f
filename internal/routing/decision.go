package routing

import (
	"github.com/tripgrid/trip-router/internal/complexity"
	"github.com/tripgrid/trip-router/internal/types"
)

// Decision records one routing choice. Created once per request, immutable,
// handed to the fallback executor.
type Decision struct {
	// The provider selected to serve the request first.
	SelectedProvider types.ProviderID `json:"selected_provider"`

	// Human-readable reasoning: primary name, complexity level, and a
	// qualitative confidence bucket.
	Reasoning string `json:"reasoning"`

	// All scored candidates, sorted by score descending.
	Candidates []Candidate `json:"candidates"`

	// The combined complexity score that drove the decision.
	ComplexityScore float64 `json:"complexity_score"`

	// Backup providers in attempt order. Never contains SelectedProvider.
	FallbackChain []types.ProviderID `json:"fallback_chain"`

	// The full analysis, carried for the observability record.
	Analysis *complexity.Analysis `json:"analysis"`
}

// FallbacksAvailable returns the chain length.
func (d *Decision) FallbacksAvailable() int {
	return len(d.FallbackChain)
}

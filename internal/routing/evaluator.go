package routing

import (
	"context"
	"sort"
	"time"

	"github.com/tripgrid/trip-router/internal/complexity"
	"github.com/tripgrid/trip-router/internal/providers"
	"github.com/tripgrid/trip-router/internal/types"
)

// Candidate is one provider scored against a single request. Ephemeral:
// recomputed on every routing call from live metrics, never persisted.
type Candidate struct {
	Name             types.ProviderID `json:"name"`
	Score            float64          `json:"score"`
	Available        bool             `json:"available"`
	HasCapacity      bool             `json:"has_capacity"`
	EstimatedLatency time.Duration    `json:"estimated_latency"`
	EstimatedCostUSD float64          `json:"estimated_cost_usd"`
}

// EvaluatorWeights tunes candidate scoring. The partial-match bonus is
// deliberately a knob rather than a constant: the asymmetric 0.2 bonus when
// exactly one side of the preference comparison is medium is observed
// behaviour, not a considered policy.
type EvaluatorWeights struct {
	ExactMatch      float64 `yaml:"exact_match"`
	PartialMatch    float64 `yaml:"partial_match"`
	CapacityPenalty float64 `yaml:"capacity_penalty"`
}

// DefaultEvaluatorWeights returns the standard scoring knobs.
func DefaultEvaluatorWeights() EvaluatorWeights {
	return EvaluatorWeights{
		ExactMatch:      0.4,
		PartialMatch:    0.2,
		CapacityPenalty: 0.3,
	}
}

// Evaluator ranks providers against one request's complexity profile.
// Scoring is deterministic and side-effect-free for a fixed health and
// metrics snapshot.
type Evaluator struct {
	health  *providers.HealthCache
	weights EvaluatorWeights
}

// NewEvaluator creates an evaluator using the given health cache. The cache
// is injected so tests can supply deterministic fixtures.
func NewEvaluator(health *providers.HealthCache, weights EvaluatorWeights) *Evaluator {
	return &Evaluator{health: health, weights: weights}
}

// Evaluate scores every provider and returns candidates sorted by score
// descending. Ties keep the input enumeration order (stable sort).
func (e *Evaluator) Evaluate(ctx context.Context, provs []providers.Provider, analysis *complexity.Analysis, req *types.TripRequest) []Candidate {
	candidates := make([]Candidate, 0, len(provs))
	for _, p := range provs {
		candidates = append(candidates, e.score(ctx, p, analysis))
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

func (e *Evaluator) score(ctx context.Context, p providers.Provider, analysis *complexity.Analysis) Candidate {
	profile := p.Profile()
	health := e.health.Lookup(ctx, p)
	metrics := p.Metrics()

	c := Candidate{
		Name:             profile.Name,
		Available:        health.Available,
		HasCapacity:      health.HasCapacity,
		EstimatedLatency: estimateLatency(metrics, profile),
		EstimatedCostUSD: estimateCost(profile, analysis.TokenEstimate),
	}

	score := e.preferenceScore(profile.PreferredComplexity, analysis.Level)

	switch {
	case !health.Available:
		// Excluded from consideration but still reported.
		score = 0
	case !health.HasCapacity:
		// Heavy but not total penalty: usable as a last resort.
		score *= e.weights.CapacityPenalty
	}

	if health.Available {
		if rate := metrics.SuccessRate(); rate >= 0 {
			score *= rate
		}
		if analysis.Level == types.ComplexityLow && profile.Timeout > 0 {
			// Favor fast providers for simple queries.
			score += 1000 / float64(profile.Timeout.Milliseconds())
		}
	}

	c.Score = score
	return c
}

// preferenceScore awards the exact-match bonus, or the partial bonus when
// exactly one side of the comparison is medium.
func (e *Evaluator) preferenceScore(preferred, actual types.ComplexityLevel) float64 {
	if preferred == actual {
		return e.weights.ExactMatch
	}
	if preferred == types.ComplexityMedium || actual == types.ComplexityMedium {
		return e.weights.PartialMatch
	}
	return 0
}

// estimateLatency uses historical average latency when there is history,
// otherwise half the configured timeout.
func estimateLatency(metrics types.ProviderMetrics, profile types.ProviderProfile) time.Duration {
	if metrics.RequestCount > 0 && metrics.AverageLatency > 0 {
		return metrics.AverageLatency
	}
	return profile.Timeout / 2
}

// estimateCost multiplies the request's token estimate by the provider's
// input rate.
func estimateCost(profile types.ProviderProfile, tokenEstimate int) float64 {
	return float64(tokenEstimate) * profile.Cost.InputPer1K / 1000
}

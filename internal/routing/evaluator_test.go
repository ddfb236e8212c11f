package routing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripgrid/trip-router/internal/complexity"
	"github.com/tripgrid/trip-router/internal/providers"
	"github.com/tripgrid/trip-router/internal/types"
)

func evaluateOne(t *testing.T, p *fakeProvider, req *types.TripRequest) Candidate {
	t.Helper()
	health := providers.NewHealthCache(0)
	evaluator := NewEvaluator(health, DefaultEvaluatorWeights())
	analysis := complexity.NewDefaultAnalyzer().Analyze(req)
	candidates := evaluator.Evaluate(context.Background(), []providers.Provider{p}, analysis, req)
	require.Len(t, candidates, 1)
	return candidates[0]
}

func TestEvaluator_ExactMatchScore(t *testing.T) {
	p := newFakeProvider(types.ProviderAnthropic, types.ComplexityHigh, 30*time.Second)
	c := evaluateOne(t, p, highComplexityRequest())

	assert.InDelta(t, 0.4, c.Score, 1e-9)
	assert.True(t, c.Available)
	assert.True(t, c.HasCapacity)
}

func TestEvaluator_PartialMatchScore(t *testing.T) {
	p := newFakeProvider(types.ProviderGemini, types.ComplexityMedium, 30*time.Second)
	c := evaluateOne(t, p, highComplexityRequest())
	assert.InDelta(t, 0.2, c.Score, 1e-9)
}

func TestEvaluator_UnavailableScoresZeroButIsReported(t *testing.T) {
	p := newFakeProvider(types.ProviderAnthropic, types.ComplexityHigh, 30*time.Second)
	p.available = false
	c := evaluateOne(t, p, highComplexityRequest())

	assert.Zero(t, c.Score)
	assert.False(t, c.Available)
}

func TestEvaluator_CapacityPenalty(t *testing.T) {
	p := newFakeProvider(types.ProviderAnthropic, types.ComplexityHigh, 30*time.Second)
	p.capacity = false
	c := evaluateOne(t, p, highComplexityRequest())

	assert.InDelta(t, 0.4*0.3, c.Score, 1e-9)
}

func TestEvaluator_SuccessRateMultiplier(t *testing.T) {
	p := newFakeProvider(types.ProviderAnthropic, types.ComplexityHigh, 30*time.Second)
	p.metrics = types.ProviderMetrics{
		RequestCount:       10,
		SuccessfulRequests: 5,
		FailedRequests:     5,
	}
	c := evaluateOne(t, p, highComplexityRequest())

	assert.InDelta(t, 0.4*0.5, c.Score, 1e-9)
}

func TestEvaluator_NoHistoryIsNotPenalized(t *testing.T) {
	p := newFakeProvider(types.ProviderAnthropic, types.ComplexityHigh, 30*time.Second)
	c := evaluateOne(t, p, highComplexityRequest())
	assert.InDelta(t, 0.4, c.Score, 1e-9)
}

func TestEvaluator_SpeedBonusForLowComplexity(t *testing.T) {
	fast := newFakeProvider(types.ProviderGroq, types.ComplexityLow, 2*time.Second)
	slow := newFakeProvider(types.ProviderCerebras, types.ComplexityLow, 20*time.Second)

	fastCandidate := evaluateOne(t, fast, lowComplexityRequest())
	slowCandidate := evaluateOne(t, slow, lowComplexityRequest())

	assert.InDelta(t, 0.4+1000.0/2000, fastCandidate.Score, 1e-9)
	assert.InDelta(t, 0.4+1000.0/20000, slowCandidate.Score, 1e-9)
	assert.Greater(t, fastCandidate.Score, slowCandidate.Score)
}

func TestEvaluator_LatencyEstimateFallsBackToHalfTimeout(t *testing.T) {
	p := newFakeProvider(types.ProviderGroq, types.ComplexityLow, 10*time.Second)
	c := evaluateOne(t, p, lowComplexityRequest())
	assert.Equal(t, 5*time.Second, c.EstimatedLatency)

	p.metrics = types.ProviderMetrics{RequestCount: 3, AverageLatency: 750 * time.Millisecond}
	c = evaluateOne(t, p, lowComplexityRequest())
	assert.Equal(t, 750*time.Millisecond, c.EstimatedLatency)
}

func TestEvaluator_CostEstimateUsesTokenEstimate(t *testing.T) {
	p := newFakeProvider(types.ProviderGroq, types.ComplexityLow, 10*time.Second)
	req := lowComplexityRequest() // 25 chars -> 7 tokens
	c := evaluateOne(t, p, req)

	analysis := complexity.NewDefaultAnalyzer().Analyze(req)
	want := float64(analysis.TokenEstimate) * 0.001 / 1000
	assert.InDelta(t, want, c.EstimatedCostUSD, 1e-12)
}

func TestEvaluator_Deterministic(t *testing.T) {
	provs := []providers.Provider{
		newFakeProvider(types.ProviderGroq, types.ComplexityLow, 5*time.Second),
		newFakeProvider(types.ProviderGemini, types.ComplexityMedium, 15*time.Second),
		newFakeProvider(types.ProviderAnthropic, types.ComplexityHigh, 30*time.Second),
	}
	health := providers.NewHealthCache(0)
	evaluator := NewEvaluator(health, DefaultEvaluatorWeights())
	req := highComplexityRequest()
	analysis := complexity.NewDefaultAnalyzer().Analyze(req)

	first := evaluator.Evaluate(context.Background(), provs, analysis, req)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, evaluator.Evaluate(context.Background(), provs, analysis, req))
	}
}

func TestEvaluator_StableOrderOnTies(t *testing.T) {
	// Identical profiles score identically; enumeration order must survive.
	a := newFakeProvider(types.ProviderGroq, types.ComplexityHigh, 10*time.Second)
	b := newFakeProvider(types.ProviderGemini, types.ComplexityHigh, 10*time.Second)
	health := providers.NewHealthCache(0)
	evaluator := NewEvaluator(health, DefaultEvaluatorWeights())
	req := highComplexityRequest()
	analysis := complexity.NewDefaultAnalyzer().Analyze(req)

	candidates := evaluator.Evaluate(context.Background(), []providers.Provider{a, b}, analysis, req)
	require.Len(t, candidates, 2)
	assert.Equal(t, types.ProviderGroq, candidates[0].Name)
	assert.Equal(t, types.ProviderGemini, candidates[1].Name)
}

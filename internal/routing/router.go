// Package routing is the request-routing and fallback-resolution engine:
// score a request's complexity, rank providers against it, pick a primary
// and fallback chain, then execute the chain with bounded provider timeouts.
package routing

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/tripgrid/trip-router/internal/complexity"
	"github.com/tripgrid/trip-router/internal/providers"
	"github.com/tripgrid/trip-router/internal/types"
)

var (
	// ErrNoProvidersAvailable means the registry has no enabled providers,
	// so there is no chain to even attempt.
	ErrNoProvidersAvailable = errors.New("no providers available")

	// ErrNoProviderCapable means providers exist but none is available,
	// even after considering any-available fallback.
	ErrNoProviderCapable = errors.New("no provider capable of serving request")
)

// Router makes routing decisions. It owns no provider state; the registry
// and health cache are injected.
type Router struct {
	registry  *providers.Registry
	analyzer  *complexity.Analyzer
	evaluator *Evaluator
	logger    *logrus.Logger
}

// NewRouter wires a router from its collaborators.
func NewRouter(registry *providers.Registry, analyzer *complexity.Analyzer, evaluator *Evaluator, logger *logrus.Logger) *Router {
	return &Router{
		registry:  registry,
		analyzer:  analyzer,
		evaluator: evaluator,
		logger:    logger,
	}
}

// Route validates the request, analyzes its complexity, ranks candidates,
// and selects a primary plus fallback chain.
func (r *Router) Route(ctx context.Context, req *types.TripRequest) (*Decision, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	healthy := r.registry.Healthy()
	if len(healthy) == 0 {
		return nil, ErrNoProvidersAvailable
	}

	analysis := r.analyzer.Analyze(req)
	candidates := r.evaluator.Evaluate(ctx, healthy, analysis, req)

	primary, err := selectPrimary(candidates)
	if err != nil {
		return nil, err
	}

	decision := &Decision{
		SelectedProvider: primary.Name,
		Reasoning:        buildReasoning(primary, analysis.Level),
		Candidates:       candidates,
		ComplexityScore:  analysis.Score,
		FallbackChain:    r.buildFallbackChain(healthy, primary.Name, analysis.Level),
		Analysis:         analysis,
	}

	r.logger.WithFields(logrus.Fields{
		"request_id":     req.Metadata.RequestID,
		"provider":       decision.SelectedProvider,
		"complexity":     analysis.Level,
		"score":          fmt.Sprintf("%.2f", analysis.Score),
		"fallback_chain": decision.FallbackChain,
	}).Info("Request routed")

	return decision, nil
}

// selectPrimary picks the first candidate that is available with capacity,
// falling back to the first merely-available one.
func selectPrimary(candidates []Candidate) (Candidate, error) {
	for _, c := range candidates {
		if c.Available && c.HasCapacity {
			return c, nil
		}
	}
	for _, c := range candidates {
		if c.Available {
			return c, nil
		}
	}
	return Candidate{}, ErrNoProviderCapable
}

// buildFallbackChain orders every healthy provider except the primary:
// exact complexity-preference matches first, then ascending configured
// timeout (fastest first).
func (r *Router) buildFallbackChain(healthy []providers.Provider, primary types.ProviderID, level types.ComplexityLevel) []types.ProviderID {
	type entry struct {
		id         types.ProviderID
		exactMatch bool
		timeout    int64
	}

	var entries []entry
	for _, p := range healthy {
		profile := p.Profile()
		if profile.Name == primary {
			continue
		}
		entries = append(entries, entry{
			id:         profile.Name,
			exactMatch: profile.PreferredComplexity == level,
			timeout:    profile.Timeout.Milliseconds(),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].exactMatch != entries[j].exactMatch {
			return entries[i].exactMatch
		}
		return entries[i].timeout < entries[j].timeout
	})

	chain := make([]types.ProviderID, len(entries))
	for i, e := range entries {
		chain[i] = e.id
	}
	return chain
}

// buildReasoning combines the primary's name, the complexity level, and a
// qualitative confidence bucket derived from the primary's score.
func buildReasoning(primary Candidate, level types.ComplexityLevel) string {
	confidence := "low"
	switch {
	case primary.Score > 0.8:
		confidence = "high"
	case primary.Score > 0.5:
		confidence = "moderate"
	}
	return fmt.Sprintf("selected %s for %s-complexity request (%s confidence, score %.2f)",
		primary.Name, level, confidence, primary.Score)
}

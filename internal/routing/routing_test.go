package routing

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tripgrid/trip-router/internal/complexity"
	"github.com/tripgrid/trip-router/internal/providers"
	"github.com/tripgrid/trip-router/internal/types"
)

// fakeProvider is an in-memory capability handle for routing tests. The
// routing core never needs network access to be exercised.
type fakeProvider struct {
	mu        sync.Mutex
	profile   types.ProviderProfile
	available bool
	capacity  bool
	metrics   types.ProviderMetrics
	generate  func(ctx context.Context, req *types.TripRequest) (*types.GenerationResponse, error)
	calls     int
}

func newFakeProvider(name types.ProviderID, preferred types.ComplexityLevel, timeout time.Duration) *fakeProvider {
	return &fakeProvider{
		profile: types.ProviderProfile{
			Name:                  name,
			PreferredComplexity:   preferred,
			MaxConcurrentRequests: 10,
			Timeout:               timeout,
			RetryAttempts:         1,
			Enabled:               true,
			Cost:                  types.CostRates{InputPer1K: 0.001, OutputPer1K: 0.002},
		},
		available: true,
		capacity:  true,
	}
}

func (f *fakeProvider) Name() types.ProviderID          { return f.profile.Name }
func (f *fakeProvider) Profile() types.ProviderProfile  { return f.profile }
func (f *fakeProvider) IsAvailable(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available
}
func (f *fakeProvider) HasCapacity() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.capacity
}
func (f *fakeProvider) Metrics() types.ProviderMetrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metrics
}
func (f *fakeProvider) Status() types.ProviderStatus { return types.StatusActive }
func (f *fakeProvider) ResetMetrics() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metrics = types.ProviderMetrics{}
}

func (f *fakeProvider) GenerateResponse(ctx context.Context, req *types.TripRequest) (*types.GenerationResponse, error) {
	f.mu.Lock()
	f.calls++
	gen := f.generate
	f.mu.Unlock()

	if gen != nil {
		return gen(ctx, req)
	}
	return &types.GenerationResponse{
		ID:       "fake-1",
		Provider: f.profile.Name,
		Content:  "Day 1: arrive and explore.",
		Usage:    types.TokenUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}, nil
}

func (f *fakeProvider) GenerateStream(ctx context.Context, req *types.TripRequest) (<-chan *types.StreamChunk, error) {
	resp, err := f.GenerateResponse(ctx, req)
	if err != nil {
		return nil, err
	}
	out := make(chan *types.StreamChunk, 2)
	out <- &types.StreamChunk{Content: resp.Content}
	out <- &types.StreamChunk{IsComplete: true, Metadata: &types.ChunkMetadata{Provider: f.profile.Name}}
	close(out)
	return out, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func failWith(code types.ProviderErrorCode, id types.ProviderID) func(context.Context, *types.TripRequest) (*types.GenerationResponse, error) {
	return func(context.Context, *types.TripRequest) (*types.GenerationResponse, error) {
		return nil, &types.ProviderError{Provider: id, Code: code, Message: "induced failure", Retryable: true}
	}
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type harness struct {
	registry *providers.Registry
	health   *providers.HealthCache
	router   *Router
	executor *Executor
	engine   *Engine
}

func newHarness(provs ...*fakeProvider) *harness {
	logger := testLogger()
	registry := providers.NewRegistry(logger)
	for _, p := range provs {
		if err := registry.Register(p); err != nil {
			panic(err)
		}
	}
	health := providers.NewHealthCache(0) // zero TTL: every lookup probes
	evaluator := NewEvaluator(health, DefaultEvaluatorWeights())
	router := NewRouter(registry, complexity.NewDefaultAnalyzer(), evaluator, logger)
	executor := NewExecutor(registry, health, logger)
	return &harness{
		registry: registry,
		health:   health,
		router:   router,
		executor: executor,
		engine:   NewEngine(router, executor, NopRecorder{}),
	}
}

// highComplexityRequest returns a request that classifies as high.
func highComplexityRequest() *types.TripRequest {
	return &types.TripRequest{
		Query: "Plan a detailed budget itinerary across multiple cities with accessible accommodations. " +
			"First compare flight and hotel costs, then optimize the route. If a visa is required, " +
			"plan the booking schedule around it; otherwise plan transit transfers. " +
			"1. Arrival schedule\n2. Accommodation booking\n3. Transportation budget\n" +
			"Present a comprehensive structured list with a section per city.",
		Options:  types.RequestOptions{MaxTokens: 4000, Temperature: 1.1},
		Metadata: types.RequestMetadata{RequestID: "req-high", SessionID: "s-1"},
	}
}

func lowComplexityRequest() *types.TripRequest {
	return &types.TripRequest{
		Query:    "Best restaurants in Tokyo",
		Metadata: types.RequestMetadata{RequestID: "req-low"},
	}
}

var errVendor = errors.New("vendor 500")

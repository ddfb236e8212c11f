package routing

import (
	"context"
	"time"

	"github.com/tripgrid/trip-router/internal/types"
)

// Engine composes the router, executor, and recorder into the single entry
// point callers use. Constructed once at startup with explicit
// collaborators; it holds no global state.
type Engine struct {
	router   *Router
	executor *Executor
	recorder Recorder
	now      func() time.Time
}

// NewEngine wires an engine. A nil recorder disables tracing.
func NewEngine(router *Router, executor *Executor, recorder Recorder) *Engine {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Engine{
		router:   router,
		executor: executor,
		recorder: recorder,
		now:      time.Now,
	}
}

// Route exposes the decision stage alone, for dry-run callers.
func (e *Engine) Route(ctx context.Context, req *types.TripRequest) (*Decision, error) {
	return e.router.Route(ctx, req)
}

// Generate routes and executes a request end to end, then hands the full
// trace to the recorder. Only structural failures (no providers, malformed
// input) are returned as errors; chain exhaustion is a degraded Result.
func (e *Engine) Generate(ctx context.Context, req *types.TripRequest) (*Result, *Decision, error) {
	start := e.now()

	decision, err := e.router.Route(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	result := e.executor.ExecuteWithFallback(ctx, req, decision)

	trace := &TraceRecord{
		RequestID:     req.Metadata.RequestID,
		Analysis:      decision.Analysis,
		Decision:      decision,
		Result:        result,
		StartTime:     start,
		EndTime:       e.now(),
		FallbacksUsed: fallbacksUsed(result),
	}
	if result.Response != nil {
		trace.Provider = result.Response.Provider
	}
	e.recorder.Record(ctx, trace)

	return result, decision, nil
}

// Record hands an externally assembled trace to the recorder. The streaming
// transport walks the decision chain itself and reports its outcome here so
// every request leaves exactly one trace.
func (e *Engine) Record(ctx context.Context, trace *TraceRecord) {
	if trace.FallbacksUsed == 0 && trace.Result != nil {
		trace.FallbacksUsed = fallbacksUsed(trace.Result)
	}
	e.recorder.Record(ctx, trace)
}

// InvalidateHealth drops a provider's cached availability verdict so the
// next routing pass probes it fresh. Failure paths outside the executor use
// this to stay consistent with it.
func (e *Engine) InvalidateHealth(id types.ProviderID) {
	e.executor.health.Invalidate(id)
}

// fallbacksUsed counts attempts beyond the primary.
func fallbacksUsed(result *Result) int {
	if len(result.Attempts) <= 1 {
		return 0
	}
	return len(result.Attempts) - 1
}

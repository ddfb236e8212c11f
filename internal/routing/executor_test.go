package routing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripgrid/trip-router/internal/types"
)

func TestExecutor_PrimarySucceedsImmediately(t *testing.T) {
	primary := newFakeProvider(types.ProviderGroq, types.ComplexityLow, 5*time.Second)
	backup := newFakeProvider(types.ProviderGemini, types.ComplexityMedium, 15*time.Second)
	h := newHarness(primary, backup)

	req := lowComplexityRequest()
	decision, err := h.router.Route(context.Background(), req)
	require.NoError(t, err)

	result := h.executor.ExecuteWithFallback(context.Background(), req, decision)

	require.False(t, result.Degraded)
	require.NotNil(t, result.Response)
	assert.Len(t, result.Attempts, 1)
	assert.True(t, result.Attempts[0].Success)
	assert.Zero(t, backup.callCount(), "no calls after the first success")
}

func TestExecutor_FallbackChainAdvancesOnFailure(t *testing.T) {
	// Primary times out, first fallback hits a vendor error, second
	// fallback succeeds: exactly three attempts, third marked success.
	primary := newFakeProvider(types.ProviderAnthropic, types.ComplexityHigh, 5*time.Second)
	primary.generate = failWith(types.ErrCodeTimeout, types.ProviderAnthropic)
	first := newFakeProvider(types.ProviderGroq, types.ComplexityLow, 2*time.Second)
	first.generate = failWith(types.ErrCodeVendor, types.ProviderGroq)
	second := newFakeProvider(types.ProviderGemini, types.ComplexityMedium, 10*time.Second)
	h := newHarness(primary, first, second)

	req := highComplexityRequest()
	decision, err := h.router.Route(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, types.ProviderAnthropic, decision.SelectedProvider)

	result := h.executor.ExecuteWithFallback(context.Background(), req, decision)

	require.False(t, result.Degraded)
	require.NotNil(t, result.Response)
	require.Len(t, result.Attempts, 3)
	assert.False(t, result.Attempts[0].Success)
	assert.Equal(t, types.ErrCodeTimeout, result.Attempts[0].Error.Code)
	assert.False(t, result.Attempts[1].Success)
	assert.Equal(t, types.ErrCodeVendor, result.Attempts[1].Error.Code)
	assert.True(t, result.Attempts[2].Success)
	assert.Equal(t, types.ProviderGemini, result.Response.Provider)
}

func TestExecutor_ExhaustionReturnsDegradedResult(t *testing.T) {
	provs := []*fakeProvider{
		newFakeProvider(types.ProviderGroq, types.ComplexityLow, 2*time.Second),
		newFakeProvider(types.ProviderGemini, types.ComplexityMedium, 5*time.Second),
		newFakeProvider(types.ProviderCerebras, types.ComplexityHigh, 10*time.Second),
	}
	for _, p := range provs {
		p.generate = failWith(types.ErrCodeVendor, p.profile.Name)
	}
	h := newHarness(provs[0], provs[1], provs[2])

	req := lowComplexityRequest()
	decision, err := h.router.Route(context.Background(), req)
	require.NoError(t, err)

	result := h.executor.ExecuteWithFallback(context.Background(), req, decision)

	assert.True(t, result.Degraded)
	assert.Nil(t, result.Response)
	// One attempt per chain entry: primary plus every fallback.
	assert.Len(t, result.Attempts, 1+len(decision.FallbackChain))
	require.NotNil(t, result.LastError)
	assert.Equal(t, types.ErrCodeVendor, result.LastError.Code)
}

func TestExecutor_EarlyStopAtKthProvider(t *testing.T) {
	failing := newFakeProvider(types.ProviderGroq, types.ComplexityLow, 2*time.Second)
	failing.generate = failWith(types.ErrCodeVendor, types.ProviderGroq)
	succeeding := newFakeProvider(types.ProviderGemini, types.ComplexityMedium, 5*time.Second)
	untouched := newFakeProvider(types.ProviderCerebras, types.ComplexityHigh, 10*time.Second)
	h := newHarness(failing, succeeding, untouched)

	req := lowComplexityRequest()
	decision, err := h.router.Route(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, types.ProviderGroq, decision.SelectedProvider)

	result := h.executor.ExecuteWithFallback(context.Background(), req, decision)

	require.False(t, result.Degraded)
	assert.Len(t, result.Attempts, 2)
	assert.Zero(t, untouched.callCount())
}

func TestExecutor_CancellationStopsChain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	primary := newFakeProvider(types.ProviderGroq, types.ComplexityLow, 2*time.Second)
	primary.generate = func(callCtx context.Context, _ *types.TripRequest) (*types.GenerationResponse, error) {
		cancel() // caller disconnects mid-attempt
		<-callCtx.Done()
		return nil, callCtx.Err()
	}
	backup := newFakeProvider(types.ProviderGemini, types.ComplexityMedium, 5*time.Second)
	h := newHarness(primary, backup)

	req := lowComplexityRequest()
	decision, err := h.router.Route(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, types.ProviderGroq, decision.SelectedProvider)

	result := h.executor.ExecuteWithFallback(ctx, req, decision)

	assert.True(t, result.Degraded)
	assert.True(t, result.Cancelled)
	assert.Len(t, result.Attempts, 1)
	assert.Zero(t, backup.callCount(), "chain must not advance after cancellation")
}

func TestExecutor_PerProviderTimeout(t *testing.T) {
	slow := newFakeProvider(types.ProviderGroq, types.ComplexityLow, 50*time.Millisecond)
	slow.generate = func(ctx context.Context, _ *types.TripRequest) (*types.GenerationResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	backup := newFakeProvider(types.ProviderGemini, types.ComplexityMedium, 5*time.Second)
	h := newHarness(slow, backup)

	req := lowComplexityRequest()
	decision, err := h.router.Route(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, types.ProviderGroq, decision.SelectedProvider)

	result := h.executor.ExecuteWithFallback(context.Background(), req, decision)

	require.False(t, result.Degraded)
	require.Len(t, result.Attempts, 2)
	assert.Equal(t, types.ErrCodeTimeout, result.Attempts[0].Error.Code)
	assert.Equal(t, types.ProviderGemini, result.Response.Provider)
}

func TestEngine_GenerateRecordsTrace(t *testing.T) {
	primary := newFakeProvider(types.ProviderGroq, types.ComplexityLow, 2*time.Second)
	primary.generate = failWith(types.ErrCodeVendor, types.ProviderGroq)
	backup := newFakeProvider(types.ProviderGemini, types.ComplexityMedium, 5*time.Second)

	var recorded *TraceRecord
	recorder := recorderFunc(func(_ context.Context, trace *TraceRecord) { recorded = trace })

	h := newHarness(primary, backup)
	engine := NewEngine(h.router, h.executor, recorder)

	req := lowComplexityRequest()
	result, decision, err := engine.Generate(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, decision)
	require.False(t, result.Degraded)

	require.NotNil(t, recorded)
	assert.Equal(t, "req-low", recorded.RequestID)
	assert.Equal(t, types.ProviderGemini, recorded.Provider)
	assert.Equal(t, 1, recorded.FallbacksUsed)
	assert.Equal(t, decision.Analysis, recorded.Analysis)
	assert.False(t, recorded.EndTime.Before(recorded.StartTime))
}

func TestEngine_StructuralErrorSkipsExecution(t *testing.T) {
	h := newHarness()
	engine := NewEngine(h.router, h.executor, NopRecorder{})

	_, _, err := engine.Generate(context.Background(), lowComplexityRequest())
	assert.ErrorIs(t, err, ErrNoProvidersAvailable)
}

// recorderFunc adapts a function to the Recorder interface.
type recorderFunc func(ctx context.Context, trace *TraceRecord)

func (f recorderFunc) Record(ctx context.Context, trace *TraceRecord) { f(ctx, trace) }

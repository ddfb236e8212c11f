package providers

import (
	"sync"
	"time"

	"github.com/tripgrid/trip-router/internal/types"
)

// MetricsRecorder owns one provider's rolling counters. All writes go through
// the mutex so overlapping requests cannot corrupt counts; reads return value
// snapshots.
type MetricsRecorder struct {
	mu sync.Mutex
	m  types.ProviderMetrics

	maxConcurrent int
	inflight      int
	now           func() time.Time
}

// NewMetricsRecorder creates a recorder for a provider with the given
// concurrency limit.
func NewMetricsRecorder(maxConcurrent int) *MetricsRecorder {
	return &MetricsRecorder{
		maxConcurrent: maxConcurrent,
		now:           time.Now,
	}
}

// Begin marks one request in flight and reports whether the provider is
// still under its concurrency limit afterwards.
func (r *MetricsRecorder) Begin() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inflight++
	r.updateUtilizationLocked()
}

// RecordSuccess finishes an in-flight request that succeeded.
func (r *MetricsRecorder) RecordSuccess(latency time.Duration, usage types.TokenUsage, costUSD float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.inflight--
	r.m.RequestCount++
	r.m.SuccessfulRequests++
	r.m.TotalTokensProcessed += int64(usage.TotalTokens)
	r.m.TotalCostUSD += costUSD
	r.m.LastRequestAt = r.now()
	r.updateRollingLocked(latency)
}

// RecordFailure finishes an in-flight request that failed or timed out.
func (r *MetricsRecorder) RecordFailure(latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.inflight--
	r.m.RequestCount++
	r.m.FailedRequests++
	r.m.LastRequestAt = r.now()
	r.updateRollingLocked(latency)
}

// updateRollingLocked maintains the rolling average latency and derived
// ratios. Caller holds the mutex.
func (r *MetricsRecorder) updateRollingLocked(latency time.Duration) {
	n := r.m.RequestCount
	r.m.AverageLatency += (latency - r.m.AverageLatency) / time.Duration(n)
	r.m.ErrorRate = float64(r.m.FailedRequests) / float64(n)
	r.m.Availability = 1 - r.m.ErrorRate
	r.updateUtilizationLocked()
}

func (r *MetricsRecorder) updateUtilizationLocked() {
	if r.maxConcurrent > 0 {
		r.m.CapacityUtilization = float64(r.inflight) / float64(r.maxConcurrent)
	}
}

// HasCapacity reports whether another request would stay under the limit.
func (r *MetricsRecorder) HasCapacity() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxConcurrent <= 0 || r.inflight < r.maxConcurrent
}

// Inflight returns the current in-flight count.
func (r *MetricsRecorder) Inflight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inflight
}

// Snapshot returns a value copy of the current metrics.
func (r *MetricsRecorder) Snapshot() types.ProviderMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m
}

// Reset zeroes the rolling counters. In-flight accounting is preserved.
func (r *MetricsRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	inflight := r.inflight
	r.m = types.ProviderMetrics{}
	r.inflight = inflight
	r.updateUtilizationLocked()
}

package providers

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tripgrid/trip-router/internal/types"
)

func TestMetricsRecorder_SuccessAndFailureCounts(t *testing.T) {
	r := NewMetricsRecorder(4)

	r.Begin()
	r.RecordSuccess(100*time.Millisecond, types.TokenUsage{TotalTokens: 30}, 0.0005)
	r.Begin()
	r.RecordFailure(200 * time.Millisecond)
	r.Begin()
	r.RecordSuccess(300*time.Millisecond, types.TokenUsage{TotalTokens: 70}, 0.0010)

	m := r.Snapshot()
	assert.Equal(t, int64(3), m.RequestCount)
	assert.Equal(t, int64(2), m.SuccessfulRequests)
	assert.Equal(t, int64(1), m.FailedRequests)
	assert.Equal(t, int64(100), m.TotalTokensProcessed)
	assert.InDelta(t, 0.0015, m.TotalCostUSD, 1e-12)
	assert.InDelta(t, 1.0/3.0, m.ErrorRate, 1e-9)
	assert.Equal(t, 200*time.Millisecond, m.AverageLatency)
	assert.False(t, m.LastRequestAt.IsZero())
}

func TestMetricsRecorder_InvariantsUnderConcurrency(t *testing.T) {
	r := NewMetricsRecorder(0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Begin()
			if i%3 == 0 {
				r.RecordFailure(time.Millisecond)
			} else {
				r.RecordSuccess(time.Millisecond, types.TokenUsage{TotalTokens: 1}, 0)
			}
		}(i)
	}
	wg.Wait()

	m := r.Snapshot()
	assert.Equal(t, int64(50), m.RequestCount)
	assert.Equal(t, m.RequestCount, m.SuccessfulRequests+m.FailedRequests)
	assert.InDelta(t, float64(m.FailedRequests)/float64(m.RequestCount), m.ErrorRate, 1e-9)
	assert.Zero(t, r.Inflight())
}

func TestMetricsRecorder_Capacity(t *testing.T) {
	r := NewMetricsRecorder(2)

	assert.True(t, r.HasCapacity())
	r.Begin()
	assert.True(t, r.HasCapacity())
	r.Begin()
	assert.False(t, r.HasCapacity())

	m := r.Snapshot()
	assert.InDelta(t, 1.0, m.CapacityUtilization, 1e-9)

	r.RecordSuccess(time.Millisecond, types.TokenUsage{}, 0)
	assert.True(t, r.HasCapacity())
}

func TestMetricsRecorder_ResetPreservesInflight(t *testing.T) {
	r := NewMetricsRecorder(4)
	r.Begin()
	r.RecordSuccess(time.Millisecond, types.TokenUsage{TotalTokens: 10}, 0.001)
	r.Begin()

	r.Reset()

	m := r.Snapshot()
	assert.Zero(t, m.RequestCount)
	assert.Zero(t, m.TotalCostUSD)
	assert.Equal(t, 1, r.Inflight())
}

func TestProviderMetrics_SuccessRate(t *testing.T) {
	assert.Equal(t, float64(-1), types.ProviderMetrics{}.SuccessRate())

	m := types.ProviderMetrics{RequestCount: 4, SuccessfulRequests: 3}
	assert.InDelta(t, 0.75, m.SuccessRate(), 1e-9)
}

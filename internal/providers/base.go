package providers

import (
	"sync"
	"time"

	"github.com/tripgrid/trip-router/internal/types"
)

// failureThreshold is the consecutive-failure count after which an adapter
// reports itself unavailable until the cooldown elapses.
const failureThreshold = 3

const failureCooldown = 30 * time.Second

// Core carries the state every vendor adapter shares: the immutable profile,
// the metrics recorder, and a consecutive-failure tracker feeding
// IsAvailable/Status. Adapters embed it and implement transport on top.
type Core struct {
	profile  types.ProviderProfile
	recorder *MetricsRecorder

	mu                  sync.Mutex
	consecutiveFailures int
	lastFailureAt       time.Time
}

// NewCore builds the shared adapter state from a profile.
func NewCore(profile types.ProviderProfile) *Core {
	return &Core{
		profile:  profile,
		recorder: NewMetricsRecorder(profile.MaxConcurrentRequests),
	}
}

// Name returns the provider identifier.
func (c *Core) Name() types.ProviderID { return c.profile.Name }

// Profile returns the registration-time preferences.
func (c *Core) Profile() types.ProviderProfile { return c.profile }

// Recorder exposes the metrics recorder to the owning adapter.
func (c *Core) Recorder() *MetricsRecorder { return c.recorder }

// Metrics returns a snapshot of the rolling counters.
func (c *Core) Metrics() types.ProviderMetrics { return c.recorder.Snapshot() }

// ResetMetrics zeroes the rolling counters.
func (c *Core) ResetMetrics() { c.recorder.Reset() }

// HasCapacity reports whether the adapter is under its concurrency limit.
func (c *Core) HasCapacity() bool { return c.recorder.HasCapacity() }

// Available reports whether the adapter has not tripped its failure
// threshold, or has cooled down since tripping it.
func (c *Core) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.consecutiveFailures < failureThreshold {
		return true
	}
	return time.Since(c.lastFailureAt) > failureCooldown
}

// Status derives the operational state from availability and error rate.
func (c *Core) Status() types.ProviderStatus {
	if !c.Available() {
		return types.StatusUnavailable
	}
	m := c.recorder.Snapshot()
	if m.RequestCount > 0 && m.ErrorRate > 0.5 {
		return types.StatusDegraded
	}
	return types.StatusActive
}

// NoteSuccess clears the consecutive-failure streak.
func (c *Core) NoteSuccess() {
	c.mu.Lock()
	c.consecutiveFailures = 0
	c.mu.Unlock()
}

// NoteFailure extends the consecutive-failure streak.
func (c *Core) NoteFailure() {
	c.mu.Lock()
	c.consecutiveFailures++
	c.lastFailureAt = time.Now()
	c.mu.Unlock()
}

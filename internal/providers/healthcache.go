package providers

import (
	"context"
	"sync"
	"time"

	"github.com/tripgrid/trip-router/internal/types"
)

// HealthSnapshot is one provider's cached health state.
type HealthSnapshot struct {
	Available   bool
	HasCapacity bool
	Status      types.ProviderStatus
	CheckedAt   time.Time
}

type healthEntry struct {
	snapshot  HealthSnapshot
	expiresAt time.Time
}

// HealthCache caches per-provider availability with a TTL and pull-through
// refresh. It is passed explicitly to the evaluator — there is no ambient
// process-global status state — so tests can inject deterministic fixtures
// via a zero TTL or a custom clock.
type HealthCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[types.ProviderID]healthEntry
	now     func() time.Time
}

// NewHealthCache creates a cache whose entries expire after ttl. A zero ttl
// disables caching entirely; every lookup refreshes.
func NewHealthCache(ttl time.Duration) *HealthCache {
	return &HealthCache{
		ttl:     ttl,
		entries: make(map[types.ProviderID]healthEntry),
		now:     time.Now,
	}
}

// Lookup returns the cached snapshot for the provider, refreshing it from
// the live handle when missing or expired.
func (c *HealthCache) Lookup(ctx context.Context, p Provider) HealthSnapshot {
	id := p.Name()

	c.mu.Lock()
	entry, ok := c.entries[id]
	if ok && c.ttl > 0 && c.now().Before(entry.expiresAt) {
		c.mu.Unlock()
		return entry.snapshot
	}
	c.mu.Unlock()

	// Probe outside the lock; IsAvailable may hit the network.
	snapshot := HealthSnapshot{
		Available:   p.IsAvailable(ctx),
		HasCapacity: p.HasCapacity(),
		Status:      p.Status(),
		CheckedAt:   c.now(),
	}

	c.mu.Lock()
	c.entries[id] = healthEntry{snapshot: snapshot, expiresAt: snapshot.CheckedAt.Add(c.ttl)}
	c.mu.Unlock()
	return snapshot
}

// Invalidate drops the cached entry for a provider, forcing the next lookup
// to probe. Called after failed attempts so the chain does not keep trusting
// a stale healthy verdict.
func (c *HealthCache) Invalidate(id types.ProviderID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

package providers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tripgrid/trip-router/internal/types"
)

func TestHealthCache_CachesWithinTTL(t *testing.T) {
	c := NewHealthCache(time.Minute)
	p := newStubProvider(types.ProviderGroq, true)

	first := c.Lookup(context.Background(), p)
	second := c.Lookup(context.Background(), p)

	assert.True(t, first.Available)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, p.probeCount(), "second lookup must hit the cache")
}

func TestHealthCache_ZeroTTLAlwaysProbes(t *testing.T) {
	c := NewHealthCache(0)
	p := newStubProvider(types.ProviderGroq, true)

	c.Lookup(context.Background(), p)
	p.available = false
	snapshot := c.Lookup(context.Background(), p)

	assert.False(t, snapshot.Available)
	assert.Equal(t, 2, p.probeCount())
}

func TestHealthCache_ExpiryTriggersRefresh(t *testing.T) {
	c := NewHealthCache(time.Minute)
	current := time.Unix(1000, 0)
	c.now = func() time.Time { return current }

	p := newStubProvider(types.ProviderGroq, true)
	c.Lookup(context.Background(), p)

	current = current.Add(2 * time.Minute)
	p.available = false
	snapshot := c.Lookup(context.Background(), p)

	assert.False(t, snapshot.Available)
	assert.Equal(t, 2, p.probeCount())
}

func TestHealthCache_InvalidateForcesProbe(t *testing.T) {
	c := NewHealthCache(time.Minute)
	p := newStubProvider(types.ProviderGroq, true)

	c.Lookup(context.Background(), p)
	c.Invalidate(types.ProviderGroq)
	p.available = false
	snapshot := c.Lookup(context.Background(), p)

	assert.False(t, snapshot.Available)
	assert.Equal(t, 2, p.probeCount())
}

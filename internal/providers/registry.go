package providers

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tripgrid/trip-router/internal/types"
)

// Registry is the single registration surface for provider handles.
// Registration happens at process init; reads are concurrent and never block
// each other. The registry holds no business logic beyond lookup — filtering
// by availability or capacity is the evaluator's job.
type Registry struct {
	mu        sync.RWMutex
	providers map[types.ProviderID]Provider
	order     []types.ProviderID
	logger    *logrus.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *logrus.Logger) *Registry {
	return &Registry{
		providers: make(map[types.ProviderID]Provider),
		logger:    logger,
	}
}

// Register adds a provider handle. Duplicate or unknown identifiers are
// configuration errors surfaced immediately.
func (r *Registry) Register(p Provider) error {
	id := p.Name()
	if !id.Valid() {
		return fmt.Errorf("unknown provider identifier %q", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[id]; exists {
		return fmt.Errorf("provider %q already registered", id)
	}
	r.providers[id] = p
	r.order = append(r.order, id)

	r.logger.WithFields(logrus.Fields{
		"provider":             id,
		"preferred_complexity": p.Profile().PreferredComplexity,
		"timeout":              p.Profile().Timeout,
	}).Info("Provider registered")
	return nil
}

// Get returns the handle for a provider name.
func (r *Registry) Get(id types.ProviderID) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// Healthy returns enabled providers in registration order. Unavailable or
// over-capacity providers are included; downstream scoring filters them.
func (r *Registry) Healthy() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var healthy []Provider
	for _, id := range r.order {
		p := r.providers[id]
		if p.Profile().Enabled {
			healthy = append(healthy, p)
		}
	}
	return healthy
}

// List returns all registered provider identifiers in registration order.
func (r *Registry) List() []types.ProviderID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.ProviderID, len(r.order))
	copy(out, r.order)
	return out
}

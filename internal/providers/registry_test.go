package providers

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripgrid/trip-router/internal/types"
)

// stubProvider is a minimal capability handle for registry and cache tests.
type stubProvider struct {
	profile   types.ProviderProfile
	available bool
	capacity  bool
	probes    int
	mu        sync.Mutex
}

func newStubProvider(name types.ProviderID, enabled bool) *stubProvider {
	return &stubProvider{
		profile: types.ProviderProfile{
			Name:    name,
			Enabled: enabled,
			Timeout: 10 * time.Second,
		},
		available: true,
		capacity:  true,
	}
}

func (s *stubProvider) Name() types.ProviderID         { return s.profile.Name }
func (s *stubProvider) Profile() types.ProviderProfile { return s.profile }
func (s *stubProvider) IsAvailable(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes++
	return s.available
}
func (s *stubProvider) HasCapacity() bool             { return s.capacity }
func (s *stubProvider) Metrics() types.ProviderMetrics { return types.ProviderMetrics{} }
func (s *stubProvider) Status() types.ProviderStatus  { return types.StatusActive }
func (s *stubProvider) ResetMetrics()                 {}

func (s *stubProvider) GenerateResponse(context.Context, *types.TripRequest) (*types.GenerationResponse, error) {
	return nil, nil
}

func (s *stubProvider) GenerateStream(context.Context, *types.TripRequest) (<-chan *types.StreamChunk, error) {
	return nil, nil
}

func (s *stubProvider) probeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.probes
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry(quietLogger())

	p := newStubProvider(types.ProviderGroq, true)
	require.NoError(t, r.Register(p))

	got, ok := r.Get(types.ProviderGroq)
	require.True(t, ok)
	assert.Same(t, Provider(p), got)

	_, ok = r.Get(types.ProviderGemini)
	assert.False(t, ok)
}

func TestRegistry_RejectsDuplicatesAndUnknownIDs(t *testing.T) {
	r := NewRegistry(quietLogger())

	require.NoError(t, r.Register(newStubProvider(types.ProviderGroq, true)))
	assert.Error(t, r.Register(newStubProvider(types.ProviderGroq, true)))
	assert.Error(t, r.Register(newStubProvider(types.ProviderID("mystery"), true)))
}

func TestRegistry_HealthyFiltersDisabled(t *testing.T) {
	r := NewRegistry(quietLogger())

	require.NoError(t, r.Register(newStubProvider(types.ProviderGroq, true)))
	require.NoError(t, r.Register(newStubProvider(types.ProviderGemini, false)))
	require.NoError(t, r.Register(newStubProvider(types.ProviderCerebras, true)))

	healthy := r.Healthy()
	require.Len(t, healthy, 2)
	// Registration order is preserved.
	assert.Equal(t, types.ProviderGroq, healthy[0].Name())
	assert.Equal(t, types.ProviderCerebras, healthy[1].Name())

	assert.Len(t, r.List(), 3)
}

func TestRegistry_ConcurrentReads(t *testing.T) {
	r := NewRegistry(quietLogger())
	require.NoError(t, r.Register(newStubProvider(types.ProviderGroq, true)))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = r.Get(types.ProviderGroq)
				_ = r.Healthy()
				_ = r.List()
			}
		}()
	}
	wg.Wait()
}

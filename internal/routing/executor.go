package routing

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tripgrid/trip-router/internal/providers"
	"github.com/tripgrid/trip-router/internal/types"
)

// Attempt records one provider try during fallback execution.
type Attempt struct {
	Provider types.ProviderID     `json:"provider"`
	Success  bool                 `json:"success"`
	Latency  time.Duration        `json:"latency"`
	Error    *types.ProviderError `json:"error,omitempty"`
}

// Result is the terminal outcome of a chain execution. Exhaustion is not an
// error: callers must check Degraded.
type Result struct {
	Response  *types.GenerationResponse `json:"response,omitempty"`
	Attempts  []Attempt                 `json:"attempts"`
	Degraded  bool                      `json:"degraded"`
	Cancelled bool                      `json:"cancelled"`
	LastError *types.ProviderError      `json:"last_error,omitempty"`
}

// Executor runs a decision's provider chain strictly sequentially: attempt
// N+1 begins only after attempt N definitively fails. There is no
// speculative racing — concurrent attempts would burn quota on multiple
// paid providers at once.
type Executor struct {
	registry *providers.Registry
	health   *providers.HealthCache
	logger   *logrus.Logger
}

// NewExecutor wires an executor from its collaborators.
func NewExecutor(registry *providers.Registry, health *providers.HealthCache, logger *logrus.Logger) *Executor {
	return &Executor{registry: registry, health: health, logger: logger}
}

// ExecuteWithFallback tries the primary, then each fallback in order,
// stopping at the first success. Provider-level failures never propagate as
// errors; they become attempt records. Each provider runs under its own
// configured timeout, not a global one.
func (x *Executor) ExecuteWithFallback(ctx context.Context, req *types.TripRequest, decision *Decision) *Result {
	chain := append([]types.ProviderID{decision.SelectedProvider}, decision.FallbackChain...)
	result := &Result{}

	for _, id := range chain {
		if err := ctx.Err(); err != nil {
			// Caller cancelled: stop advancing the chain.
			result.Degraded = true
			result.Cancelled = true
			result.LastError = &types.ProviderError{
				Provider:  id,
				Code:      types.ErrCodeCancelled,
				Message:   "request cancelled before attempt",
				Retryable: false,
				Err:       err,
			}
			return result
		}

		provider, ok := x.registry.Get(id)
		if !ok {
			// Decision referenced a provider that vanished from the registry.
			missing := &types.ProviderError{
				Provider: id,
				Code:     types.ErrCodeUnavailable,
				Message:  "provider not registered",
			}
			result.Attempts = append(result.Attempts, Attempt{Provider: id, Error: missing})
			result.LastError = missing
			continue
		}

		attempt := x.tryProvider(ctx, provider, req)
		result.Attempts = append(result.Attempts, attempt.record)

		if attempt.record.Success {
			result.Response = attempt.response
			return result
		}

		result.LastError = attempt.record.Error
		x.health.Invalidate(id)

		if attempt.record.Error != nil && attempt.record.Error.Code == types.ErrCodeCancelled {
			result.Degraded = true
			result.Cancelled = true
			return result
		}

		x.logger.WithFields(logrus.Fields{
			"request_id": req.Metadata.RequestID,
			"provider":   id,
			"error":      attempt.record.Error.Message,
		}).Warn("Provider attempt failed, advancing chain")
	}

	result.Degraded = true
	return result
}

type attemptOutcome struct {
	record   Attempt
	response *types.GenerationResponse
}

// tryProvider makes one attempt under the provider's own timeout. A timeout
// is treated identically to a failure for chain purposes.
func (x *Executor) tryProvider(ctx context.Context, p providers.Provider, req *types.TripRequest) attemptOutcome {
	timeout := p.Profile().Timeout
	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := p.GenerateResponse(attemptCtx, req)
	latency := time.Since(start)

	if err != nil {
		return attemptOutcome{record: Attempt{
			Provider: p.Name(),
			Latency:  latency,
			Error:    x.classify(p.Name(), err, ctx),
		}}
	}
	return attemptOutcome{
		record:   Attempt{Provider: p.Name(), Success: true, Latency: latency},
		response: resp,
	}
}

// classify normalizes attempt errors into ProviderError records. A deadline
// hit on the attempt context while the parent is still live is a
// per-provider timeout; a dead parent context is a caller cancellation.
func (x *Executor) classify(id types.ProviderID, err error, parent context.Context) *types.ProviderError {
	var perr *types.ProviderError
	if errors.As(err, &perr) {
		if perr.Code == types.ErrCodeCancelled && parent.Err() == nil {
			// The attempt context expired, not the caller's.
			perr.Code = types.ErrCodeTimeout
			perr.Retryable = true
		}
		return perr
	}

	code := types.ErrCodeVendor
	retryable := true
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = types.ErrCodeTimeout
	case errors.Is(err, context.Canceled):
		if parent.Err() != nil {
			code = types.ErrCodeCancelled
			retryable = false
		} else {
			code = types.ErrCodeTimeout
		}
	}
	return &types.ProviderError{
		Provider:  id,
		Code:      code,
		Message:   err.Error(),
		Retryable: retryable,
		Err:       err,
	}
}

package routing

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tripgrid/trip-router/internal/complexity"
	"github.com/tripgrid/trip-router/internal/types"
)

// TraceRecord is the full decision-plus-execution trace handed to the
// observability recorder after each request.
type TraceRecord struct {
	RequestID     string               `json:"request_id"`
	Analysis      *complexity.Analysis `json:"analysis"`
	Decision      *Decision            `json:"decision"`
	Result        *Result              `json:"result"`
	StartTime     time.Time            `json:"start_time"`
	EndTime       time.Time            `json:"end_time"`
	Provider      types.ProviderID     `json:"provider,omitempty"`
	FallbacksUsed int                  `json:"fallbacks_used"`
}

// Recorder receives one trace per request. Its retry, batching, and flush
// behaviour is its own concern.
type Recorder interface {
	Record(ctx context.Context, trace *TraceRecord)
}

// LogRecorder writes traces as structured log entries.
type LogRecorder struct {
	logger *logrus.Logger
}

// NewLogRecorder creates a recorder backed by the given logger.
func NewLogRecorder(logger *logrus.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

// Record logs the trace summary.
func (r *LogRecorder) Record(_ context.Context, trace *TraceRecord) {
	fields := logrus.Fields{
		"request_id":     trace.RequestID,
		"complexity":     trace.Analysis.Level,
		"score":          trace.Analysis.Score,
		"provider":       trace.Provider,
		"fallbacks_used": trace.FallbacksUsed,
		"attempts":       len(trace.Result.Attempts),
		"degraded":       trace.Result.Degraded,
		"duration_ms":    trace.EndTime.Sub(trace.StartTime).Milliseconds(),
	}
	if trace.Result.Degraded {
		r.logger.WithFields(fields).Warn("Request degraded")
		return
	}
	r.logger.WithFields(fields).Info("Request completed")
}

// NopRecorder discards traces. Useful in tests.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, *TraceRecord) {}

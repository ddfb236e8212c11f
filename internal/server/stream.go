package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tripgrid/trip-router/internal/providers"
	"github.com/tripgrid/trip-router/internal/routing"
	"github.com/tripgrid/trip-router/internal/types"
)

// Event types emitted on the itinerary stream, in order: started,
// complexity, routing, then step events while content arrives, then
// completed and metrics. An error event replaces completed on failure.
const (
	eventStarted    = "started"
	eventStep       = "step"
	eventComplexity = "complexity"
	eventRouting    = "routing"
	eventCompleted  = "completed"
	eventMetrics    = "metrics"
	eventError      = "error"
)

type streamEvent struct {
	Type      string      `json:"type"`
	RequestID string      `json:"requestId"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// streamItinerary serves one generation as a Server-Sent-Events sequence.
// Fallback follows the decision chain the same way the executor does, but
// chunk by chunk so clients see content as it arrives.
func (s *Server) streamItinerary(w http.ResponseWriter, r *http.Request, req *types.TripRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming not supported by connection")
		return
	}

	start := time.Now()
	decision, err := s.engine.Route(r.Context(), req)
	if err != nil {
		s.writeRoutingError(w, err)
		return
	}

	// From here the request leaves a trace whichever way it ends, like the
	// non-streaming path does.
	result := &routing.Result{}
	defer func() {
		trace := &routing.TraceRecord{
			RequestID: req.Metadata.RequestID,
			Analysis:  decision.Analysis,
			Decision:  decision,
			Result:    result,
			StartTime: start,
			EndTime:   time.Now(),
		}
		if result.Response != nil {
			trace.Provider = result.Response.Provider
		}
		s.engine.Record(r.Context(), trace)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	emit := func(eventType string, data interface{}) {
		payload, err := json.Marshal(streamEvent{
			Type:      eventType,
			RequestID: req.Metadata.RequestID,
			Timestamp: time.Now().UTC(),
			Data:      data,
		})
		if err != nil {
			s.logger.WithError(err).Error("Failed to marshal stream event")
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload)
		flusher.Flush()
	}

	emit(eventStarted, map[string]interface{}{
		"query_chars": len(req.Query),
	})
	emit(eventComplexity, decision.Analysis)
	emit(eventRouting, summarize(decision))

	chain := append([]types.ProviderID{decision.SelectedProvider}, decision.FallbackChain...)
	for _, id := range chain {
		if r.Context().Err() != nil {
			result.Degraded = true
			result.Cancelled = true
			result.LastError = &types.ProviderError{
				Provider: id,
				Code:     types.ErrCodeCancelled,
				Message:  "request cancelled before attempt",
			}
			emit(eventError, map[string]interface{}{
				"message": "client disconnected",
				"code":    string(types.ErrCodeCancelled),
			})
			return
		}

		provider, ok := s.registry.Get(id)
		if !ok {
			missing := &types.ProviderError{
				Provider: id,
				Code:     types.ErrCodeUnavailable,
				Message:  "provider not registered",
			}
			result.Attempts = append(result.Attempts, routing.Attempt{Provider: id, Error: missing})
			result.LastError = missing
			continue
		}

		attemptStart := time.Now()
		content, final, streamErr := s.streamFromProvider(r, req, provider, emit)
		if streamErr != nil {
			failed := streamError(id, streamErr)
			result.Attempts = append(result.Attempts, routing.Attempt{
				Provider: id,
				Latency:  time.Since(attemptStart),
				Error:    failed,
			})
			result.LastError = failed
			s.engine.InvalidateHealth(id)
			s.logger.WithFields(logrus.Fields{
				"request_id": req.Metadata.RequestID,
				"provider":   id,
			}).WithError(streamErr).Warn("Streaming attempt failed, advancing chain")
			emit(eventStep, map[string]interface{}{
				"provider": id,
				"failed":   true,
				"error":    streamErr.Error(),
			})
			continue
		}

		result.Attempts = append(result.Attempts, routing.Attempt{
			Provider: id,
			Success:  true,
			Latency:  time.Since(attemptStart),
		})
		result.Response = streamedResponse(req, id, content, final)

		emit(eventCompleted, map[string]interface{}{
			"provider":      id,
			"finish_reason": finishReason(final),
		})
		emit(eventMetrics, map[string]interface{}{
			"provider":       id,
			"usage":          usageOf(final),
			"duration_ms":    time.Since(start).Milliseconds(),
			"fallbacks_used": len(result.Attempts) - 1,
		})
		return
	}

	result.Degraded = true
	emit(eventError, map[string]interface{}{
		"message":  "all providers in the fallback chain failed",
		"code":     string(types.ErrCodeUnavailable),
		"attempts": len(result.Attempts),
	})
}

// streamError normalizes a streaming failure into the executor's attempt
// error shape.
func streamError(id types.ProviderID, err error) *types.ProviderError {
	var perr *types.ProviderError
	if errors.As(err, &perr) {
		return perr
	}
	return &types.ProviderError{
		Provider:  id,
		Code:      types.ErrCodeVendor,
		Message:   err.Error(),
		Retryable: true,
		Err:       err,
	}
}

// streamedResponse reassembles the streamed chunks into the same response
// shape the non-streaming path produces.
func streamedResponse(req *types.TripRequest, id types.ProviderID, content string, final *types.StreamChunk) *types.GenerationResponse {
	resp := &types.GenerationResponse{
		ID:        req.Metadata.RequestID,
		Provider:  id,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if final.Metadata != nil {
		resp.Model = final.Metadata.Model
		if final.Metadata.Usage != nil {
			resp.Usage = *final.Metadata.Usage
		}
	}
	return resp
}

// streamFromProvider forwards one provider's chunk sequence as step events.
// Returns the assembled content and the final chunk, or an error if the
// stream could not start or broke before completing.
func (s *Server) streamFromProvider(
	r *http.Request,
	req *types.TripRequest,
	provider providers.Provider,
	emit func(string, interface{}),
) (string, *types.StreamChunk, error) {
	id := provider.Name()
	chunks, err := provider.GenerateStream(r.Context(), req)
	if err != nil {
		return "", nil, err
	}

	var content strings.Builder
	var final *types.StreamChunk
	for chunk := range chunks {
		if chunk.IsComplete {
			final = chunk
			continue
		}
		content.WriteString(chunk.Content)
		emit(eventStep, map[string]interface{}{
			"provider": id,
			"content":  chunk.Content,
		})
	}

	if final == nil {
		return "", nil, fmt.Errorf("stream from %s ended without completion", id)
	}
	return content.String(), final, nil
}

func finishReason(chunk *types.StreamChunk) string {
	if chunk.Metadata != nil && chunk.Metadata.FinishReason != "" {
		return chunk.Metadata.FinishReason
	}
	return "stop"
}

func usageOf(chunk *types.StreamChunk) *types.TokenUsage {
	if chunk.Metadata != nil {
		return chunk.Metadata.Usage
	}
	return nil
}

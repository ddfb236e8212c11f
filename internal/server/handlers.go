package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/tripgrid/trip-router/internal/routing"
	"github.com/tripgrid/trip-router/internal/types"
)

// itineraryResponse is the non-streaming generation payload.
type itineraryResponse struct {
	ID        string               `json:"id"`
	Provider  types.ProviderID     `json:"provider"`
	Model     string               `json:"model"`
	Content   string               `json:"content"`
	Usage     types.TokenUsage     `json:"usage"`
	CreatedAt time.Time            `json:"created_at"`
	Routing   routingSummary       `json:"routing"`
	Attempts  []routing.Attempt    `json:"attempts,omitempty"`
	Degraded  bool                 `json:"degraded"`
	LastError *types.ProviderError `json:"last_error,omitempty"`
}

type routingSummary struct {
	SelectedProvider types.ProviderID   `json:"selected_provider"`
	FallbackChain    []types.ProviderID `json:"fallback_chain"`
	ComplexityScore  float64            `json:"complexity_score"`
	ComplexityLevel  types.ComplexityLevel `json:"complexity_level"`
	Reasoning        string             `json:"reasoning"`
}

func (s *Server) handleGenerateItinerary(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTripRequest(w, r)
	if !ok {
		return
	}

	if req.Options.Stream {
		s.streamItinerary(w, r, req)
		return
	}

	result, decision, err := s.engine.Generate(r.Context(), req)
	if err != nil {
		s.writeRoutingError(w, err)
		return
	}

	resp := itineraryResponse{
		Routing:   summarize(decision),
		Attempts:  result.Attempts,
		Degraded:  result.Degraded,
		LastError: result.LastError,
	}
	status := http.StatusOK
	if result.Response != nil {
		resp.ID = result.Response.ID
		resp.Provider = result.Response.Provider
		resp.Model = result.Response.Model
		resp.Content = result.Response.Content
		resp.Usage = result.Response.Usage
		resp.CreatedAt = result.Response.CreatedAt
	} else {
		// Every provider in the chain failed.
		resp.ID = req.Metadata.RequestID
		status = http.StatusBadGateway
	}

	s.writeJSON(w, status, resp)
}

func (s *Server) handleRoutingDecision(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTripRequest(w, r)
	if !ok {
		return
	}

	decision, err := s.engine.Route(r.Context(), req)
	if err != nil {
		s.writeRoutingError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"request_id": req.Metadata.RequestID,
		"decision":   decision,
		"timestamp":  time.Now().Unix(),
	})
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	var out []map[string]interface{}
	for _, id := range s.registry.List() {
		p, ok := s.registry.Get(id)
		if !ok {
			continue
		}
		out = append(out, map[string]interface{}{
			"name":    p.Name(),
			"status":  p.Status(),
			"profile": p.Profile(),
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers": out,
		"count":     len(out),
	})
}

func (s *Server) handleGetProvider(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	id := types.ProviderID(name)
	p, ok := s.registry.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("provider %s not found", name))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":    p.Name(),
		"status":  p.Status(),
		"profile": p.Profile(),
		"metrics": p.Metrics(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	perProvider := make(map[string]interface{})
	healthy := 0
	total := 0

	for _, id := range s.registry.List() {
		p, ok := s.registry.Get(id)
		if !ok {
			continue
		}
		total++
		available := p.IsAvailable(r.Context())
		if available {
			healthy++
		}
		perProvider[string(id)] = map[string]interface{}{
			"available": available,
			"status":    p.Status(),
		}
	}

	status := "healthy"
	statusCode := http.StatusOK
	switch {
	case total == 0 || healthy == 0:
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	case healthy < total:
		status = "degraded"
	}

	s.writeJSON(w, statusCode, map[string]interface{}{
		"status":    status,
		"providers": perProvider,
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	perProvider := make(map[string]types.ProviderMetrics)
	for _, id := range s.registry.List() {
		p, ok := s.registry.Get(id)
		if !ok {
			continue
		}
		perProvider[string(id)] = p.Metrics()
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers":    perProvider,
		"audit_events": s.security.Audit().EventCount(),
		"timestamp":    time.Now().Unix(),
	})
}

// decodeTripRequest parses and validates the request body, stamping request
// metadata. A false return means the error response has been written.
func (s *Server) decodeTripRequest(w http.ResponseWriter, r *http.Request) (*types.TripRequest, bool) {
	var req types.TripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return nil, false
	}

	if req.Metadata.RequestID == "" {
		req.Metadata.RequestID = uuid.NewString()
	}
	req.Metadata.Timestamp = time.Now()

	if err := req.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return &req, true
}

// writeRoutingError maps structural routing failures onto HTTP statuses.
func (s *Server) writeRoutingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrEmptyQuery), errors.Is(err, types.ErrQueryTooLarge):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, routing.ErrNoProvidersAvailable), errors.Is(err, routing.ErrNoProviderCapable):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func summarize(d *routing.Decision) routingSummary {
	summary := routingSummary{
		SelectedProvider: d.SelectedProvider,
		FallbackChain:    d.FallbackChain,
		ComplexityScore:  d.ComplexityScore,
		Reasoning:        d.Reasoning,
	}
	if d.Analysis != nil {
		summary.ComplexityLevel = d.Analysis.Level
	}
	return summary
}

// Package server exposes the routing engine over HTTP: itinerary
// generation (JSON and SSE), provider introspection, health, metrics,
// and dry-run routing decisions.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/tripgrid/trip-router/internal/config"
	"github.com/tripgrid/trip-router/internal/middleware"
	"github.com/tripgrid/trip-router/internal/providers"
	"github.com/tripgrid/trip-router/internal/routing"
)

// Server is the HTTP front end.
type Server struct {
	engine     *routing.Engine
	registry   *providers.Registry
	security   *middleware.SecurityStack
	openapi    *middleware.OpenAPIValidator
	httpServer *http.Server
	logger     *logrus.Logger
	cfg        *config.Config
}

// New builds a server around an engine and its registry.
func New(cfg *config.Config, engine *routing.Engine, registry *providers.Registry, logger *logrus.Logger) (*Server, error) {
	s := &Server{
		engine:   engine,
		registry: registry,
		logger:   logger,
		cfg:      cfg,
	}

	s.security = middleware.NewSecurityStack(&cfg.Security, logger)

	openapi, err := middleware.NewOpenAPIValidator("docs/openapi.yaml", cfg.Security.Validation.OpenAPIEnabled, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenAPI validation: %w", err)
	}
	s.openapi = openapi

	return s, nil
}

// Start blocks serving HTTP until the listener fails or Stop is called.
func (s *Server) Start() error {
	r := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           ":" + s.cfg.Server.Port,
		Handler:        r,
		ReadTimeout:    s.cfg.Server.ReadTimeout,
		WriteTimeout:   s.cfg.Server.WriteTimeout,
		MaxHeaderBytes: s.cfg.Server.MaxHeaderBytes,
	}

	s.logger.WithField("port", s.cfg.Server.Port).Info("Starting trip-router server")
	return s.httpServer.ListenAndServe()
}

// Stop drains in-flight requests and shuts down background components.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping trip-router server")
	s.security.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the assembled route tree, used directly by tests.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	r.Use(s.security.Handler())
	r.Use(s.loggingMiddleware)
	r.Use(mux.MiddlewareFunc(s.openapi.Middleware))

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/itineraries", s.handleGenerateItinerary).Methods("POST")
	api.HandleFunc("/routing/decision", s.handleRoutingDecision).Methods("POST")
	api.HandleFunc("/providers", s.handleListProviders).Methods("GET")
	api.HandleFunc("/providers/{name}", s.handleGetProvider).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/metrics", s.handleMetrics).Methods("GET")

	s.setupDocsRoutes(r)

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    "api_error",
			"code":    statusCode,
		},
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// responseWriter captures the status code for request logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the logging wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Package middleware assembles the HTTP protection chain in front of the
// router's handlers.
package middleware

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/tripgrid/trip-router/internal/config"
	"github.com/tripgrid/trip-router/internal/security"
)

// SecurityStack bundles the security components into one middleware chain.
// Components left unconfigured are skipped.
type SecurityStack struct {
	auth      *security.Authenticator
	limiter   *security.RateLimiter
	validator *security.Validator
	audit     *security.AuditLogger
	cors      []string
	logger    *logrus.Logger
}

// NewSecurityStack wires the stack from configuration. Authentication is
// enabled whenever API keys or a JWT secret are configured.
func NewSecurityStack(cfg *config.SecurityConfig, logger *logrus.Logger) *SecurityStack {
	s := &SecurityStack{
		cors:   cfg.CORS.AllowedOrigins,
		logger: logger,
	}

	if len(cfg.APIKeys) > 0 || cfg.JWTSecret != "" {
		s.auth = security.NewAuthenticator(cfg.APIKeys, cfg.JWTSecret, logger)
	}
	if cfg.RateLimiting.Enabled {
		s.limiter = security.NewRateLimiter(cfg.RateLimiting.RequestsPerMin, cfg.RateLimiting.BurstSize, logger)
	}
	s.validator = security.NewValidator(cfg.Validation.MaxRequestBytes, cfg.Validation.MaxJSONDepth, logger)
	s.audit = security.NewAuditLogger(0, logger)

	return s
}

// Handler composes the chain: headers, audit, auth, rate limiting, then
// body validation, outermost first.
func (s *SecurityStack) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := next

		handler = s.validator.Middleware()(handler)
		if s.limiter != nil {
			handler = security.RateLimitMiddleware(s.limiter)(handler)
		}
		if s.auth != nil {
			handler = s.auth.Middleware()(handler)
		}
		handler = s.audit.Middleware()(handler)
		handler = securityHeaders(handler)
		if len(s.cors) > 0 {
			handler = corsMiddleware(s.cors)(handler)
		}

		return handler
	}
}

// Audit exposes the audit logger so handlers can record domain events.
func (s *SecurityStack) Audit() *security.AuditLogger {
	return s.audit
}

// Stop shuts down the background components.
func (s *SecurityStack) Stop() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	s.audit.Stop()
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if allowed == "*" || allowed == origin {
					if origin == "" {
						origin = "*"
					}
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
					w.Header().Set("Access-Control-Max-Age", "86400")
					break
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

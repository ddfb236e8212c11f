package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/sirupsen/logrus"
)

// OpenAPIValidator checks inbound requests against the published API
// document. Routes not present in the document pass through untouched.
type OpenAPIValidator struct {
	router  routers.Router
	logger  *logrus.Logger
	enabled bool
}

// NewOpenAPIValidator loads and validates the OpenAPI document at specPath.
// With enabled false the validator is a pass-through and the document is not
// read.
func NewOpenAPIValidator(specPath string, enabled bool, logger *logrus.Logger) (*OpenAPIValidator, error) {
	v := &OpenAPIValidator{logger: logger, enabled: enabled}
	if !enabled {
		logger.Info("OpenAPI request validation disabled")
		return v, nil
	}

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document: %w", err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build OpenAPI router: %w", err)
	}
	v.router = router

	logger.WithField("spec_path", specPath).Info("OpenAPI request validation enabled")
	return v, nil
}

// Middleware returns the validating handler wrapper.
func (v *OpenAPIValidator) Middleware(next http.Handler) http.Handler {
	if !v.enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := v.validate(r); err != nil {
			v.logger.WithError(err).WithFields(logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
			}).Warn("OpenAPI validation failed")
			writeValidationError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (v *OpenAPIValidator) validate(r *http.Request) error {
	route, pathParams, err := v.router.FindRoute(r)
	if err != nil {
		// Undocumented routes (the OpenAPI document itself, future
		// endpoints) are not rejected here.
		if strings.Contains(err.Error(), "not found") {
			return nil
		}
		return fmt.Errorf("route lookup failed: %w", err)
	}

	var body []byte
	if r.Body != nil {
		body, err = io.ReadAll(r.Body)
		if err != nil {
			return fmt.Errorf("failed to read request body: %w", err)
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	input := &openapi3filter.RequestValidationInput{
		Request:    r,
		PathParams: pathParams,
		Route:      route,
	}
	if len(body) > 0 {
		input.Request.Body = io.NopCloser(bytes.NewReader(body))
	}

	if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
		return fmt.Errorf("request validation failed: %w", err)
	}

	// Downstream handlers get a fresh reader.
	r.Body = io.NopCloser(bytes.NewReader(body))
	return nil
}

func writeValidationError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"message": err.Error(),
			"type":    "validation_error",
			"code":    http.StatusBadRequest,
		},
		"timestamp": time.Now().Unix(),
	})
}

package security

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Validator screens inbound request bodies before they reach handlers:
// size cap, content type, JSON well-formedness and nesting depth.
type Validator struct {
	maxBytes int64
	maxDepth int
	logger   *logrus.Logger
}

// NewValidator builds a validator with the given body limits.
func NewValidator(maxBytes int64, maxDepth int, logger *logrus.Logger) *Validator {
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	if maxDepth <= 0 {
		maxDepth = 10
	}
	return &Validator{maxBytes: maxBytes, maxDepth: maxDepth, logger: logger}
}

// Middleware validates bodies on mutating methods and restores the body for
// downstream handlers.
func (v *Validator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			if err := v.checkContentType(r); err != nil {
				v.reject(w, r, http.StatusUnsupportedMediaType, err)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, v.maxBytes+1))
			if err != nil {
				v.reject(w, r, http.StatusBadRequest, fmt.Errorf("failed to read request body: %w", err))
				return
			}
			if int64(len(body)) > v.maxBytes {
				v.reject(w, r, http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", v.maxBytes))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if len(body) > 0 {
				if err := v.checkJSON(body); err != nil {
					v.reject(w, r, http.StatusBadRequest, err)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (v *Validator) checkContentType(r *http.Request) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return fmt.Errorf("missing Content-Type header")
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return fmt.Errorf("malformed Content-Type header: %w", err)
	}
	if mediaType != "application/json" {
		return fmt.Errorf("unsupported content type: %s", mediaType)
	}
	return nil
}

// checkJSON walks the token stream so depth is bounded without decoding
// into an intermediate structure.
func (v *Validator) checkJSON(body []byte) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("malformed JSON body: %w", err)
		}
		if delim, ok := tok.(json.Delim); ok {
			switch delim {
			case '{', '[':
				depth++
				if depth > v.maxDepth {
					return fmt.Errorf("JSON nesting exceeds depth %d", v.maxDepth)
				}
			case '}', ']':
				depth--
			}
		}
	}
}

func (v *Validator) reject(w http.ResponseWriter, r *http.Request, status int, err error) {
	v.logger.WithFields(logrus.Fields{
		"path":      r.URL.Path,
		"method":    r.Method,
		"remote_ip": ClientIP(r),
	}).WithError(err).Warn("Request validation failed")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":"validation_error","code":%d},"timestamp":%d}`,
		err.Error(), status, time.Now().Unix())
}

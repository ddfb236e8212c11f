package security

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AuditEventType classifies security events.
type AuditEventType string

const (
	AuthenticationSuccess AuditEventType = "authentication_success"
	AuthenticationFailure AuditEventType = "authentication_failure"
	RateLimitExceeded     AuditEventType = "rate_limit_exceeded"
	ValidationFailure     AuditEventType = "validation_failure"
	RequestCompleted      AuditEventType = "request_completed"
)

// AuditEvent is one security event bound for the audit stream.
type AuditEvent struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	EventType AuditEventType         `json:"event_type"`
	UserID    string                 `json:"user_id,omitempty"`
	IPAddress string                 `json:"ip_address,omitempty"`
	Resource  string                 `json:"resource,omitempty"`
	Method    string                 `json:"method,omitempty"`
	Status    int                    `json:"status,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Severity  string                 `json:"severity"`
}

// AuditLogger buffers events on a channel and drains them to the structured
// log on a background goroutine. A full buffer drops events rather than
// blocking the request path.
type AuditLogger struct {
	logger *logrus.Logger
	buffer chan *AuditEvent
	done   chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	count   int64
	dropped int64
	stopped bool
}

// NewAuditLogger starts an audit logger with the given buffer capacity.
func NewAuditLogger(bufferSize int, logger *logrus.Logger) *AuditLogger {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	a := &AuditLogger{
		logger: logger,
		buffer: make(chan *AuditEvent, bufferSize),
		done:   make(chan struct{}),
	}
	a.wg.Add(1)
	go a.drain()
	return a
}

// Record queues an event, enriching it from the request context.
func (a *AuditLogger) Record(ctx context.Context, eventType AuditEventType, message string, details map[string]interface{}) {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	event := &AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Message:   message,
		Details:   details,
		Severity:  severityOf(eventType),
		IPAddress: clientIPFromContext(ctx),
	}
	if info, ok := GetAuthInfo(ctx); ok {
		event.UserID = info.UserID
	}

	select {
	case a.buffer <- event:
		a.mu.Lock()
		a.count++
		a.mu.Unlock()
	default:
		a.mu.Lock()
		a.dropped++
		a.mu.Unlock()
		a.logger.Warn("Audit buffer full, dropping event")
	}
}

// Middleware records one completion event per request.
func (a *AuditLogger) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			a.Record(r.Context(), RequestCompleted, "request completed", map[string]interface{}{
				"resource": r.URL.Path,
				"method":   r.Method,
				"status":   rec.status,
			})
		})
	}
}

// EventCount reports how many events have been accepted since start.
func (a *AuditLogger) EventCount() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// Stop flushes buffered events and terminates the drain goroutine.
func (a *AuditLogger) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	a.mu.Unlock()

	close(a.done)
	a.wg.Wait()
}

func (a *AuditLogger) drain() {
	defer a.wg.Done()
	for {
		select {
		case event := <-a.buffer:
			a.write(event)
		case <-a.done:
			for {
				select {
				case event := <-a.buffer:
					a.write(event)
				default:
					return
				}
			}
		}
	}
}

func (a *AuditLogger) write(event *AuditEvent) {
	entry := a.logger.WithFields(logrus.Fields{
		"audit_id":   event.ID,
		"event_type": event.EventType,
		"severity":   event.Severity,
		"user_id":    event.UserID,
		"ip_address": event.IPAddress,
		"details":    event.Details,
	})
	switch event.Severity {
	case "warning":
		entry.Warn(event.Message)
	default:
		entry.Info(event.Message)
	}
}

func severityOf(t AuditEventType) string {
	switch t {
	case AuthenticationFailure, RateLimitExceeded, ValidationFailure:
		return "warning"
	default:
		return "info"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush preserves streaming support for handlers behind the middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

package security

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RateLimitResult is the outcome of a single admission check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter is a per-caller token bucket limiter. Buckets refill
// continuously at the configured per-minute rate up to the burst size;
// a background sweep evicts idle buckets.
type RateLimiter struct {
	perMinute int
	burst     int
	logger    *logrus.Logger

	mu      sync.Mutex
	buckets map[string]*bucket

	stop    chan struct{}
	stopped bool
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter starts a limiter allowing perMinute requests per key with
// the given burst headroom.
func NewRateLimiter(perMinute, burst int, logger *logrus.Logger) *RateLimiter {
	if burst <= 0 {
		burst = perMinute
	}
	rl := &RateLimiter{
		perMinute: perMinute,
		burst:     burst,
		logger:    logger,
		buckets:   make(map[string]*bucket),
		stop:      make(chan struct{}),
	}
	go rl.sweepLoop(5 * time.Minute)
	return rl
}

// Allow consumes one token for key, reporting whether the request may
// proceed.
func (rl *RateLimiter) Allow(key string) RateLimitResult {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rl.burst), lastRefill: now}
		rl.buckets[key] = b
	}

	elapsed := now.Sub(b.lastRefill)
	b.tokens += elapsed.Minutes() * float64(rl.perMinute)
	if b.tokens > float64(rl.burst) {
		b.tokens = float64(rl.burst)
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return RateLimitResult{Allowed: true, Remaining: int(b.tokens)}
	}

	retryAfter := time.Duration(float64(time.Minute) / float64(rl.perMinute))
	rl.logger.WithFields(logrus.Fields{
		"key":         MaskKey(key),
		"retry_after": retryAfter,
	}).Warn("Rate limit exceeded")
	return RateLimitResult{Allowed: false, RetryAfter: retryAfter}
}

// Reset drops the bucket for key.
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, key)
}

// Stop terminates the background sweep. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.stopped {
		return
	}
	rl.stopped = true
	close(rl.stop)
}

func (rl *RateLimiter) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) sweep() {
	cutoff := time.Now().Add(-2 * time.Minute)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for key, b := range rl.buckets {
		if b.lastRefill.Before(cutoff) && b.tokens >= float64(rl.burst) {
			delete(rl.buckets, key)
			removed++
		}
	}
	if removed > 0 {
		rl.logger.WithField("removed_buckets", removed).Debug("Rate limit sweep completed")
	}
}

// RateLimitKey identifies the caller for limiting: the authenticated user
// when available, otherwise the client address.
func RateLimitKey(r *http.Request) string {
	if info, ok := GetAuthInfo(r.Context()); ok {
		return "user:" + info.UserID
	}
	return "ip:" + ClientIP(r)
}

// RateLimitMiddleware rejects requests over the limit with 429 and standard
// rate limit headers.
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := rl.Allow(RateLimitKey(r))

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, `{"error":{"message":"rate limit exceeded","type":"rate_limit_error","code":429,"retry_after":%d},"timestamp":%d}`,
					int(result.RetryAfter.Seconds()), time.Now().Unix())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

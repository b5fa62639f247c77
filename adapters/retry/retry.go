// Package retry provides the exponential-backoff retry policy.
package retry

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/artpar/restschema/ports"
)

// Config configures a Policy.
type Config struct {
	// MaxAttempts counts the first attempt. Values below 1 mean 1.
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Jitter is the backoff randomization factor, 0 for none.
	Jitter float64
}

// DefaultConfig returns the policy used when retries are enabled without
// further tuning.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Jitter:          backoff.DefaultRandomizationFactor,
	}
}

// Policy retries rate limiting and gateway failures. A non-idempotent verb
// is retried only when the platform says it refused the request: 429, or
// 503 with Retry-After. Network failures are retried for idempotent verbs
// only. A Policy is stateless and safe for concurrent use.
type Policy struct {
	cfg Config
	now func() time.Time
}

// New creates a Policy.
func New(cfg Config) *Policy {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = backoff.DefaultInitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = backoff.DefaultMaxInterval
	}
	return &Policy{cfg: cfg, now: time.Now}
}

// ShouldRetry implements ports.RetryPolicy.
func (p *Policy) ShouldRetry(attempt int, req ports.Request, resp *ports.Response, err error) (time.Duration, bool) {
	if attempt >= p.cfg.MaxAttempts {
		return 0, false
	}

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, false
		}
		if !Idempotent(req.Verb) {
			return 0, false
		}
		return p.backoff(attempt), true
	}

	if resp == nil || !RetryableStatus(resp.StatusCode) {
		return 0, false
	}
	wait, hinted := p.retryAfter(resp.Headers)
	if !Idempotent(req.Verb) && !Refused(resp.StatusCode, hinted) {
		return 0, false
	}
	if hinted && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable) {
		return wait, true
	}
	return p.backoff(attempt), true
}

// backoff returns the wait before attempt+1.
func (p *Policy) backoff(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.InitialInterval
	b.MaxInterval = p.cfg.MaxInterval
	b.RandomizationFactor = p.cfg.Jitter
	b.MaxElapsedTime = 0
	b.Reset()

	var wait time.Duration
	for i := 0; i < attempt; i++ {
		wait = b.NextBackOff()
	}
	return wait
}

// retryAfter reads Retry-After as seconds or an HTTP date.
func (p *Policy) retryAfter(h http.Header) (time.Duration, bool) {
	v := h.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(p.now()); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

// RetryableStatus reports whether a status is worth another attempt.
func RetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Refused reports whether a status guarantees the request was not applied.
// hinted tells whether the response carried a usable Retry-After.
func Refused(status int, hinted bool) bool {
	switch status {
	case http.StatusTooManyRequests:
		return true
	case http.StatusServiceUnavailable:
		return hinted
	default:
		return false
	}
}

// Idempotent reports whether repeating verb cannot duplicate its effect.
func Idempotent(verb string) bool {
	switch verb {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

var _ ports.RetryPolicy = (*Policy)(nil)

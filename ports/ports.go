// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// -----------------------------------------------------------------------------
// Transport Ports
// -----------------------------------------------------------------------------

// Request is an outbound call to the platform.
// URL is either relative to the transport's base URL (e.g. "meetings/abc")
// or absolute, as continuation locators are.
type Request struct {
	Verb    string
	URL     string
	Query   url.Values
	Body    map[string]any
	Headers http.Header

	// Resource and Method label the request for logs and metrics.
	Resource string
	Method   string
}

// Response is what the platform answered.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Transport executes requests against the platform.
// A non-nil error means no response was received; HTTP error statuses are
// returned as a Response.
type Transport interface {
	Do(ctx context.Context, req Request) (Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req Request) (Response, error)

// Do calls f(ctx, req).
func (f TransportFunc) Do(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// -----------------------------------------------------------------------------
// Policy Ports
// -----------------------------------------------------------------------------

// RetryPolicy decides whether a failed exchange is attempted again.
// attempt counts completed attempts, starting at 1. resp is nil when err is set.
type RetryPolicy interface {
	ShouldRetry(attempt int, req Request, resp *Response, err error) (wait time.Duration, retry bool)
}

// NoRetry never retries.
type NoRetry struct{}

// ShouldRetry always returns false.
func (NoRetry) ShouldRetry(int, Request, *Response, error) (time.Duration, bool) {
	return 0, false
}

// -----------------------------------------------------------------------------
// Observability Ports
// -----------------------------------------------------------------------------

// Observer receives one call per completed attempt.
// status is 0 when the transport failed before a response arrived.
type Observer interface {
	ObserveExchange(resource, method string, status int, duration time.Duration)
	ObserveRetry(resource, method string)
	ObservePage(resource string, items int)
}

// Clock abstracts time for testability. Sleep waits for d or until ctx is
// done, returning ctx.Err() in the latter case.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

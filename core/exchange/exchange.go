// Package exchange executes requests through a ports.Transport and turns
// the outcome into either a successful Response or a typed error.
//
// Status mapping:
//
//	transport failure       -> *apierror.TransportError (Err set)
//	404                     -> *apierror.NotFoundError
//	410 on DELETE           -> success
//	any other status >= 400 -> *apierror.TransportError
//
// Retries are delegated to a ports.RetryPolicy; the default never retries.
package exchange

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/restschema/pkg/apierror"
	"github.com/artpar/restschema/ports"
)

// Client wraps a Transport with status mapping, retries and observation.
// It holds no per-call state and is safe for concurrent use when its
// Transport is.
type Client struct {
	transport ports.Transport
	policy    ports.RetryPolicy
	observer  ports.Observer
	logger    zerolog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithRetryPolicy sets the retry policy.
func WithRetryPolicy(p ports.RetryPolicy) Option {
	return func(c *Client) {
		if p != nil {
			c.policy = p
		}
	}
}

// WithObserver reports every attempt to o.
func WithObserver(o ports.Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock replaces the time source and the backoff sleep, for tests.
func WithClock(clock ports.Clock) Option {
	return func(c *Client) {
		c.now = clock.Now
		c.sleep = clock.Sleep
	}
}

// New creates a Client over t.
func New(t ports.Transport, opts ...Option) *Client {
	c := &Client{
		transport: t,
		policy:    ports.NoRetry{},
		logger:    zerolog.Nop(),
		sleep:     sleepContext,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do executes req, retrying as the policy allows.
func (c *Client) Do(ctx context.Context, req ports.Request) (ports.Response, error) {
	for attempt := 1; ; attempt++ {
		start := c.now()
		resp, err := c.transport.Do(ctx, req)
		elapsed := c.now().Sub(start)

		status := 0
		if err == nil {
			status = resp.StatusCode
		}
		c.observe(req, status, elapsed)

		c.logger.Debug().
			Str("verb", req.Verb).
			Str("url", req.URL).
			Int("status", status).
			Int("attempt", attempt).
			Dur("duration", elapsed).
			Msg("exchange")

		if err == nil && !failed(req, resp) {
			return resp, nil
		}
		if ctx.Err() != nil {
			return ports.Response{}, &apierror.TransportError{Verb: req.Verb, URL: req.URL, Err: ctx.Err()}
		}

		var respPtr *ports.Response
		if err == nil {
			respPtr = &resp
		}
		wait, retry := c.policy.ShouldRetry(attempt, req, respPtr, err)
		if !retry {
			return ports.Response{}, toError(req, resp, err)
		}

		if c.observer != nil {
			c.observer.ObserveRetry(req.Resource, req.Method)
		}
		c.logger.Warn().
			Str("verb", req.Verb).
			Str("url", req.URL).
			Int("status", status).
			Int("attempt", attempt).
			Dur("wait", wait).
			AnErr("cause", err).
			Msg("retrying exchange")

		if err := c.sleep(ctx, wait); err != nil {
			return ports.Response{}, &apierror.TransportError{Verb: req.Verb, URL: req.URL, Err: err}
		}
	}
}

func (c *Client) observe(req ports.Request, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveExchange(req.Resource, req.Method, status, d)
	}
}

// failed reports whether resp is an error status. A 410 answering a DELETE
// means the record is already gone and counts as success.
func failed(req ports.Request, resp ports.Response) bool {
	if resp.StatusCode < 400 {
		return false
	}
	if resp.StatusCode == http.StatusGone && req.Verb == http.MethodDelete {
		return false
	}
	return true
}

func toError(req ports.Request, resp ports.Response, err error) error {
	if err != nil {
		return &apierror.TransportError{Verb: req.Verb, URL: req.URL, Err: err}
	}
	if resp.StatusCode == http.StatusNotFound {
		return &apierror.NotFoundError{Verb: req.Verb, URL: req.URL, Body: string(resp.Body)}
	}
	return &apierror.TransportError{
		Verb:       req.Verb,
		URL:        req.URL,
		StatusCode: resp.StatusCode,
		Body:       string(resp.Body),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

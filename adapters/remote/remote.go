// Package remote provides the net/http transport that talks to the platform.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/artpar/restschema/ports"
)

// TrackingHeader carries a per-request identifier the platform echoes in
// its logs.
const TrackingHeader = "TrackingID"

// Client executes ports.Requests over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	headers    map[string]string
	trackingID func() string
}

// ClientConfig configures the remote client.
type ClientConfig struct {
	// BaseURL is the platform API root, e.g. https://webexapis.com/v1/.
	BaseURL string
	// AccessToken is sent as a bearer token when set.
	AccessToken string
	Timeout     time.Duration
	Headers     map[string]string
	// HTTPClient supplies the underlying transport. It is copied, not modified.
	HTTPClient *http.Client
}

// NewClient creates a new remote HTTP client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{}
	if cfg.HTTPClient != nil {
		clone := *cfg.HTTPClient
		httpClient = &clone
	}
	if cfg.AccessToken != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.AccessToken,
			TokenType:   "Bearer",
		}))
	}
	httpClient.Timeout = timeout

	return &Client{
		httpClient: httpClient,
		baseURL:    base,
		headers:    cfg.Headers,
		trackingID: func() string { return "restschema_" + uuid.NewString() },
	}, nil
}

// Resolve turns a request URL into an absolute one. Relative URLs are
// resolved against the base URL; absolute ones are returned unchanged.
func (c *Client) Resolve(raw string, query url.Values) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	if !u.IsAbs() {
		u = c.baseURL.ResolveReference(u)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Do sends req and returns the platform's answer. Error statuses are
// returned as a Response; only failures to complete the exchange are errors.
func (c *Client) Do(ctx context.Context, req ports.Request) (ports.Response, error) {
	target, err := c.Resolve(req.URL, req.Query)
	if err != nil {
		return ports.Response{}, err
	}

	var bodyReader io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return ports.Response{}, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Verb, target, bodyReader)
	if err != nil {
		return ports.Response{}, fmt.Errorf("create request: %w", err)
	}

	if bodyReader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(TrackingHeader, c.trackingID())

	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	for k, vs := range req.Headers {
		httpReq.Header[http.CanonicalHeaderKey(k)] = vs
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return ports.Response{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ports.Response{}, fmt.Errorf("read response: %w", err)
	}

	return ports.Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}, nil
}

var _ ports.Transport = (*Client)(nil)

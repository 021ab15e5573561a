// Package openf1 is a small client for the OpenF1 REST API. Upstream payloads
// are decoded into DTOs and mapped to the dashboard's driver types; nothing
// past this package sees the upstream schema.
package openf1

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

// LatestSession selects the most recent session upstream.
const LatestSession = "latest"

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 512

// Client fetches driver data from OpenF1.
type Client struct {
	baseURL    string
	session    string
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for upstream requests. The client
// is used as given; WithTimeout does not modify it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
// It has no effect when WithHTTPClient supplies the client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit caps outgoing requests per second. A non-positive value
// disables limiting.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
	}
}

// WithSession sets the session key queried upstream. An empty key keeps
// LatestSession.
func WithSession(key string) Option {
	return func(c *Client) {
		if key != "" {
			c.session = key
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: LatestSession,
		timeout: types.DefaultOpenF1Timeout,
		log:     slog.New(slog.DiscardHandler),
	}
	WithRateLimit(types.DefaultOpenF1Rate)(c)
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout:   c.timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return c
}

// get fetches baseURL/path?query and decodes the JSON array into out.
// Transport failures, non-2xx statuses and undecodable bodies all wrap
// types.ErrUpstream.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", types.ErrUpstream, path, err)
	}

	u := c.baseURL + "/" + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	began := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: fetch %s: %w", types.ErrUpstream, path, err)
	}
	defer resp.Body.Close()
	c.log.Debug("openf1 request", "path", path, "status", resp.StatusCode, "elapsed", time.Since(began))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.log.Warn("openf1 request failed", "path", path, "status", resp.StatusCode)
		return fmt.Errorf("%w: %s returned %d: %s", types.ErrUpstream, path, resp.StatusCode,
			strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", types.ErrUpstream, path, err)
	}
	return nil
}

func (c *Client) sessionQuery(driverNumber int) url.Values {
	q := url.Values{"session_key": {c.session}}
	if driverNumber > 0 {
		q.Set("driver_number", fmt.Sprint(driverNumber))
	}
	return q
}

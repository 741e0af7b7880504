// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the REST and streaming client for the chat backend.
//
// Every authenticated operation takes the bearer token explicitly; an empty
// token fails with ErrUnauthenticated before anything touches the network.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/jeranaias/sagechat-tui/internal/telemetry"
)

// Configuration constants.
const (
	// APIPrefix is joined to the base URL for every endpoint.
	APIPrefix = "/api/v1"

	// DefaultTimeout is the default timeout for non-streaming requests.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of retries for idempotent GETs.
	DefaultMaxRetries = 3

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay is the maximum delay for exponential backoff.
	retryMaxDelay = 10 * time.Second

	// MaxResponseSize bounds JSON response bodies.
	MaxResponseSize = 10 * 1024 * 1024
)

// Shared transports. Connection pooling is per process; clients differ only
// in their timeout.
var (
	sharedTransport = &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	sharedHTTPClient = &http.Client{
		Transport: sharedTransport,
		Timeout:   DefaultTimeout,
	}

	// No timeout for streaming; bounded by context and the idle watchdog.
	sharedStreamingClient = &http.Client{
		Transport: sharedTransport,
	}
)

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the chat backend. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	streamHTTP *http.Client
	maxRetries int
	backoff    time.Duration
	limiter    *rate.Limiter
	userAgent  string
	log        logrus.FieldLogger
	metrics    *telemetry.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the client used for both REST and streaming calls.
// Tests pass httptest.Server.Client() here.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
		c.streamHTTP = hc
	}
}

// WithTimeout sets the REST timeout. Streaming is unaffected.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			return
		}
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithMaxRetries sets the retry count for idempotent GETs.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithBackoff sets the base backoff delay between retries.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.backoff = d
	}
}

// WithRateLimit throttles outgoing requests. perSecond <= 0 disables it.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithMetrics records every call on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: sharedHTTPClient,
		streamHTTP: sharedStreamingClient,
		maxRetries: DefaultMaxRetries,
		backoff:    retryBaseDelay,
		limiter:    rate.NewLimiter(rate.Inf, 0),
		userAgent:  "sagechat",
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

func (c *Client) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.baseURL + APIPrefix + "/" + strings.Join(escaped, "/")
}

func (c *Client) newRequest(ctx context.Context, method, endpoint, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	c.setHeaders(req, token)
	return req, nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, endpoint, token string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, endpoint, token, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) setHeaders(req *http.Request, token string) {
	req.Header.Set("User-Agent", c.userAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// do sends req once through the rate limiter and records the outcome.
func (c *Client) do(hc *http.Client, op string, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}

	c.logRequest(op, req)
	start := time.Now()
	resp, err := hc.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.metrics.ObserveRequest(op, 0, duration)
		c.log.WithFields(logrus.Fields{"op": op, "duration": duration}).WithError(err).Warn("request failed")
		return nil, &NetworkError{Op: op, Err: err}
	}
	c.metrics.ObserveRequest(op, resp.StatusCode, duration)
	c.logResponse(op, resp, duration)
	return resp, nil
}

// doWithRetry retries transport failures and 5xx responses with exponential
// backoff. Only used for GETs, which carry no body.
func (c *Client) doWithRetry(ctx context.Context, op string, req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &NetworkError{Op: op, Err: ctx.Err()}
			case <-time.After(c.calculateBackoff(attempt - 1)):
			}
		}

		resp, err := c.do(c.httpClient, op, req.Clone(ctx))
		if err != nil {
			lastErr = err
			if !isRetryable(err) {
				return nil, err
			}
			continue
		}
		if resp.StatusCode < 500 || attempt == c.maxRetries {
			return resp, nil
		}
		drain(resp)
		lastErr = newRequestError(op, resp.StatusCode, nil)
	}
	return nil, lastErr
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	d := c.backoff << attempt
	if d > retryMaxDelay || d <= 0 {
		d = retryMaxDelay
	}
	return d
}

// isRetryable reports whether a transport failure may succeed on retry.
// Cancellation by the caller never is.
func isRetryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// getJSON performs an authenticated, retried GET and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, op, endpoint, token string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, token, nil)
	if err != nil {
		return err
	}
	resp, err := c.doWithRetry(ctx, op, req)
	if err != nil {
		return err
	}
	return decodeResponse(op, resp, out)
}

// sendJSON performs a single non-idempotent request and decodes into out
// when out is non-nil.
func (c *Client) sendJSON(ctx context.Context, op, method, endpoint, token string, payload, out any) error {
	req, err := c.newJSONRequest(ctx, method, endpoint, token, payload)
	if err != nil {
		return err
	}
	resp, err := c.do(c.httpClient, op, req)
	if err != nil {
		return err
	}
	return decodeResponse(op, resp, out)
}

func decodeResponse(op string, resp *http.Response, out any) error {
	defer resp.Body.Close()
	body, err := readResponse(resp)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newRequestError(op, resp.StatusCode, body)
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "%s: decode response", op)
	}
	return nil
}

func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if len(body) > MaxResponseSize {
		return nil, errors.Errorf("response exceeds %d bytes", MaxResponseSize)
	}
	return body, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	resp.Body.Close()
}

func (c *Client) logRequest(op string, req *http.Request) {
	c.log.WithFields(logrus.Fields{
		"op":     op,
		"method": req.Method,
		"path":   req.URL.Path,
	}).Debug("request")
}

func (c *Client) logResponse(op string, resp *http.Response, duration time.Duration) {
	entry := c.log.WithFields(logrus.Fields{
		"op":       op,
		"status":   resp.StatusCode,
		"duration": duration.Round(time.Millisecond),
	})
	if resp.StatusCode >= 400 {
		entry.Warn("response")
		return
	}
	entry.Debug("response")
}

func requireToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrUnauthenticated
	}
	return nil
}

// Copyright (C) 2026 OpenMobility contributors (dev@openmobility.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sparql provides a resilient SPARQL 1.1 Protocol client with retry
// with backoff, a circuit breaker, and request rate limiting.
//
// Features:
//   - Per-query timeout via context
//   - Exponential backoff with jitter for retries
//   - Circuit breaker to stop hammering a failing endpoint
//   - Client-side rate limiting for polite endpoint usage
//   - Prometheus metrics and OpenTelemetry tracing
//
// Failures are always returned as error values; the client never panics
// into callers.
package sparql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrEndpointUnavailable is returned when the endpoint could not be
	// reached or rejected the query after all retry attempts.
	ErrEndpointUnavailable = errors.New("sparql endpoint is not available")

	// ErrCircuitOpen is returned when the circuit breaker is open and
	// queries are blocked.
	ErrCircuitOpen = errors.New("circuit breaker is open, sparql queries blocked")

	// ErrMalformedResult is returned when the endpoint response is missing
	// expected fields. Callers treat it like a transport failure.
	ErrMalformedResult = errors.New("malformed sparql result")
)

// -----------------------------------------------------------------------------
// Metrics
// -----------------------------------------------------------------------------

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dcatlens_sparql_queries_total",
		Help: "Total SPARQL queries by outcome",
	}, []string{"outcome"})

	queryLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dcatlens_sparql_query_duration_seconds",
		Help:    "SPARQL query latency including retries",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dcatlens_sparql_retries_total",
		Help: "Total SPARQL query retry attempts",
	})
)

var tracer = otel.Tracer("sparql.client")

// -----------------------------------------------------------------------------
// Querier contract
// -----------------------------------------------------------------------------

// Querier executes SELECT queries against a SPARQL endpoint. It is the
// seam between the audit engine and the transport; tests substitute an
// in-memory implementation.
type Querier interface {
	// Select runs a SELECT query and returns the solution rows.
	Select(ctx context.Context, query string) (*ResultSet, error)
}

// HTTPClient allows injecting mock HTTP clients for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// -----------------------------------------------------------------------------
// Client configuration
// -----------------------------------------------------------------------------

// ClientConfig configures the resilient SPARQL client.
type ClientConfig struct {
	// EndpointURL is the SPARQL endpoint (e.g. "http://localhost:8890/sparql").
	EndpointURL string

	// QueryTimeout bounds a single query attempt.
	// Default: 30s
	QueryTimeout time.Duration

	// RetryAttempts is the number of retries after the first failure.
	// Default: 2
	RetryAttempts int

	// RetryBackoff is the initial backoff duration between retries.
	// Default: 200ms
	RetryBackoff time.Duration

	// MaxRetryBackoff caps the exponential backoff.
	// Default: 5s
	MaxRetryBackoff time.Duration

	// RetryJitter adds randomness to backoff (0.0-1.0).
	// Default: 0.25
	RetryJitter float64

	// CircuitThreshold is the number of consecutive failures before the
	// circuit opens.
	// Default: 5
	CircuitThreshold int

	// CircuitCooldown is how long the circuit stays open before a single
	// half-open probe is allowed.
	// Default: 15s
	CircuitCooldown time.Duration

	// QueriesPerSecond rate-limits outgoing queries. Zero disables
	// client-side rate limiting.
	// Default: 10
	QueriesPerSecond float64

	// UserAgent is sent with every request.
	// Default: "dcatlens"
	UserAgent string

	// HTTPClient overrides the transport. Default: http.Client with
	// QueryTimeout.
	HTTPClient HTTPClient

	// Logger for client operations. Default: slog.Default()
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults for production use.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		QueryTimeout:     30 * time.Second,
		RetryAttempts:    2,
		RetryBackoff:     200 * time.Millisecond,
		MaxRetryBackoff:  5 * time.Second,
		RetryJitter:      0.25,
		CircuitThreshold: 5,
		CircuitCooldown:  15 * time.Second,
		QueriesPerSecond: 10,
		UserAgent:        "dcatlens",
		Logger:           slog.Default(),
	}
}

// Validate checks if the configuration is valid.
func (c *ClientConfig) Validate() error {
	if c.EndpointURL == "" {
		return errors.New("endpoint_url must not be empty")
	}
	if _, err := url.ParseRequestURI(c.EndpointURL); err != nil {
		return fmt.Errorf("endpoint_url is not a valid URL: %w", err)
	}
	if c.RetryAttempts < 0 {
		return errors.New("retry_attempts must be non-negative")
	}
	if c.RetryJitter < 0 || c.RetryJitter > 1 {
		return errors.New("retry_jitter must be between 0 and 1")
	}
	if c.CircuitThreshold < 1 {
		return errors.New("circuit_threshold must be at least 1")
	}
	if c.QueriesPerSecond < 0 {
		return errors.New("queries_per_second must be non-negative")
	}
	return nil
}

// applyDefaults fills in zero values with defaults.
func (c *ClientConfig) applyDefaults() {
	defaults := DefaultClientConfig()
	if c.QueryTimeout == 0 {
		c.QueryTimeout = defaults.QueryTimeout
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = defaults.RetryBackoff
	}
	if c.MaxRetryBackoff == 0 {
		c.MaxRetryBackoff = defaults.MaxRetryBackoff
	}
	if c.RetryJitter == 0 {
		c.RetryJitter = defaults.RetryJitter
	}
	if c.CircuitThreshold == 0 {
		c.CircuitThreshold = defaults.CircuitThreshold
	}
	if c.CircuitCooldown == 0 {
		c.CircuitCooldown = defaults.CircuitCooldown
	}
	if c.UserAgent == "" {
		c.UserAgent = defaults.UserAgent
	}
	if c.Logger == nil {
		c.Logger = defaults.Logger
	}
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

// Client is a resilient SPARQL endpoint client.
//
// # Thread Safety
//
// Safe for concurrent use. Circuit breaker state is guarded by a mutex;
// the rate limiter and http.Client are concurrency-safe.
type Client struct {
	config  ClientConfig
	http    HTTPClient
	limiter *rate.Limiter

	mu           sync.Mutex
	failures     int
	circuitOpen  bool
	openedAt     time.Time
	halfOpenBusy bool
}

// NewClient creates a resilient SPARQL client.
func NewClient(config ClientConfig) (*Client, error) {
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sparql client config: %w", err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.QueryTimeout}
	}

	var limiter *rate.Limiter
	if config.QueriesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.QueriesPerSecond), 1)
	}

	return &Client{
		config:  config,
		http:    httpClient,
		limiter: limiter,
	}, nil
}

// Select runs a SELECT query against the endpoint, retrying transient
// failures with jittered exponential backoff.
func (c *Client) Select(ctx context.Context, query string) (*ResultSet, error) {
	ctx, span := tracer.Start(ctx, "sparql.Select",
		trace.WithAttributes(
			attribute.String("endpoint", c.config.EndpointURL),
			attribute.Int("query_length", len(query)),
		),
	)
	defer span.End()

	if err := c.allowRequest(); err != nil {
		queriesTotal.WithLabelValues("circuit_open").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	start := time.Now()
	defer func() { queryLatency.Observe(time.Since(start).Seconds()) }()

	var lastErr error
	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			retriesTotal.Inc()
			if err := c.sleepBackoff(ctx, attempt); err != nil {
				lastErr = err
				break
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				lastErr = err
				break
			}
		}

		rs, err := c.doQuery(ctx, query)
		if err == nil {
			c.recordSuccess()
			queriesTotal.WithLabelValues("success").Inc()
			span.SetAttributes(attribute.Int("rows", len(rs.Rows)))
			return rs, nil
		}

		lastErr = err
		c.config.Logger.Warn("sparql query attempt failed",
			"attempt", attempt+1,
			"max_attempts", c.config.RetryAttempts+1,
			"error", err.Error(),
		)

		// Context expiry is not retryable.
		if ctx.Err() != nil {
			break
		}
	}

	c.recordFailure()
	queriesTotal.WithLabelValues("failure").Inc()
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())

	if errors.Is(lastErr, ErrMalformedResult) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %v", ErrEndpointUnavailable, lastErr)
}

// doQuery performs one SPARQL Protocol request.
func (c *Client) doQuery(ctx context.Context, query string) (*ResultSet, error) {
	form := url.Values{"query": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.EndpointURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/sparql-results+json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}

	return decodeResults(resp.Body)
}

// sleepBackoff waits for the jittered exponential backoff of the given
// attempt, or returns early when the context expires.
func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	backoff := c.config.RetryBackoff * time.Duration(1<<(attempt-1))
	if backoff > c.config.MaxRetryBackoff {
		backoff = c.config.MaxRetryBackoff
	}
	if c.config.RetryJitter > 0 {
		jitter := 1 + c.config.RetryJitter*(2*rand.Float64()-1)
		backoff = time.Duration(float64(backoff) * jitter)
	}

	select {
	case <-time.After(backoff):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// allowRequest checks the circuit breaker. When the cooldown has elapsed a
// single half-open probe is admitted; everything else is rejected until the
// probe succeeds.
func (c *Client) allowRequest() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.circuitOpen {
		return nil
	}
	if time.Since(c.openedAt) < c.config.CircuitCooldown {
		return ErrCircuitOpen
	}
	if c.halfOpenBusy {
		return ErrCircuitOpen
	}
	c.halfOpenBusy = true
	return nil
}

// recordSuccess closes the circuit and resets the failure count.
func (c *Client) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.circuitOpen {
		c.config.Logger.Info("sparql circuit closed after successful probe")
	}
	c.failures = 0
	c.circuitOpen = false
	c.halfOpenBusy = false
}

// recordFailure counts a failure and opens the circuit at the threshold.
func (c *Client) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failures++
	c.halfOpenBusy = false
	if c.failures >= c.config.CircuitThreshold && !c.circuitOpen {
		c.circuitOpen = true
		c.openedAt = time.Now()
		c.config.Logger.Warn("sparql circuit opened",
			"failures", c.failures,
			"cooldown", c.config.CircuitCooldown.String(),
		)
	} else if c.circuitOpen {
		// Failed half-open probe: restart the cooldown.
		c.openedAt = time.Now()
	}
}

// Package client provides the resilient HTTP fetcher used by the archiver:
// JSON GET requests with proactive pacing, optional response caching,
// transient-error retries and error classification.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/pldata/f1-archive/pkg/cache"
	"github.com/pldata/f1-archive/pkg/logging"
	"github.com/pldata/f1-archive/pkg/ratelimit"
)

// Prometheus metrics for fetch operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "f1_requests_total",
		Help: "Total upstream requests by route and status",
	}, []string{"route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "f1_request_duration_seconds",
		Help:    "Upstream request duration in seconds by route",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"route"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "f1_errors_total",
		Help: "Total fetch errors by class",
	}, []string{"class"})
)

// bodySnippetLimit bounds how much of an error body is carried in errors
// and logs for diagnostics.
const bodySnippetLimit = 300

// Config holds the fetcher configuration.
type Config struct {
	// BaseURL is the upstream API root, without a trailing slash.
	BaseURL string

	// Headers are sent with every request (auth headers live here; the
	// fetcher itself does not know which upstream it talks to).
	Headers map[string]string

	// UserAgent identifies the archiver to the upstream.
	UserAgent string

	// Timeout bounds a single request attempt.
	Timeout time.Duration

	// Pacer applies the proactive inter-request delay. Nil disables pacing.
	Pacer *ratelimit.Pacer

	// Cache is the optional response cache. Nil disables caching.
	Cache *cache.Manager

	// CacheTTL is how long cached responses stay fresh.
	CacheTTL time.Duration

	// Retry tunes the transient-error retry policy.
	Retry RetryConfig
}

// Client fetches JSON resources from one upstream API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
	userAgent  string
	pacer      *ratelimit.Pacer
	cache      *cache.Manager
	cacheTTL   time.Duration
	retry      RetryConfig
	logger     zerolog.Logger
}

// New creates a fetcher for one upstream API.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 6 * time.Hour
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		headers:   cfg.Headers,
		userAgent: cfg.UserAgent,
		pacer:     cfg.Pacer,
		cache:     cfg.Cache,
		cacheTTL:  cfg.CacheTTL,
		retry:     cfg.Retry,
		logger:    logging.NewLogger("fetcher"),
	}, nil
}

// GetJSON fetches one route and returns the raw JSON body.
//
// 2xx responses must carry valid JSON; anything else is a permanent error.
// 429 and 5xx responses are retried with exponential backoff, honoring a
// Retry-After header when the upstream sends one. Other 4xx statuses fail
// fast with a body snippet for diagnostics.
func (c *Client) GetJSON(ctx context.Context, route string, params url.Values) ([]byte, error) {
	route = strings.Trim(route, "/")

	key := cache.Key{Route: route, Params: params}
	if c.cache != nil {
		entry, err := c.cache.Get(ctx, key)
		if err == nil {
			c.logger.Debug().
				Str("route", route).
				Time("fetched_at", entry.FetchedAt).
				Msg("Response cache hit")
			return entry.Data, nil
		}
		if err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Str("route", route).Msg("Cache get error")
		}
	}

	requestURL := c.baseURL + "/" + route
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}()

	var body []byte
	err := retryWithBackoff(ctx, c.retry, c.logger, func() error {
		// Pace every attempt, retries included, to stay under the
		// upstream rate limit proactively.
		if err := c.pacer.Wait(ctx); err != nil {
			return err
		}
		return c.doAttempt(ctx, route, requestURL, &body)
	})
	if err != nil {
		errorsTotal.WithLabelValues(string(classify(err))).Inc()
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, cache.NewEntry(body, c.cacheTTL)); err != nil {
			c.logger.Warn().Err(err).Str("route", route).Msg("Failed to cache response")
		}
	}

	return body, nil
}

// doAttempt issues a single GET and validates the response.
func (c *Client) doAttempt(ctx context.Context, route, requestURL string, body *[]byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for name, value := range c.headers {
		req.Header.Set(name, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(route, "network_error").Inc()
		c.logger.Error().Err(err).Str("url", requestURL).Msg("HTTP request failed")
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		requestsTotal.WithLabelValues(route, "network_error").Inc()
		return fmt.Errorf("read response body: %w", err)
	}

	requestsTotal.WithLabelValues(route, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{
			StatusCode: resp.StatusCode,
			URL:        requestURL,
			RetryAfter: parseRetryAfter(resp.Header),
			Body:       snippet(raw),
		}
	}

	if !json.Valid(raw) {
		// HTML bodies here usually mean an auth or host problem, not a
		// transient upstream failure.
		return fmt.Errorf("%w from %s (status %d): %s",
			ErrInvalidJSON, requestURL, resp.StatusCode, snippet(raw))
	}

	*body = raw
	return nil
}

// parseRetryAfter reads a Retry-After header as seconds. Malformed or
// absent values yield zero, falling back to exponential backoff.
func parseRetryAfter(headers http.Header) time.Duration {
	value := headers.Get("Retry-After")
	if value == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// snippet truncates a response body for diagnostics.
func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > bodySnippetLimit {
		return s[:bodySnippetLimit]
	}
	return s
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

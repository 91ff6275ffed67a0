package client

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Common errors returned by the fetcher.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrInvalidJSON is returned when a 2xx response body is not valid JSON.
	// This is permanent: retrying a malformed upstream response is pointless.
	ErrInvalidJSON = errors.New("invalid JSON response")
)

// ErrorClass represents a classification of fetch errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors (except 429) and
	// malformed response bodies. Never retried.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents HTTP 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// HTTPError represents a non-2xx upstream response.
type HTTPError struct {
	StatusCode int
	URL        string

	// RetryAfter is the parsed Retry-After header value, zero when absent.
	RetryAfter time.Duration

	// Body is a truncated body snippet kept for diagnostics.
	Body string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d for %s: %s", e.StatusCode, e.URL, e.Body)
	}
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// Class returns the error class for this status code.
func (e *HTTPError) Class() ErrorClass {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case e.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// classify categorizes an error for retry decisions and observability.
func classify(err error) ErrorClass {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Class()
	}
	if errors.Is(err, ErrInvalidJSON) {
		return ErrorClassClient
	}
	return ErrorClassNetwork
}

// shouldRetry determines if an error class is transient.
// Only 429, 5xx and network-level failures are retried; everything else
// fails fast so a misconfigured run surfaces immediately.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassRateLimit, ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// retryAfterOf extracts an upstream-mandated wait from an error, if any.
func retryAfterOf(err error) time.Duration {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.RetryAfter
	}
	return 0
}

package client

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestHTTPError_Error(t *testing.T) {
	err := &HTTPError{
		StatusCode: 404,
		URL:        "https://example.test/races",
		Body:       `{"message": "not found"}`,
	}

	msg := err.Error()
	if !strings.Contains(msg, "404") {
		t.Errorf("Error message should contain status code: %s", msg)
	}
	if !strings.Contains(msg, "not found") {
		t.Errorf("Error message should surface the body snippet: %s", msg)
	}
}

func TestHTTPError_Class(t *testing.T) {
	tests := []struct {
		status   int
		expected ErrorClass
	}{
		{429, ErrorClassRateLimit},
		{500, ErrorClassServer},
		{502, ErrorClassServer},
		{503, ErrorClassServer},
		{400, ErrorClassClient},
		{401, ErrorClassClient},
		{404, ErrorClassClient},
	}

	for _, tt := range tests {
		err := &HTTPError{StatusCode: tt.status}
		if got := err.Class(); got != tt.expected {
			t.Errorf("Class() for status %d = %s, want %s", tt.status, got, tt.expected)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{
			name:     "rate limit",
			err:      &HTTPError{StatusCode: 429},
			expected: ErrorClassRateLimit,
		},
		{
			name:     "server error",
			err:      &HTTPError{StatusCode: 503},
			expected: ErrorClassServer,
		},
		{
			name:     "client error",
			err:      &HTTPError{StatusCode: 403},
			expected: ErrorClassClient,
		},
		{
			name:     "wrapped http error",
			err:      fmt.Errorf("job races: %w", &HTTPError{StatusCode: 429}),
			expected: ErrorClassRateLimit,
		},
		{
			name:     "invalid JSON is permanent",
			err:      fmt.Errorf("%w from somewhere", ErrInvalidJSON),
			expected: ErrorClassClient,
		},
		{
			name:     "anything else is network",
			err:      errors.New("connection refused"),
			expected: ErrorClassNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.expected {
				t.Errorf("classify() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected bool
	}{
		{ErrorClassRateLimit, true},
		{ErrorClassServer, true},
		{ErrorClassNetwork, true},
		{ErrorClassClient, false},
		{"", false},
	}

	for _, tt := range tests {
		if got := shouldRetry(tt.class); got != tt.expected {
			t.Errorf("shouldRetry(%s) = %v, want %v", tt.class, got, tt.expected)
		}
	}
}

func TestRetryAfterOf(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &HTTPError{StatusCode: 429, RetryAfter: 2 * time.Second})
	if got := retryAfterOf(err); got != 2*time.Second {
		t.Errorf("retryAfterOf = %v, want 2s", got)
	}

	if got := retryAfterOf(errors.New("plain")); got != 0 {
		t.Errorf("retryAfterOf for non-HTTP error = %v, want 0", got)
	}
}

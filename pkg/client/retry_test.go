package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fastRetryConfig keeps retry tests quick.
func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        500 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 4 {
		t.Errorf("MaxAttempts = %d, want 4", config.MaxAttempts)
	}
	if config.InitialBackoff != 1*time.Second {
		t.Errorf("InitialBackoff = %v, want 1s", config.InitialBackoff)
	}
	if config.MaxBackoff != 60*time.Second {
		t.Errorf("MaxBackoff = %v, want 60s", config.MaxBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	callCount := 0
	fn := func() error {
		callCount++
		return nil
	}

	err := retryWithBackoff(context.Background(), fastRetryConfig(), zerolog.Nop(), fn)

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_SuccessAfterRetry(t *testing.T) {
	callCount := 0
	fn := func() error {
		callCount++
		if callCount < 3 {
			return &HTTPError{StatusCode: 503}
		}
		return nil
	}

	start := time.Now()
	err := retryWithBackoff(context.Background(), fastRetryConfig(), zerolog.Nop(), fn)
	duration := time.Since(start)

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
	// Two waits: ~50ms then ~100ms, with ±20% jitter.
	if duration < 100*time.Millisecond {
		t.Errorf("Expected some backoff delay, got %v", duration)
	}
}

func TestRetryWithBackoff_MaxAttemptsExhausted(t *testing.T) {
	callCount := 0
	fn := func() error {
		callCount++
		return &HTTPError{StatusCode: 500}
	}

	err := retryWithBackoff(context.Background(), fastRetryConfig(), zerolog.Nop(), fn)

	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls (MaxAttempts), got %d", callCount)
	}
}

func TestRetryWithBackoff_ClientErrorFailsFast(t *testing.T) {
	callCount := 0
	testErr := &HTTPError{StatusCode: 404}
	fn := func() error {
		callCount++
		return testErr
	}

	start := time.Now()
	err := retryWithBackoff(context.Background(), fastRetryConfig(), zerolog.Nop(), fn)
	duration := time.Since(start)

	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call (no retry for client errors), got %d", callCount)
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("Should not wrap ErrRetryExhausted when no retry was attempted")
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 404 {
		t.Errorf("Expected original error, got %v", err)
	}
	// Fail fast means no sleeping at all.
	if duration > 30*time.Millisecond {
		t.Errorf("Fail-fast path slept for %v", duration)
	}
}

func TestRetryWithBackoff_InvalidJSONFailsFast(t *testing.T) {
	callCount := 0
	fn := func() error {
		callCount++
		return ErrInvalidJSON
	}

	err := retryWithBackoff(context.Background(), fastRetryConfig(), zerolog.Nop(), fn)

	if !errors.Is(err, ErrInvalidJSON) {
		t.Errorf("Expected ErrInvalidJSON, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_HonorsRetryAfter(t *testing.T) {
	retryAfter := 200 * time.Millisecond

	callCount := 0
	fn := func() error {
		callCount++
		if callCount == 1 {
			return &HTTPError{StatusCode: 429, RetryAfter: retryAfter}
		}
		return nil
	}

	start := time.Now()
	err := retryWithBackoff(context.Background(), fastRetryConfig(), zerolog.Nop(), fn)
	duration := time.Since(start)

	if err != nil {
		t.Fatalf("Expected success after retry, got %v", err)
	}
	if callCount != 2 {
		t.Errorf("Expected 2 calls, got %d", callCount)
	}
	// The upstream-mandated wait wins over the 50ms backoff schedule.
	if duration < retryAfter {
		t.Errorf("Waited %v, expected at least the Retry-After value %v", duration, retryAfter)
	}
}

func TestRetryWithBackoff_ExponentialGrowth(t *testing.T) {
	timestamps := []time.Time{}
	fn := func() error {
		timestamps = append(timestamps, time.Now())
		return &HTTPError{StatusCode: 500}
	}

	_ = retryWithBackoff(context.Background(), fastRetryConfig(), zerolog.Nop(), fn)

	if len(timestamps) != 3 {
		t.Fatalf("Expected 3 timestamps, got %d", len(timestamps))
	}

	firstDelay := timestamps[1].Sub(timestamps[0])
	secondDelay := timestamps[2].Sub(timestamps[1])

	// With ±20% jitter: first delay in [40ms, 60ms], second in [80ms, 120ms].
	if firstDelay < 30*time.Millisecond || firstDelay > 100*time.Millisecond {
		t.Errorf("First retry delay %v outside expected range", firstDelay)
	}
	if secondDelay < 70*time.Millisecond || secondDelay > 200*time.Millisecond {
		t.Errorf("Second retry delay %v outside expected range", secondDelay)
	}
	// The schedule strictly grows between attempts.
	if secondDelay <= firstDelay {
		t.Errorf("Second delay (%v) should exceed first (%v)", secondDelay, firstDelay)
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	callCount := 0
	fn := func() error {
		callCount++
		if callCount == 1 {
			cancel()
		}
		return &HTTPError{StatusCode: 500}
	}

	err := retryWithBackoff(ctx, fastRetryConfig(), zerolog.Nop(), fn)

	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("Expected ErrContextCancelled, got %v", err)
	}
	if callCount >= 3 {
		t.Errorf("Expected fewer than 3 calls due to cancellation, got %d", callCount)
	}
}

func TestRetryWithBackoff_MaxBackoffCap(t *testing.T) {
	config := RetryConfig{
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        3 * time.Second,
		BackoffMultiplier: 10.0,
	}

	backoff := config.InitialBackoff
	for i := 0; i < 3; i++ {
		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	if backoff != config.MaxBackoff {
		t.Errorf("Expected backoff to cap at %v, got %v", config.MaxBackoff, backoff)
	}
}

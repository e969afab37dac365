package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(maxAttempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       maxAttempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
		Jitter:            false,
	}
}

func TestRetry_Success(t *testing.T) {
	calls := 0
	attempts, err := Retry(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	}, fastConfig(3), nil)

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if calls != 1 || attempts != 1 {
		t.Errorf("Expected 1 attempt, got calls=%d attempts=%d", calls, attempts)
	}
}

func TestRetry_FailureThenSuccess(t *testing.T) {
	calls := 0
	attempts, err := Retry(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, fastConfig(3), nil)

	if err != nil {
		t.Errorf("Expected no error after retries, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_MaxAttempts(t *testing.T) {
	calls := 0
	attempts, err := Retry(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("persistent error")
	}, fastConfig(2), nil)

	if err == nil {
		t.Error("Expected error after max attempts")
	}
	if calls != 2 || attempts != 2 {
		t.Errorf("Expected 2 attempts, got calls=%d attempts=%d", calls, attempts)
	}
}

func TestRetry_NonRetryableError(t *testing.T) {
	calls := 0
	isRetryable := func(err error) bool {
		return false
	}

	_, err := Retry(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("non-retryable error")
	}, fastConfig(3), isRetryable)

	if err == nil {
		t.Error("Expected error")
	}
	if calls != 1 {
		t.Errorf("Expected 1 attempt for non-retryable error, got %d", calls)
	}
}

func TestRetry_OnRetry(t *testing.T) {
	var seen []int
	config := fastConfig(3)
	config.OnRetry = func(attempt int, err error, backoff time.Duration) {
		seen = append(seen, attempt)
	}

	_, _ = Retry(context.Background(), func(ctx context.Context) error {
		return errors.New("always")
	}, config, nil)

	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("Expected OnRetry for attempts [1 2], got %v", seen)
	}
}

func TestRetry_ExponentialBackoff(t *testing.T) {
	var backoffs []time.Duration
	config := &RetryConfig{
		MaxAttempts:       4,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        3 * time.Millisecond,
		BackoffMultiplier: 2,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			backoffs = append(backoffs, backoff)
		},
	}

	_, _ = Retry(context.Background(), func(ctx context.Context) error {
		return errors.New("always")
	}, config, nil)

	want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}
	if len(backoffs) != len(want) {
		t.Fatalf("Expected backoffs %v, got %v", want, backoffs)
	}
	for i := range want {
		if backoffs[i] != want[i] {
			t.Errorf("Expected backoffs %v, got %v", want, backoffs)
		}
	}
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := &RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    time.Second,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 1,
	}

	calls := 0
	start := time.Now()
	_, err := Retry(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("failing")
	}, config, nil)

	if err == nil {
		t.Error("Expected error")
	}
	if calls != 1 {
		t.Errorf("Expected a single attempt after cancellation, got %d", calls)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Expected cancellation to interrupt the backoff sleep")
	}
}

func TestRetry_ContextAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	attempts, err := Retry(ctx, func(ctx context.Context) error {
		calls++
		return nil
	}, fastConfig(3), nil)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if calls != 0 || attempts != 0 {
		t.Errorf("Expected no attempts, got calls=%d attempts=%d", calls, attempts)
	}
}

func TestIsRetryableNetworkError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"connection refused", errors.New("connection refused"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"unavailable", errors.New("Service Unavailable"), true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"timeout", errors.New("i/o timeout"), true},
		{"rate limit", errors.New("rate limit reached"), true},
		{"other error", errors.New("other error"), false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsRetryableNetworkError(tt.err)
			if result != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		attempt        int
		initialBackoff time.Duration
		maxBackoff     time.Duration
		multiplier     float64
		expected       time.Duration
	}{
		{0, 100 * time.Millisecond, 1 * time.Second, 2.0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond, 1 * time.Second, 2.0, 200 * time.Millisecond},
		{2, 100 * time.Millisecond, 1 * time.Second, 2.0, 400 * time.Millisecond},
		{5, 100 * time.Millisecond, 1 * time.Second, 2.0, 1 * time.Second}, // Capped at max
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			backoff := CalculateBackoff(tt.attempt, tt.initialBackoff, tt.maxBackoff, tt.multiplier)
			if backoff != tt.expected {
				t.Errorf("Expected backoff %v, got %v", tt.expected, backoff)
			}
		})
	}
}

func TestCalculateBackoff_Uncapped(t *testing.T) {
	if got := CalculateBackoff(3, 10*time.Millisecond, 0, 2.0); got != 80*time.Millisecond {
		t.Errorf("Expected 80ms without a cap, got %v", got)
	}
}

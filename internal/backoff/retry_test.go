package backoff

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/aws/smithy-go"
	"github.com/sashabaranov/go-openai"
)

var errUnavailable = &StatusError{Provider: "test", StatusCode: 503, Body: "unavailable"}

func fastOptions(attempts int) Options {
	return Options{
		Policy:      Policy{InitialMs: 1, MaxMs: 5, Factor: 2, Jitter: 0},
		MaxAttempts: attempts,
	}
}

func TestComputeBackoffWithRand(t *testing.T) {
	tests := []struct {
		name        string
		policy      Policy
		attempt     int
		randomValue float64
		expected    time.Duration
	}{
		{
			name:     "first attempt uses initial delay",
			policy:   Policy{InitialMs: 100, MaxMs: 10000, Factor: 2},
			attempt:  1,
			expected: 100 * time.Millisecond,
		},
		{
			name:     "third attempt quadruples",
			policy:   Policy{InitialMs: 100, MaxMs: 10000, Factor: 2},
			attempt:  3,
			expected: 400 * time.Millisecond,
		},
		{
			name:     "clamped to max",
			policy:   Policy{InitialMs: 100, MaxMs: 250, Factor: 2},
			attempt:  4,
			expected: 250 * time.Millisecond,
		},
		{
			name:        "jitter adds a fraction of base",
			policy:      Policy{InitialMs: 100, MaxMs: 10000, Factor: 2, Jitter: 0.5},
			attempt:     1,
			randomValue: 0.5,
			expected:    125 * time.Millisecond,
		},
		{
			name:     "attempt zero treated as first",
			policy:   Policy{InitialMs: 100, MaxMs: 10000, Factor: 2},
			attempt:  0,
			expected: 100 * time.Millisecond,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeBackoffWithRand(tt.policy, tt.attempt, tt.randomValue)
			if got != tt.expected {
				t.Errorf("ComputeBackoffWithRand() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	var calls int32
	var retries int32
	opts := fastOptions(5)
	opts.OnRetry = func(int, error, time.Duration) { atomic.AddInt32(&retries, 1) }

	result, err := Do(context.Background(), opts, func(_ context.Context, attempt int) (int, error) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return 0, errUnavailable
		}
		return attempt, nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if result.Value != 3 || result.Attempts != 3 {
		t.Errorf("result = %+v, want value 3 after 3 attempts", result)
	}
	if atomic.LoadInt32(&retries) != 2 {
		t.Errorf("OnRetry called %d times, want 2", retries)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	var calls int32
	_, err := Do(context.Background(), fastOptions(3), func(context.Context, int) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", errUnavailable
	})
	if !errors.Is(err, ErrMaxAttemptsExhausted) {
		t.Fatalf("error = %v, want ErrMaxAttemptsExhausted", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Errorf("error should wrap the last error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "permanent", err: Permanent(errUnavailable)},
		{name: "bad request", err: &StatusError{Provider: "test", StatusCode: 400}},
		{name: "unclassified", err: errors.New("boom")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			_, err := Do(context.Background(), fastOptions(5), func(context.Context, int) (int, error) {
				atomic.AddInt32(&calls, 1)
				return 0, tt.err
			})
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, ErrMaxAttemptsExhausted) {
				t.Errorf("non-retryable error reported as exhausted: %v", err)
			}
			if calls != 1 {
				t.Errorf("calls = %d, want 1", calls)
			}
		})
	}
}

func TestDo_PerAttemptTimeout(t *testing.T) {
	opts := fastOptions(2)
	opts.Timeout = 10 * time.Millisecond
	var calls int32
	_, err := Do(context.Background(), opts, func(ctx context.Context, _ int) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(err, ErrMaxAttemptsExhausted) {
		t.Fatalf("error = %v, want exhausted after timeouts", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error should wrap deadline exceeded: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Do(ctx, fastOptions(3), func(context.Context, int) (int, error) {
		t.Fatal("fn should not be called")
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Reason
	}{
		{name: "nil", err: nil, want: ReasonUnknown},
		{name: "deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: ReasonTimeout},
		{name: "canceled", err: context.Canceled, want: ReasonCanceled},
		{name: "permanent", err: Permanent(errUnavailable), want: ReasonPermanent},
		{name: "http 429", err: &StatusError{StatusCode: 429}, want: ReasonRateLimit},
		{name: "http 502", err: &StatusError{StatusCode: 502}, want: ReasonServerError},
		{name: "http 401", err: &StatusError{StatusCode: 401}, want: ReasonAuth},
		{name: "http 422", err: &StatusError{StatusCode: 422}, want: ReasonInvalidRequest},
		{name: "openai api error", err: fmt.Errorf("embed: %w", &openai.APIError{HTTPStatusCode: 429, Message: "slow down"}), want: ReasonRateLimit},
		{name: "openai request error", err: &openai.RequestError{HTTPStatusCode: 500, Err: errors.New("oops")}, want: ReasonServerError},
		{name: "anthropic overloaded", err: &anthropic.Error{StatusCode: 529}, want: ReasonServerError},
		{name: "aws throttling", err: &smithy.GenericAPIError{Code: "ThrottlingException", Message: "rate"}, want: ReasonRateLimit},
		{name: "aws validation", err: &smithy.GenericAPIError{Code: "ValidationException"}, want: ReasonInvalidRequest},
		{name: "message pattern", err: errors.New("upstream: Too Many Requests"), want: ReasonRateLimit},
		{name: "connection reset", err: errors.New("read: connection reset by peer"), want: ReasonServerError},
		{name: "unknown", err: errors.New("something odd"), want: ReasonUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestSleepWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := SleepWithContext(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("SleepWithContext() = %v, want context.Canceled", err)
	}
	if err := SleepWithContext(context.Background(), 0); err != nil {
		t.Errorf("SleepWithContext(0) = %v", err)
	}
}

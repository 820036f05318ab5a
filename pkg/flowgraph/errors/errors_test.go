package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"
	"time"
)

// AuthenticationError mimics a provider SDK error type.
type AuthenticationError struct{ msg string }

func (e *AuthenticationError) Error() string { return e.msg }

// RateLimitError mimics a provider SDK error type.
type RateLimitError struct{}

func (e *RateLimitError) Error() string { return "slow down" }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"nil", nil, CategoryGeneric},
		{"expired token", errors.New("ExpiredToken: the security token has expired"), CategoryExpiredToken},
		{"invalid grant", errors.New("oauth2: invalid_grant"), CategoryExpiredToken},
		{"expired beats 401", &HTTPError{StatusCode: 401, Message: "token expired"}, CategoryExpiredToken},
		{"http 401", &HTTPError{StatusCode: 401, Message: "bad key"}, CategoryAuthentication},
		{"http 403", &HTTPError{StatusCode: 403, Message: "no"}, CategoryAuthentication},
		{"auth type name", &AuthenticationError{msg: "nope"}, CategoryAuthentication},
		{"forbidden message", errors.New("request forbidden by policy"), CategoryAuthentication},
		{"refused", &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, CategoryConnection},
		{"connection message", errors.New("lost connection to provider"), CategoryConnection},
		{"deadline", context.DeadlineExceeded, CategoryTimeout},
		{"wrapped deadline", fmt.Errorf("classify: %w", context.DeadlineExceeded), CategoryTimeout},
		{"timeout type", &TimeoutError{Operation: "fetch", Duration: 30 * time.Second}, CategoryTimeout},
		{"timeout message any case", errors.New("read Timeout"), CategoryTimeout},
		{"http 504", &HTTPError{StatusCode: 504, Message: "gateway"}, CategoryTimeout},
		{"http 429", &HTTPError{StatusCode: 429, Message: "quota"}, CategoryRateLimit},
		{"rate limit type", &RateLimitError{}, CategoryRateLimit},
		{"rate limit message", errors.New("too many requests"), CategoryRateLimit},
		{"validation", &ValidationError{Field: "archetype", Message: "not in enum"}, CategoryInvalidRequest},
		{"json parse", &JSONParseError{Message: "unexpected end"}, CategoryInvalidRequest},
		{"http 400", &HTTPError{StatusCode: 400, Message: "bad"}, CategoryInvalidRequest},
		{"http 500", &HTTPError{StatusCode: 500, Message: "oops"}, CategoryGeneric},
		{"unknown", errors.New("something odd"), CategoryGeneric},
		{"cancelled", context.Canceled, CategoryGeneric},
		{"pinned", WithCategory(errors.New("connection reset"), CategoryRateLimit), CategoryRateLimit},
		{"joined", errors.Join(errors.New("a"), &TimeoutError{}), CategoryTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestCategoryMessages(t *testing.T) {
	tests := []struct {
		category Category
		name     string
		message  string
	}{
		{CategoryExpiredToken, "expired_token", "LLM credentials have expired."},
		{CategoryAuthentication, "authentication", "Authentication failed."},
		{CategoryConnection, "connection", "Connection error occurred."},
		{CategoryTimeout, "timeout", "Request timed out."},
		{CategoryRateLimit, "rate_limit", "Rate limit exceeded."},
		{CategoryInvalidRequest, "invalid_request", "Invalid request to LLM provider."},
		{CategoryGeneric, "generic", "An error occurred."},
		{Category(99), "generic", "An error occurred."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.category.String(); got != tt.name {
				t.Errorf("String() = %s, want %s", got, tt.name)
			}
			if got := tt.category.Message(); got != tt.message {
				t.Errorf("Message() = %s, want %s", got, tt.message)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	got := UserMessage(fmt.Errorf("stats agent: %w", &HTTPError{StatusCode: 429}))
	if got != "Rate limit exceeded." {
		t.Errorf("UserMessage = %q", got)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(&HTTPError{StatusCode: 429}) {
		t.Error("rate limit should be retryable")
	}
	if !IsRetryable(context.DeadlineExceeded) {
		t.Error("timeout should be retryable")
	}
	if IsRetryable(&HTTPError{StatusCode: 401}) {
		t.Error("authentication should not be retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil should not be retryable")
	}
}

func TestErrorStrings(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&HTTPError{StatusCode: 404, Message: "not found"}, "HTTP 404: not found"},
		{&HTTPError{StatusCode: 500, Message: "boom", Endpoint: "/api/search"}, "HTTP 500 at /api/search: boom"},
		{&JSONParseError{Message: "eof"}, "JSON parse error: eof"},
		{&ValidationError{Message: "bad"}, "validation error: bad"},
		{&ValidationError{Field: "grade", Message: "bad"}, "validation error on grade: bad"},
		{&TimeoutError{Operation: "fetch", Duration: 30 * time.Second}, "timeout after 30s: fetch"},
		{&RetryError{Err: errors.New("x"), Attempts: 3, Reason: "max retries exceeded"}, "max retries exceeded after 3 attempt(s): x"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func fastRetry(attempts int) RetryConfig {
	return NewRetryConfig(
		WithMaxAttempts(attempts),
		WithInitialBackoff(time.Millisecond),
		WithMaxBackoff(2*time.Millisecond),
		WithJitter(0),
	)
}

func TestWithRetry(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		res := WithRetry(fastRetry(3), func() (string, error) {
			calls++
			if calls < 3 {
				return "", &HTTPError{StatusCode: 429}
			}
			return "ok", nil
		})
		if res.Err != nil || res.Value != "ok" || res.Attempts != 3 {
			t.Errorf("got %+v", res)
		}
	})

	t.Run("stops on permanent error", func(t *testing.T) {
		calls := 0
		res := WithRetry(fastRetry(3), func() (int, error) {
			calls++
			return 0, &HTTPError{StatusCode: 401}
		})
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
		var retryErr *RetryError
		if !errors.As(res.Err, &retryErr) || retryErr.Reason != "not retryable" {
			t.Errorf("err = %v", res.Err)
		}
		if Classify(res.Err) != CategoryAuthentication {
			t.Errorf("classification lost through RetryError: %s", Classify(res.Err))
		}
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		res := WithRetry(fastRetry(2), func() (int, error) {
			return 0, context.DeadlineExceeded
		})
		if res.Attempts != 2 || !errors.Is(res.Err, context.DeadlineExceeded) {
			t.Errorf("got %+v", res)
		}
	})

	t.Run("custom retryable func", func(t *testing.T) {
		calls := 0
		cfg := fastRetry(4)
		cfg.RetryableFunc = func(error) bool { return true }
		WithRetry(cfg, func() (int, error) {
			calls++
			return 0, errors.New("anything")
		})
		if calls != 4 {
			t.Errorf("calls = %d, want 4", calls)
		}
	})
}

func TestWithRetryContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	res := WithRetryContext(ctx, fastRetry(3), func(context.Context) (int, error) {
		called = true
		return 0, nil
	})
	if called {
		t.Error("fn called with cancelled context")
	}
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("err = %v", res.Err)
	}
}

func TestNewRetryConfig(t *testing.T) {
	cfg := NewRetryConfig(WithMaxAttempts(5), WithBackoffFactor(3))
	if cfg.MaxAttempts != 5 || cfg.BackoffFactor != 3 {
		t.Errorf("got %+v", cfg)
	}
	if cfg.InitialBackoff != DefaultRetry.InitialBackoff {
		t.Errorf("default initial backoff not kept: %v", cfg.InitialBackoff)
	}
	if NoRetry.MaxAttempts != 1 {
		t.Errorf("NoRetry.MaxAttempts = %d", NoRetry.MaxAttempts)
	}
}

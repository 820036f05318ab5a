// Package errors classifies failures into the small fixed set of categories
// shown to end users, and retries the ones that are worth retrying.
//
// Classification looks at typed errors first (HTTPError status codes,
// TimeoutError, context deadlines, net.Error) and then, like the provider
// SDKs' own error reporting, at the Go type names and message text of every
// error in the chain.
package errors

import (
	"context"
	"errors"
	"net"
	"reflect"
	"strings"
)

// Category is a user-facing failure class.
type Category int

const (
	// CategoryGeneric is anything not matched by a more specific category.
	CategoryGeneric Category = iota

	// CategoryExpiredToken means provider credentials have expired.
	CategoryExpiredToken

	// CategoryAuthentication means the provider rejected the credentials.
	CategoryAuthentication

	// CategoryConnection means the provider could not be reached.
	CategoryConnection

	// CategoryTimeout means a call ran out of time.
	CategoryTimeout

	// CategoryRateLimit means the provider throttled the call.
	CategoryRateLimit

	// CategoryInvalidRequest means the request or its result failed validation.
	CategoryInvalidRequest
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryExpiredToken:
		return "expired_token"
	case CategoryAuthentication:
		return "authentication"
	case CategoryConnection:
		return "connection"
	case CategoryTimeout:
		return "timeout"
	case CategoryRateLimit:
		return "rate_limit"
	case CategoryInvalidRequest:
		return "invalid_request"
	default:
		return "generic"
	}
}

// Message returns the fixed text shown to end users.
func (c Category) Message() string {
	switch c {
	case CategoryExpiredToken:
		return "LLM credentials have expired."
	case CategoryAuthentication:
		return "Authentication failed."
	case CategoryConnection:
		return "Connection error occurred."
	case CategoryTimeout:
		return "Request timed out."
	case CategoryRateLimit:
		return "Rate limit exceeded."
	case CategoryInvalidRequest:
		return "Invalid request to LLM provider."
	default:
		return "An error occurred."
	}
}

// Transient reports whether a retry may succeed.
func (c Category) Transient() bool {
	return c == CategoryConnection || c == CategoryTimeout || c == CategoryRateLimit
}

// rule matches one category. Rules are evaluated in order; the first match wins.
type rule struct {
	category Category
	typed    func(err error) bool
	types    []string
	messages []string
	// lower matches messages case-insensitively.
	lower bool
}

var rules = []rule{
	{
		category: CategoryExpiredToken,
		messages: []string{"ExpiredToken", "InvalidToken", "expired", "invalid_grant"},
	},
	{
		category: CategoryAuthentication,
		typed:    hasStatus(401, 403),
		types:    []string{"AuthenticationError", "Unauthorized"},
		messages: []string{"401", "unauthorized", "forbidden"},
	},
	{
		category: CategoryConnection,
		typed:    isConnectionError,
		types:    []string{"ConnectionError", "NetworkError"},
		messages: []string{"connection", "network", "unreachable", "refused"},
	},
	{
		category: CategoryTimeout,
		typed:    isTimeout,
		types:    []string{"TimeoutError", "Timeout"},
		messages: []string{"timeout"},
		lower:    true,
	},
	{
		category: CategoryRateLimit,
		typed:    hasStatus(429),
		types:    []string{"RateLimitError"},
		messages: []string{"rate limit", "429", "too many requests"},
	},
	{
		category: CategoryInvalidRequest,
		typed:    isInvalidRequest,
		types:    []string{"ValidationError", "ValueError"},
	},
}

// Classify returns the category for err. A nil error is generic.
func Classify(err error) Category {
	if err == nil {
		return CategoryGeneric
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Category
	}

	msg := err.Error()
	lowerMsg := strings.ToLower(msg)
	names := typeNames(err)

	for _, r := range rules {
		if r.typed != nil && r.typed(err) {
			return r.category
		}
		for _, t := range r.types {
			for _, name := range names {
				if strings.Contains(name, t) {
					return r.category
				}
			}
		}
		for _, m := range r.messages {
			if r.lower && strings.Contains(lowerMsg, m) {
				return r.category
			}
			if !r.lower && strings.Contains(msg, m) {
				return r.category
			}
		}
	}
	return CategoryGeneric
}

// UserMessage returns the end-user text for err.
func UserMessage(err error) string {
	return Classify(err).Message()
}

// IsRetryable reports whether err belongs to a transient category.
func IsRetryable(err error) bool {
	return err != nil && Classify(err).Transient()
}

// ClassifiedError pins an error to a category, bypassing inspection.
type ClassifiedError struct {
	Err      error
	Category Category
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// WithCategory pins err to c.
func WithCategory(err error, c Category) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Err: err, Category: c}
}

func hasStatus(codes ...int) func(error) bool {
	return func(err error) bool {
		var httpErr *HTTPError
		if !errors.As(err, &httpErr) {
			return false
		}
		for _, c := range codes {
			if httpErr.StatusCode == c {
				return true
			}
		}
		return false
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return hasStatus(408, 504)(err)
}

func isConnectionError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && !netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && !opErr.Timeout()
}

func isInvalidRequest(err error) bool {
	var valErr *ValidationError
	var jsonErr *JSONParseError
	return errors.As(err, &valErr) || errors.As(err, &jsonErr) || hasStatus(400, 422)(err)
}

// typeNames returns the dynamic type names of every error in the chain.
func typeNames(err error) []string {
	var names []string
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		names = append(names, reflect.TypeOf(e).String())
		switch x := e.(type) {
		case interface{ Unwrap() error }:
			walk(x.Unwrap())
		case interface{ Unwrap() []error }:
			for _, inner := range x.Unwrap() {
				walk(inner)
			}
		}
	}
	walk(err)
	return names
}

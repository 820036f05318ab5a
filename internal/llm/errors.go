package llm

import "errors"

// Sentinel errors.
var (
	// ErrEmptyRequest is returned for a request without messages.
	ErrEmptyRequest = errors.New("llm: request has no messages")

	// ErrEmptyResponse is returned when a provider answers with nothing.
	ErrEmptyResponse = errors.New("llm: empty response")

	// ErrNoAPIKey is returned when a provider is selected without a key.
	ErrNoAPIKey = errors.New("llm: missing api key")
)

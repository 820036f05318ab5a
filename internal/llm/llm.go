// Package llm provides provider-neutral chat completion clients, middleware,
// and structured-output helpers.
package llm

import (
	"context"
	"strings"
)

// Role tags a chat message.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn sent to a provider.
type Message struct {
	Role    Role
	Content string
}

// Request is a single completion call.
type Request struct {
	// System is the system instruction. Optional.
	System string
	// Messages is the conversation, oldest first. Must not be empty.
	Messages []Message
	// Temperature controls sampling.
	Temperature float64
	// MaxTokens caps the completion. Zero uses DefaultMaxTokens.
	MaxTokens int
	// JSON asks the provider for a JSON object when it supports that.
	JSON bool
}

// Response is the provider's answer.
type Response struct {
	Text  string
	Model string
}

// DefaultMaxTokens is used when a Request leaves MaxTokens unset.
const DefaultMaxTokens = 4096

// Client completes chat requests against one model.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Model() string
}

// Provider names an LLM vendor.
type Provider string

// Supported providers.
const (
	ProviderGoogle    Provider = "google"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// ProviderFor picks the provider serving model. Names that do not identify
// a vendor fall back to def.
func ProviderFor(model string, def Provider) Provider {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "gpt-"), strings.HasPrefix(m, "o1-"), strings.HasPrefix(m, "o3-"),
		m == "o1", m == "o3":
		return ProviderOpenAI
	case strings.HasPrefix(m, "gemini"):
		return ProviderGoogle
	case strings.HasPrefix(m, "claude"):
		return ProviderAnthropic
	}
	return def
}

// Task selects the sampling preset for a kind of call.
type Task string

// Tasks the agent issues.
const (
	TaskRouter   Task = "router"
	TaskSQL      Task = "sql"
	TaskScout    Task = "scout"
	TaskResponse Task = "response"
)

// Temperature returns the sampling temperature for t.
func (t Task) Temperature() float64 {
	switch t {
	case TaskScout:
		return 0.3
	case TaskResponse:
		return 0.7
	default:
		return 0
	}
}

func (r Request) maxTokens() int {
	if r.MaxTokens > 0 {
		return r.MaxTokens
	}
	return DefaultMaxTokens
}

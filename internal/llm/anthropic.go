package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	flowerrors "github.com/courtvision/scoutgraph/pkg/flowgraph/errors"
)

// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	keys  KeySource
	model string
	opts  []option.RequestOption

	mu     sync.Mutex
	client *anthropic.Client
	key    string
}

// NewAnthropicClient creates a client for model.
func NewAnthropicClient(keys KeySource, model string, opts ...option.RequestOption) *AnthropicClient {
	return &AnthropicClient{keys: keys, model: model, opts: opts}
}

// Model implements Client.
func (a *AnthropicClient) Model() string {
	return a.model
}

func (a *AnthropicClient) sdk() *anthropic.Client {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := a.keys.APIKey()
	if a.client == nil || key != a.key {
		client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(key)}, a.opts...)...)
		a.client, a.key = &client, key
	}
	return a.client
}

// Complete implements Client. Consecutive messages with the same role are
// joined because the API requires alternating roles.
func (a *AnthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, ErrEmptyRequest
	}

	msgs := alternate(req.Messages)
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   int64(req.maxTokens()),
		Temperature: anthropic.Float(req.Temperature),
		Messages:    make([]anthropic.MessageParam, 0, len(msgs)),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	for _, m := range msgs {
		params.Messages = append(params.Messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRole(m.Role),
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)},
		})
	}

	resp, err := a.sdk().Messages.New(ctx, params)
	if err != nil {
		return Response{}, anthropicError(err)
	}
	if resp == nil {
		return Response{}, ErrEmptyResponse
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return Response{Text: b.String(), Model: a.model}, nil
}

// alternate merges runs of same-role messages and makes sure the
// conversation starts with a user message.
func alternate(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Content += "\n\n" + m.Content
			continue
		}
		out = append(out, m)
	}
	if len(out) > 0 && out[0].Role != RoleUser {
		out = append([]Message{{Role: RoleUser, Content: "(conversation continues)"}}, out...)
	}
	return out
}

func anthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("anthropic: %w", &flowerrors.HTTPError{
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Error(),
			Endpoint:   "messages",
		})
	}
	return fmt.Errorf("anthropic: %w", err)
}

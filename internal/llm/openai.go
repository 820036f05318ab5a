package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	flowerrors "github.com/courtvision/scoutgraph/pkg/flowgraph/errors"
)

// OpenAIClient calls the OpenAI Responses API.
type OpenAIClient struct {
	keys  KeySource
	model string
	opts  []option.RequestOption

	mu     sync.Mutex
	client *openai.Client
	key    string
}

// NewOpenAIClient creates a client for model. Extra request options (base
// URL, HTTP client) are applied after the API key.
func NewOpenAIClient(keys KeySource, model string, opts ...option.RequestOption) *OpenAIClient {
	return &OpenAIClient{keys: keys, model: model, opts: opts}
}

// Model implements Client.
func (o *OpenAIClient) Model() string {
	return o.model
}

func (o *OpenAIClient) sdk() *openai.Client {
	o.mu.Lock()
	defer o.mu.Unlock()

	key := o.keys.APIKey()
	if o.client == nil || key != o.key {
		client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(key)}, o.opts...)...)
		o.client, o.key = &client, key
	}
	return o.client
}

// Complete implements Client. The conversation is flattened into a single
// input string.
func (o *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, ErrEmptyRequest
	}

	params := responses.ResponseNewParams{
		Model:           o.model,
		MaxOutputTokens: openai.Int(int64(req.maxTokens())),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(flatten(req.Messages))},
		Temperature:     openai.Float(req.Temperature),
	}
	if req.System != "" {
		params.Instructions = openai.String(req.System)
	}

	resp, err := o.sdk().Responses.New(ctx, params)
	if err != nil {
		return Response{}, openAIError(err)
	}
	if resp == nil {
		return Response{}, ErrEmptyResponse
	}
	return Response{Text: resp.OutputText(), Model: o.model}, nil
}

func flatten(msgs []Message) string {
	if len(msgs) == 1 {
		return msgs[0].Content
	}
	var b strings.Builder
	for _, m := range msgs {
		switch m.Role {
		case RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

func openAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openai: %w", &flowerrors.HTTPError{
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
			Endpoint:   "responses",
		})
	}
	return fmt.Errorf("openai: %w", err)
}

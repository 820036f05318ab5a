package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/genai"

	flowerrors "github.com/courtvision/scoutgraph/pkg/flowgraph/errors"
)

// GeminiClient calls Google Gemini through the GenAI SDK.
type GeminiClient struct {
	keys  KeySource
	model string

	mu     sync.Mutex
	client *genai.Client
	key    string
}

// NewGeminiClient creates a client for model. The SDK client is built on
// first use and rebuilt when the key changes.
func NewGeminiClient(keys KeySource, model string) *GeminiClient {
	return &GeminiClient{keys: keys, model: model}
}

// Model implements Client.
func (g *GeminiClient) Model() string {
	return g.model
}

func (g *GeminiClient) sdk(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := g.keys.APIKey()
	if g.client != nil && key == g.key {
		return g.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g.client, g.key = client, key
	return client, nil
}

// Complete implements Client.
func (g *GeminiClient) Complete(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, ErrEmptyRequest
	}
	client, err := g.sdk(ctx)
	if err != nil {
		return Response{}, err
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}

	temperature := float32(req.Temperature)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(req.maxTokens()),
	}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	result, err := client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return Response{}, geminiError(err)
	}
	if result == nil {
		return Response{}, ErrEmptyResponse
	}
	return Response{Text: result.Text(), Model: g.model}, nil
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("gemini: %w", &flowerrors.HTTPError{
			StatusCode: apiErr.Code,
			Message:    apiErr.Message,
			Endpoint:   "generateContent",
		})
	}
	return fmt.Errorf("gemini: %w", err)
}

// Package llmtest provides scripted llm.Client fakes for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/courtvision/scoutgraph/internal/llm"
)

// ErrExhausted is returned when a Script runs out of replies.
var ErrExhausted = errors.New("llmtest: no scripted reply left")

// Reply is one scripted answer.
type Reply struct {
	Text string
	Err  error
}

// Script answers calls with queued replies in order and records every
// request.
type Script struct {
	model string

	mu       sync.Mutex
	replies  []Reply
	requests []llm.Request
}

// NewScript creates a Script with the given replies.
func NewScript(replies ...Reply) *Script {
	return &Script{model: "mock-model", replies: replies}
}

// Text is a successful reply.
func Text(s string) Reply {
	return Reply{Text: s}
}

// JSON is a successful reply carrying v marshalled as JSON.
func JSON(v any) Reply {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return Reply{Text: string(b)}
}

// Fail is a failing reply.
func Fail(err error) Reply {
	return Reply{Err: err}
}

// Push queues more replies.
func (s *Script) Push(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, replies...)
}

// Complete implements llm.Client.
func (s *Script) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if len(s.replies) == 0 {
		return llm.Response{}, ErrExhausted
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	if r.Err != nil {
		return llm.Response{}, r.Err
	}
	return llm.Response{Text: r.Text, Model: s.model}, nil
}

// Model implements llm.Client.
func (s *Script) Model() string {
	return s.model
}

// Requests returns the recorded requests.
func (s *Script) Requests() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Request(nil), s.requests...)
}

// Calls returns the number of calls made.
func (s *Script) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Remaining returns the number of unused replies.
func (s *Script) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies)
}

// Func adapts a function to llm.Client.
type Func func(ctx context.Context, req llm.Request) (llm.Response, error)

// Complete implements llm.Client.
func (f Func) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	return f(ctx, req)
}

// Model implements llm.Client.
func (f Func) Model() string {
	return "func-model"
}

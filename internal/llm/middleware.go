package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	flowerrors "github.com/courtvision/scoutgraph/pkg/flowgraph/errors"
)

// Middleware wraps a Client with additional behavior.
type Middleware func(next Client) Client

// clientFunc adapts a function to Client.
type clientFunc struct {
	complete func(context.Context, Request) (Response, error)
	model    string
}

func (f clientFunc) Complete(ctx context.Context, req Request) (Response, error) {
	return f.complete(ctx, req)
}

func (f clientFunc) Model() string {
	return f.model
}

// WrapClient builds a Client from a completion function.
func WrapClient(model string, complete func(context.Context, Request) (Response, error)) Client {
	return clientFunc{complete: complete, model: model}
}

// Chain applies middlewares around base. The first middleware is outermost:
//
//	Chain(c, a, b) calls a -> b -> c
func Chain(base Client, middlewares ...Middleware) Client {
	client := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		client = middlewares[i](client)
	}
	return client
}

// WithRetry retries transient failures (connection, timeout, rate limit)
// with exponential backoff. The last error is returned unwrapped so callers
// classify the provider failure, not the retry bookkeeping.
func WithRetry(cfg flowerrors.RetryConfig) Middleware {
	return func(next Client) Client {
		return WrapClient(next.Model(), func(ctx context.Context, req Request) (Response, error) {
			res := flowerrors.WithRetryContext(ctx, cfg, func(ctx context.Context) (Response, error) {
				return next.Complete(ctx, req)
			})
			if res.Err != nil {
				var retryErr *flowerrors.RetryError
				if errors.As(res.Err, &retryErr) {
					return Response{}, retryErr.Err
				}
				return Response{}, res.Err
			}
			return res.Value, nil
		})
	}
}

// WithTimeout bounds each call.
func WithTimeout(d time.Duration) Middleware {
	return func(next Client) Client {
		if d <= 0 {
			return next
		}
		return WrapClient(next.Model(), func(ctx context.Context, req Request) (Response, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next.Complete(ctx, req)
		})
	}
}

// WithLogging logs each call at debug level and failures at warn level.
func WithLogging(logger *slog.Logger) Middleware {
	return func(next Client) Client {
		return WrapClient(next.Model(), func(ctx context.Context, req Request) (Response, error) {
			start := time.Now()
			resp, err := next.Complete(ctx, req)
			attrs := []any{
				"model", next.Model(),
				"messages", len(req.Messages),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if err != nil {
				logger.Warn("llm call failed", append(attrs,
					"error", err,
					"category", flowerrors.Classify(err).String())...)
				return resp, err
			}
			logger.Debug("llm call completed", append(attrs, "response_chars", len(resp.Text))...)
			return resp, nil
		})
	}
}

package llm

import (
	"fmt"
	"log/slog"
	"time"

	flowerrors "github.com/courtvision/scoutgraph/pkg/flowgraph/errors"
)

// FactoryConfig configures client construction.
type FactoryConfig struct {
	// DefaultProvider serves models whose names do not identify a vendor.
	DefaultProvider Provider
	// Keys holds the credential source per provider.
	Keys map[Provider]KeySource
	// MaxAttempts bounds retries of transient failures. One disables retry.
	MaxAttempts int
	// CallTimeout bounds each attempt. Zero means no limit.
	CallTimeout time.Duration
	// Logger receives call logs. Optional.
	Logger *slog.Logger
	// Metrics records calls in Prometheus. Optional.
	Metrics *Metrics
}

// Factory builds middleware-wrapped clients per task.
type Factory struct {
	cfg FactoryConfig
}

// NewFactory creates a Factory.
func NewFactory(cfg FactoryConfig) *Factory {
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = ProviderGoogle
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Factory{cfg: cfg}
}

// Base returns the unwrapped provider client for model.
func (f *Factory) Base(model string) (Client, error) {
	provider := ProviderFor(model, f.cfg.DefaultProvider)
	keys, ok := f.cfg.Keys[provider]
	if !ok || keys == nil || keys.APIKey() == "" {
		return nil, fmt.Errorf("%w for %s (model %s)", ErrNoAPIKey, provider, model)
	}
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIClient(keys, model), nil
	case ProviderAnthropic:
		return NewAnthropicClient(keys, model), nil
	default:
		return NewGeminiClient(keys, model), nil
	}
}

// ForTask returns the client for task on model. Scouting analysis is not
// retried: its output is large and a failure is reported to the user as is.
func (f *Factory) ForTask(task Task, model string) (Client, error) {
	base, err := f.Base(model)
	if err != nil {
		return nil, err
	}
	return f.Wrap(task, base), nil
}

// Wrap applies the task's middleware stack to base.
func (f *Factory) Wrap(task Task, base Client) Client {
	mws := []Middleware{WithLogging(f.cfg.Logger.With("task", string(task)))}
	if f.cfg.Metrics != nil {
		mws = append(mws, f.cfg.Metrics.Middleware())
	}
	if task != TaskScout && f.cfg.MaxAttempts > 1 {
		mws = append(mws, WithRetry(flowerrors.NewRetryConfig(
			flowerrors.WithMaxAttempts(f.cfg.MaxAttempts),
			flowerrors.WithInitialBackoff(500*time.Millisecond),
			flowerrors.WithMaxBackoff(5*time.Second),
		)))
	}
	mws = append(mws, WithTimeout(f.cfg.CallTimeout))
	return Chain(base, mws...)
}

package flowgraph

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/courtvision/scoutgraph/pkg/flowgraph/checkpoint"
	"github.com/courtvision/scoutgraph/pkg/flowgraph/observability"
)

func TestDefaultRunConfig(t *testing.T) {
	cfg := defaultRunConfig()

	assert.Equal(t, DefaultMaxIterations, cfg.maxIterations)
	assert.Equal(t, 50, cfg.maxIterations)
	assert.True(t, cfg.checkpointFailureFatal)
	assert.Nil(t, cfg.checkpointStore)
	assert.NotNil(t, cfg.logger)
	assert.IsType(t, observability.NoopMetrics{}, cfg.metrics)
	assert.IsType(t, observability.NoopSpanManager{}, cfg.spans)
}

func TestRunOptions(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	logger := slog.New(slog.DiscardHandler)
	locker := &countingLocker{}

	cfg := newRunConfig([]RunOption{
		WithMaxIterations(7),
		WithCheckpointing(store),
		WithCheckpointFailureFatal(false),
		WithRunID("turn-1"),
		WithSessionLock(locker),
		WithObservabilityLogger(logger),
		WithTracing(true),
	})

	assert.Equal(t, 7, cfg.maxIterations)
	assert.Same(t, store, cfg.checkpointStore)
	assert.False(t, cfg.checkpointFailureFatal)
	assert.Equal(t, "turn-1", cfg.runID)
	assert.Same(t, locker, cfg.locker)
	assert.Same(t, logger, cfg.logger)
	assert.True(t, cfg.tracingEnabled)
}

func TestRunOptions_IgnoresInvalid(t *testing.T) {
	cfg := newRunConfig([]RunOption{
		WithMaxIterations(0),
		WithObservabilityLogger(nil),
	})

	assert.Equal(t, DefaultMaxIterations, cfg.maxIterations)
	assert.NotNil(t, cfg.logger)
	assert.NotEmpty(t, cfg.runID)
}

func TestWithEventHandler_Nil(t *testing.T) {
	cfg := newRunConfig([]RunOption{WithEventHandler[Delta](nil)})
	assert.Nil(t, cfg.emit)
}

func TestWithEventHandler_AdaptsUpdate(t *testing.T) {
	var got Event[Delta]
	cfg := newRunConfig([]RunOption{WithEventHandler(func(_ context.Context, ev Event[Delta]) error {
		got = ev
		return nil
	})})

	err := cfg.emit(context.Background(), "router", Delta{Add: 2}, nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, "router", got.Node)
	assert.Equal(t, 2, got.Update.Add)

	err = cfg.emit(context.Background(), InterruptNode, nil, &Interrupt{Kind: "pick"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, Delta{}, got.Update)
	assert.Equal(t, "pick", got.Interrupt.Kind)
}

package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestNoopMetrics(t *testing.T) {
	var m MetricsRecorder = NoopMetrics{}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordNodeExecution(ctx, "router", time.Millisecond, nil)
		m.RecordNodeExecution(ctx, "router", time.Millisecond, errors.New("x"))
		m.RecordTurn(ctx, "invoke", "completed", time.Second)
		m.RecordTurn(ctx, "resume", "failed", 0)
		m.RecordCheckpoint(ctx, "scout", 1024)
		m.RecordInterrupt(ctx, "confirm_scouting_report", "scouting_confirmation")
	})
}

func TestNoopSpanManager(t *testing.T) {
	var sm SpanManager = NoopSpanManager{}
	ctx := context.Background()

	t.Run("run span leaves context untouched", func(t *testing.T) {
		got, span := sm.StartRunSpan(ctx, "flowgraph.invoke", "run-1")
		assert.Equal(t, ctx, got)
		assert.False(t, span.IsRecording())
	})

	t.Run("node span leaves context untouched", func(t *testing.T) {
		got, span := sm.StartNodeSpan(ctx, "router")
		assert.Equal(t, ctx, got)
		assert.False(t, span.IsRecording())
	})

	t.Run("end and events are no-ops", func(t *testing.T) {
		_, span := sm.StartRunSpan(ctx, "flowgraph.invoke", "run-1")
		assert.NotPanics(t, func() {
			sm.EndSpanWithError(span, errors.New("x"))
			sm.EndSpanWithError(nil, nil)
			sm.AddSpanEvent(ctx, "interrupt", attribute.String("k", "v"))
		})
	})
}

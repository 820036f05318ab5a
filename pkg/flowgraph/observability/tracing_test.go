package observability

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTracingTest installs a tracer provider that records into memory.
func setupTracingTest(t *testing.T) *tracetest.InMemoryExporter {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	tracer = otel.Tracer("flowgraph")

	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("shutdown tracer provider: %v", err)
		}
	})
	return exporter
}

func attrString(attrs []attribute.KeyValue, key string) string {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value.AsString()
		}
	}
	return ""
}

func TestStartRunSpan(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	ctx, span := sm.StartRunSpan(context.Background(), "flowgraph.invoke", "run-123")
	require.NotNil(t, span)
	assert.Equal(t, span, trace.SpanFromContext(ctx))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "flowgraph.invoke", spans[0].Name)
	assert.Equal(t, "run-123", attrString(spans[0].Attributes, "run.id"))
	assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind)
}

func TestStartNodeSpan(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	ctx, runSpan := sm.StartRunSpan(context.Background(), "flowgraph.resume", "run-1")
	_, nodeSpan := sm.StartNodeSpan(ctx, "scout")
	nodeSpan.End()
	runSpan.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	node, run := spans[0], spans[1]
	assert.Equal(t, "flowgraph.node.scout", node.Name)
	assert.Equal(t, "scout", attrString(node.Attributes, "node.id"))
	assert.Equal(t, run.SpanContext.SpanID(), node.Parent.SpanID())
	assert.Equal(t, run.SpanContext.TraceID(), node.SpanContext.TraceID())
}

func TestEndSpanWithError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
		desc string
	}{
		{name: "success", err: nil, code: codes.Ok},
		{name: "plain error", err: errors.New("node failed"), code: codes.Error, desc: "node failed"},
		{name: "wrapped error", err: fmt.Errorf("turn: %w", errors.New("inner")), code: codes.Error, desc: "turn: inner"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter := setupTracingTest(t)
			sm := NewSpanManager()

			_, span := sm.StartRunSpan(context.Background(), "flowgraph.invoke", "run-1")
			sm.EndSpanWithError(span, tt.err)

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tt.code, spans[0].Status.Code)
			assert.Equal(t, tt.desc, spans[0].Status.Description)
			if tt.err != nil {
				require.NotEmpty(t, spans[0].Events)
				assert.Equal(t, "exception", spans[0].Events[0].Name)
			}
		})
	}

	t.Run("nil span", func(t *testing.T) {
		assert.NotPanics(t, func() {
			NewSpanManager().EndSpanWithError(nil, errors.New("x"))
		})
	})
}

func TestAddSpanEvent(t *testing.T) {
	t.Run("records on active span", func(t *testing.T) {
		exporter := setupTracingTest(t)
		sm := NewSpanManager()

		ctx, span := sm.StartRunSpan(context.Background(), "flowgraph.invoke", "run-1")
		sm.AddSpanEvent(ctx, "interrupt",
			attribute.String("node.id", "confirm_scouting_report"),
			attribute.String("interrupt.kind", "scouting_confirmation"))
		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		require.Len(t, spans[0].Events, 1)
		ev := spans[0].Events[0]
		assert.Equal(t, "interrupt", ev.Name)
		assert.Equal(t, "scouting_confirmation", attrString(ev.Attributes, "interrupt.kind"))
	})

	t.Run("no span in context", func(t *testing.T) {
		assert.NotPanics(t, func() {
			NewSpanManager().AddSpanEvent(context.Background(), "orphan")
		})
	})
}

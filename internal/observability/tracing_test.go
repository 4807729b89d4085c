package observability

import (
	"context"
	"errors"
	"testing"
)

func TestNewTracerWithoutEndpointIsNoop(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{})
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	}()
	if tracer.config.ServiceName != "embedeval" {
		t.Errorf("ServiceName = %q", tracer.config.ServiceName)
	}

	ctx, span := tracer.TraceEmbedding(context.Background(), "openai", 3)
	span.End()
	if GetTraceID(ctx) != "" {
		t.Errorf("noop tracer should not produce a trace id")
	}
}

func TestWithSpanReturnsError(t *testing.T) {
	tracer, _ := NewTracer(TraceConfig{})
	want := errors.New("boom")
	err := WithSpan(context.Background(), tracer, "stage", func(context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Errorf("WithSpan() = %v, want %v", err, want)
	}
}

func TestAttributesFrom(t *testing.T) {
	attrs := attributesFrom([]any{"a", "x", "b", 2, 3, "skipped", "c", 1.5, "dangling"})
	if len(attrs) != 3 {
		t.Fatalf("attrs = %v", attrs)
	}
	if attrs[1].Value.AsInt64() != 2 {
		t.Errorf("b = %v", attrs[1].Value)
	}
}

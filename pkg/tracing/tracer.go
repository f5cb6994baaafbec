// Package tracing defines the pluggable tracer hooks the broker, dispatcher
// and aggregator emit spans through. A Noop implementation is always a
// valid choice, eliminating conditional checks at every call site.
package tracing

import (
	"context"
	"time"
)

// Tracer is the span-emitting collaborator every core component accepts.
// Implementations must be safe for concurrent use, since the dispatcher and
// broker invoke it from many goroutines at once.
type Tracer interface {
	// StartSpan begins a span named name, returning a derived context and a
	// handle used to finish it.
	StartSpan(ctx context.Context, name string) (context.Context, Span)

	// LLMCall records the entry into a generate/generate_object/stream call.
	LLMCall(ctx context.Context, model string) (context.Context, Span)

	// LLMResponse records the exit of a generate call, including duration.
	LLMResponse(span Span, duration time.Duration, toolCallCount int)

	// ToolCall records a single tool invocation with arguments, result and
	// duration.
	ToolCall(ctx context.Context, name string, args map[string]any, result string, duration time.Duration, err error)

	// DispatchBatch records one dispatcher batch pass.
	DispatchBatch(ctx context.Context, batchSize int, queueDepth int)

	// AggregatorComplete records a reducer firing for a correlation id.
	AggregatorComplete(ctx context.Context, correlationID string, kinds []string)
}

// Span is the handle returned by StartSpan/LLMCall; End finishes it.
type Span interface {
	End()
	RecordError(err error)
}

// Noop returns a Tracer whose methods do nothing. It is the default used by
// every component that accepts an optional Tracer.
func Noop() Tracer { return noopTracer{} }

type noopTracer struct{}

func (noopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (noopTracer) LLMCall(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (noopTracer) LLMResponse(_ Span, _ time.Duration, _ int) {}

func (noopTracer) ToolCall(_ context.Context, _ string, _ map[string]any, _ string, _ time.Duration, _ error) {
}

func (noopTracer) DispatchBatch(_ context.Context, _ int, _ int) {}

func (noopTracer) AggregatorComplete(_ context.Context, _ string, _ []string) {}

type noopSpan struct{}

func (noopSpan) End()                  {}
func (noopSpan) RecordError(err error) {}

package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the OTLP-backed Tracer, narrowed to what this core's
// spans need.
type Config struct {
	Enabled      bool
	EndpointURL  string
	SamplingRate float64
	ServiceName  string
}

// otelTracer adapts an OpenTelemetry trace.Tracer to the core's Tracer
// interface.
type otelTracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// New builds a Tracer backed by an OTLP gRPC exporter. Pass cfg.Enabled =
// false (or call Noop() directly) to skip exporter setup entirely.
func New(ctx context.Context, cfg Config) (Tracer, error) {
	if !cfg.Enabled {
		return Noop(), nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.EndpointURL),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	rate := cfg.SamplingRate
	if rate <= 0 {
		rate = 1.0
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(rate)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return &otelTracer{tracer: provider.Tracer("agentcore"), provider: provider}, nil
}

// Shutdown flushes and stops the underlying provider. No-op if the tracer
// was never wired to a real exporter.
func (t *otelTracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

func (t *otelTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, otelSpan{span}
}

func (t *otelTracer) LLMCall(ctx context.Context, model string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, "LLMCall", trace.WithAttributes(attribute.String("model", model)))
	return ctx, otelSpan{span}
}

func (t *otelTracer) LLMResponse(span Span, duration time.Duration, toolCallCount int) {
	if s, ok := span.(otelSpan); ok {
		s.span.SetAttributes(
			attribute.Int64("duration_ms", duration.Milliseconds()),
			attribute.Int("tool_call_count", toolCallCount),
		)
	}
	span.End()
}

func (t *otelTracer) ToolCall(ctx context.Context, name string, args map[string]any, result string, duration time.Duration, err error) {
	_, span := t.tracer.Start(ctx, "ToolCall", trace.WithAttributes(
		attribute.String("tool.name", name),
		attribute.String("tool.arguments", fmt.Sprint(args)),
		attribute.String("tool.result", result),
		attribute.Int64("duration_ms", duration.Milliseconds()),
	))
	defer span.End()
	if err != nil {
		span.RecordError(err)
	}
}

func (t *otelTracer) DispatchBatch(ctx context.Context, batchSize int, queueDepth int) {
	_, span := t.tracer.Start(ctx, "DispatchBatch", trace.WithAttributes(
		attribute.Int("batch_size", batchSize),
		attribute.Int("queue_depth", queueDepth),
	))
	span.End()
}

func (t *otelTracer) AggregatorComplete(ctx context.Context, correlationID string, kinds []string) {
	_, span := t.tracer.Start(ctx, "AggregatorComplete", trace.WithAttributes(
		attribute.String("correlation_id", correlationID),
		attribute.StringSlice("kinds", kinds),
	))
	span.End()
}

type otelSpan struct{ span trace.Span }

func (s otelSpan) End() { s.span.End() }

func (s otelSpan) RecordError(err error) {
	if err != nil {
		s.span.RecordError(err)
	}
}

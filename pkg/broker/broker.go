// Package broker implements the synchronous façade over a gateway.Gateway:
// plain-text generation with automatic tool-call resolution, structured
// object generation, and streaming generation with recursive tool-call
// resolution across sub-streams.
package broker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/kadirpekel/agentcore/pkg/corelog"
	"github.com/kadirpekel/agentcore/pkg/corerrors"
	"github.com/kadirpekel/agentcore/pkg/gateway"
	"github.com/kadirpekel/agentcore/pkg/metrics"
	"github.com/kadirpekel/agentcore/pkg/tool"
	"github.com/kadirpekel/agentcore/pkg/tracing"
)

// Option configures a Broker at construction time.
type Option func(*Broker)

// WithLogger attaches a structured logger. Defaults to corelog.Noop().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broker) { b.logger = logger }
}

// WithTracer attaches a Tracer. Defaults to tracing.Noop().
func WithTracer(t tracing.Tracer) Option {
	return func(b *Broker) { b.tracer = t }
}

// WithRecorder attaches a Recorder. Defaults to metrics.Noop().
func WithRecorder(r metrics.Recorder) Option {
	return func(b *Broker) { b.recorder = r }
}

// Broker is the synchronous façade over a gateway.Gateway.
type Broker struct {
	gw    gateway.Gateway
	tools []tool.Tool

	logger   *slog.Logger
	tracer   tracing.Tracer
	recorder metrics.Recorder
}

// New builds a Broker calling through gw, resolving tool calls against
// tools.
func New(gw gateway.Gateway, tools []tool.Tool, opts ...Option) *Broker {
	b := &Broker{
		gw:       gw,
		tools:    tools,
		logger:   corelog.Noop(),
		tracer:   tracing.Noop(),
		recorder: metrics.Noop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Generate runs a completion, recursively resolving any tool calls the
// model makes until it returns a response with none, and returns that final
// response's text content (empty if it has none). Text that accompanies an
// intermediate tool-calling response is not included.
func (b *Broker) Generate(ctx context.Context, model string, messages []gateway.Message, cfg gateway.CompletionConfig) (string, error) {
	tools := b.toolDefinitions()

	for {
		resp, err := b.complete(ctx, model, messages, tools, cfg)
		if err != nil {
			return "", err
		}

		if len(resp.ToolCalls) == 0 {
			if resp.Content != nil {
				return *resp.Content, nil
			}
			return "", nil
		}

		messages = b.appendAssistantAndToolResults(ctx, messages, resp)
	}
}

// GenerateObject runs a structured-output completion with no tool
// support. It fails with corerrors.ErrInvalidResponse if the gateway
// returns a nil Object.
func (b *Broker) GenerateObject(ctx context.Context, model string, messages []gateway.Message, schema map[string]any, cfg gateway.CompletionConfig) (any, error) {
	ctx, span := b.tracer.LLMCall(ctx, model)
	start := time.Now()
	resp, err := b.gw.CompleteObject(ctx, model, messages, schema, cfg)
	b.recorder.RecordLLMCall(model, time.Since(start))
	b.tracer.LLMResponse(span, time.Since(start), 0)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if resp.Object == nil {
		return nil, corerrors.ErrInvalidResponse
	}
	return resp.Object, nil
}

// GenerateStream runs a completion as a sequence of text chunks,
// recursively resolving tool calls across sub-streams. The returned
// channel is closed when generation completes (including all recursive
// tool-call follow-ups).
func (b *Broker) GenerateStream(ctx context.Context, model string, messages []gateway.Message, cfg gateway.CompletionConfig) (<-chan gateway.StreamEvent, error) {
	out := make(chan gateway.StreamEvent)
	tools := b.toolDefinitions()

	go func() {
		defer close(out)
		b.streamRecursive(ctx, model, messages, tools, cfg, out)
	}()

	return out, nil
}

func (b *Broker) streamRecursive(ctx context.Context, model string, messages []gateway.Message, tools []gateway.ToolDefinition, cfg gateway.CompletionConfig, out chan<- gateway.StreamEvent) {
	ctx, span := b.tracer.LLMCall(ctx, model)
	start := time.Now()
	stream, err := b.gw.CompleteStream(ctx, model, messages, tools, cfg)
	if err != nil {
		span.RecordError(err)
		out <- gateway.StreamEvent{Type: gateway.StreamEventError, Err: err}
		return
	}

	var toolCalls []gateway.ToolCall
	var content string
	for chunk := range stream {
		switch chunk.Type {
		case gateway.StreamEventContent:
			content += chunk.Content
			out <- chunk
		case gateway.StreamEventToolCalls:
			toolCalls = append(toolCalls, chunk.ToolCalls...)
		case gateway.StreamEventError:
			out <- chunk
			b.tracer.LLMResponse(span, time.Since(start), len(toolCalls))
			return
		}
	}
	b.recorder.RecordLLMCall(model, time.Since(start))
	b.tracer.LLMResponse(span, time.Since(start), len(toolCalls))

	if len(toolCalls) == 0 {
		return
	}

	resp := gateway.Response{ToolCalls: toolCalls}
	if content != "" {
		resp.Content = &content
	}
	messages = b.appendAssistantAndToolResults(ctx, messages, resp)
	b.streamRecursive(ctx, model, messages, tools, cfg, out)
}

func (b *Broker) complete(ctx context.Context, model string, messages []gateway.Message, tools []gateway.ToolDefinition, cfg gateway.CompletionConfig) (gateway.Response, error) {
	ctx, span := b.tracer.LLMCall(ctx, model)
	start := time.Now()
	resp, err := b.gw.Complete(ctx, model, messages, tools, cfg)
	duration := time.Since(start)
	b.recorder.RecordLLMCall(model, duration)
	b.tracer.LLMResponse(span, duration, len(resp.ToolCalls))
	if err != nil {
		span.RecordError(err)
		return gateway.Response{}, err
	}
	return resp, nil
}

// appendAssistantAndToolResults appends the assistant's tool-calling
// message, then runs each tool call in order and appends its result as a
// tool-role message. A tool call naming an unregistered tool is logged and
// skipped rather than failing the whole turn.
func (b *Broker) appendAssistantAndToolResults(ctx context.Context, messages []gateway.Message, resp gateway.Response) []gateway.Message {
	assistantMsg := gateway.Message{Role: gateway.RoleAssistant, ToolCalls: resp.ToolCalls}
	if resp.Content != nil {
		assistantMsg.Content = *resp.Content
	}
	messages = append(messages, assistantMsg)

	for _, call := range resp.ToolCalls {
		t, ok := tool.Find(b.tools, call.Name)
		if !ok {
			b.logger.Warn("tool call requested unknown tool", "tool", call.Name)
			continue
		}

		start := time.Now()
		result, err := t.Run(ctx, call.Arguments)
		duration := time.Since(start)
		b.recorder.RecordToolCall(call.Name, duration, err == nil)
		b.tracer.ToolCall(ctx, call.Name, call.Arguments, result.Content, duration, err)

		content := result.Content
		if err != nil {
			b.logger.Warn("tool call failed", "tool", call.Name, "error", err)
			content = toolErrorContent(call.Name, err)
		}

		messages = append(messages, gateway.Message{
			Role:       gateway.RoleTool,
			Content:    content,
			ToolCallID: call.ID,
			Name:       call.Name,
		})
	}

	return messages
}

func (b *Broker) toolDefinitions() []gateway.ToolDefinition {
	defs := make([]gateway.ToolDefinition, 0, len(b.tools))
	for _, t := range b.tools {
		d := t.Descriptor()
		defs = append(defs, gateway.ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		})
	}
	return defs
}

func toolErrorContent(name string, err error) string {
	payload, marshalErr := json.Marshal(map[string]string{"error": err.Error()})
	if marshalErr != nil {
		return `{"error":"` + name + ` failed"}`
	}
	return string(payload)
}

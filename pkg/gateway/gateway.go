package gateway

import "context"

// Gateway is the contract a concrete LLM provider client implements.
// Concrete implementations (HTTP transport, provider-specific JSON
// marshaling) are out of scope for this core; only this interface and the
// types it exchanges are.
type Gateway interface {
	// Complete runs a single non-streaming completion, optionally offering
	// tools for the model to call.
	Complete(ctx context.Context, model string, messages []Message, tools []ToolDefinition, cfg CompletionConfig) (Response, error)

	// CompleteObject runs a completion constrained to schema, returning its
	// parsed Response.Object. No tool support.
	CompleteObject(ctx context.Context, model string, messages []Message, schema map[string]any, cfg CompletionConfig) (Response, error)

	// CompleteStream runs a streaming completion, optionally offering
	// tools. The returned channel is closed when the stream ends.
	CompleteStream(ctx context.Context, model string, messages []Message, tools []ToolDefinition, cfg CompletionConfig) (<-chan StreamEvent, error)

	// AvailableModels lists the model ids this gateway can serve.
	AvailableModels(ctx context.Context) ([]string, error)

	// CalculateEmbeddings embeds text using model.
	CalculateEmbeddings(ctx context.Context, text string, model string) ([]float64, error)
}

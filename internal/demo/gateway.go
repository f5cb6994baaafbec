// Package demo wires a minimal, runnable stack: an Ollama-backed
// gateway.Gateway and a couple of in-memory tools, used by cmd/agentcore
// to exercise the core end to end without a real production provider.
package demo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/kadirpekel/agentcore/pkg/corerrors"
	"github.com/kadirpekel/agentcore/pkg/gateway"
	"github.com/kadirpekel/agentcore/pkg/httpclient"
)

const defaultOllamaHost = "http://localhost:11434"

// OllamaGateway implements gateway.Gateway against a local or remote
// Ollama daemon's /api/chat, /api/tags and /api/embed endpoints.
type OllamaGateway struct {
	baseURL string
	client  *httpclient.Client
}

// NewOllamaGateway builds an OllamaGateway pointed at OLLAMA_HOST, or
// http://localhost:11434 if unset.
func NewOllamaGateway() *OllamaGateway {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = defaultOllamaHost
	}
	host = strings.TrimSuffix(host, "/")

	return &OllamaGateway{
		baseURL: host,
		client:  httpclient.New(httpclient.WithMaxRetries(2)),
	}
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content,omitempty"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaToolCall struct {
	Function ollamaToolCallFunction `json:"function"`
}

type ollamaToolCallFunction struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type ollamaTool struct {
	Type     string             `json:"type"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   any             `json:"format,omitempty"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
	NumCtx      int     `json:"num_ctx,omitempty"`
}

type ollamaResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

type ollamaStreamChunk struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Complete implements gateway.Gateway.
func (g *OllamaGateway) Complete(ctx context.Context, model string, messages []gateway.Message, tools []gateway.ToolDefinition, cfg gateway.CompletionConfig) (gateway.Response, error) {
	req := g.buildRequest(model, messages, false, tools, cfg, nil)

	resp, err := g.do(ctx, req)
	if err != nil {
		return gateway.Response{}, err
	}

	return toGatewayResponse(resp), nil
}

// CompleteObject implements gateway.Gateway.
func (g *OllamaGateway) CompleteObject(ctx context.Context, model string, messages []gateway.Message, schema map[string]any, cfg gateway.CompletionConfig) (gateway.Response, error) {
	req := g.buildRequest(model, messages, false, nil, cfg, schema)

	resp, err := g.do(ctx, req)
	if err != nil {
		return gateway.Response{}, err
	}
	if resp.Message.Content == "" {
		return gateway.Response{}, corerrors.ErrInvalidResponse
	}

	var obj any
	if err := json.Unmarshal([]byte(resp.Message.Content), &obj); err != nil {
		return gateway.Response{}, &corerrors.SerializationError{Message: "decoding structured output", Err: err}
	}

	return gateway.Response{Object: obj}, nil
}

// CompleteStream implements gateway.Gateway.
func (g *OllamaGateway) CompleteStream(ctx context.Context, model string, messages []gateway.Message, tools []gateway.ToolDefinition, cfg gateway.CompletionConfig) (<-chan gateway.StreamEvent, error) {
	req := g.buildRequest(model, messages, true, tools, cfg, nil)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &corerrors.SerializationError{Message: "encoding ollama request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, &corerrors.RequestFailedError{Reason: "building request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &corerrors.RequestFailedError{Reason: "calling ollama", Err: err}
	}

	out := make(chan gateway.StreamEvent)
	go g.streamChunks(resp, out)
	return out, nil
}

func (g *OllamaGateway) streamChunks(resp *http.Response, out chan<- gateway.StreamEvent) {
	defer close(out)
	defer resp.Body.Close()

	decoder := json.NewDecoder(resp.Body)
	for {
		var chunk ollamaStreamChunk
		if err := decoder.Decode(&chunk); err != nil {
			if err == io.EOF {
				return
			}
			out <- gateway.StreamEvent{Type: gateway.StreamEventError, Err: err}
			return
		}

		if chunk.Error != "" {
			out <- gateway.StreamEvent{Type: gateway.StreamEventError, Err: &corerrors.ApiError{Message: chunk.Error}}
			return
		}

		if chunk.Message.Content != "" {
			out <- gateway.StreamEvent{Type: gateway.StreamEventContent, Content: chunk.Message.Content}
		}
		if len(chunk.Message.ToolCalls) > 0 {
			out <- gateway.StreamEvent{Type: gateway.StreamEventToolCalls, ToolCalls: toGatewayToolCalls(chunk.Message.ToolCalls)}
		}
		if chunk.Done {
			out <- gateway.StreamEvent{Type: gateway.StreamEventDone}
			return
		}
	}
}

// AvailableModels implements gateway.Gateway.
func (g *OllamaGateway) AvailableModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, &corerrors.RequestFailedError{Reason: "building request", Err: err}
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &corerrors.RequestFailedError{Reason: "calling ollama", Err: err}
	}
	defer resp.Body.Close()

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, &corerrors.SerializationError{Message: "decoding model list", Err: err}
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// CalculateEmbeddings implements gateway.Gateway.
func (g *OllamaGateway) CalculateEmbeddings(ctx context.Context, text string, model string) ([]float64, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: model, Input: text})
	if err != nil {
		return nil, &corerrors.SerializationError{Message: "encoding embed request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, &corerrors.RequestFailedError{Reason: "building request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &corerrors.RequestFailedError{Reason: "calling ollama", Err: err}
	}
	defer resp.Body.Close()

	var embedResp ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, &corerrors.SerializationError{Message: "decoding embed response", Err: err}
	}
	if len(embedResp.Embeddings) == 0 {
		return nil, corerrors.ErrInvalidResponse
	}
	return embedResp.Embeddings[0], nil
}

func (g *OllamaGateway) buildRequest(model string, messages []gateway.Message, stream bool, tools []gateway.ToolDefinition, cfg gateway.CompletionConfig, schema map[string]any) ollamaRequest {
	req := ollamaRequest{
		Model:    model,
		Messages: toOllamaMessages(messages),
		Stream:   stream,
		Options: &ollamaOptions{
			Temperature: cfg.Temperature,
			NumPredict:  cfg.MaxTokens,
			NumCtx:      cfg.NumCtx,
		},
	}
	if schema != nil {
		req.Format = schema
	} else if cfg.ResponseFormat == gateway.ResponseFormatJSONObject {
		req.Format = "json"
	}
	if len(tools) > 0 {
		req.Tools = toOllamaTools(tools)
	}
	return req
}

func (g *OllamaGateway) do(ctx context.Context, req ollamaRequest) (ollamaResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return ollamaResponse{}, &corerrors.SerializationError{Message: "encoding ollama request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return ollamaResponse{}, &corerrors.RequestFailedError{Reason: "building request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return ollamaResponse{}, &corerrors.RequestFailedError{Reason: "calling ollama", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ollamaResponse{}, &corerrors.RequestFailedError{Reason: "reading response body", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return ollamaResponse{}, &corerrors.HTTPError{Status: resp.StatusCode, Body: string(data)}
	}

	var out ollamaResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return ollamaResponse{}, &corerrors.SerializationError{Message: "decoding ollama response", Err: err}
	}
	if out.Error != "" {
		return ollamaResponse{}, &corerrors.ApiError{Message: out.Error}
	}
	return out, nil
}

func toOllamaMessages(messages []gateway.Message) []ollamaMessage {
	out := make([]ollamaMessage, 0, len(messages))
	for _, m := range messages {
		om := ollamaMessage{Role: m.Role, Content: m.Content}
		if m.Role == gateway.RoleTool {
			om.ToolName = m.Name
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, ollamaToolCall{
				Function: ollamaToolCallFunction{Name: tc.Name, Arguments: tc.Arguments},
			})
		}
		out = append(out, om)
	}
	return out
}

func toOllamaTools(tools []gateway.ToolDefinition) []ollamaTool {
	out := make([]ollamaTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, ollamaTool{
			Type: "function",
			Function: ollamaToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func toGatewayToolCalls(calls []ollamaToolCall) []gateway.ToolCall {
	out := make([]gateway.ToolCall, 0, len(calls))
	for i, c := range calls {
		out = append(out, gateway.ToolCall{
			ID:        fmt.Sprintf("call_%d_%s", i, c.Function.Name),
			Name:      c.Function.Name,
			Arguments: c.Function.Arguments,
		})
	}
	return out
}

func toGatewayResponse(resp ollamaResponse) gateway.Response {
	out := gateway.Response{}
	if resp.Message.Content != "" {
		content := resp.Message.Content
		out.Content = &content
	}
	if len(resp.Message.ToolCalls) > 0 {
		out.ToolCalls = toGatewayToolCalls(resp.Message.ToolCalls)
	}
	return out
}

package demo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/kadirpekel/agentcore/pkg/tool"
)

// EchoArgs is the argument shape EchoTool accepts; its JSON schema is
// derived from these struct tags.
type EchoArgs struct {
	Message string `json:"message" jsonschema:"required,description=Text to echo back"`
}

// EchoTool is a trivial in-memory tool for exercising the Broker's
// tool-call resolution without a real backend.
type EchoTool struct{}

// Descriptor implements tool.Tool.
func (EchoTool) Descriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        "echo",
		Description: "Echoes the given message back to the caller.",
		Parameters:  mustSchema[EchoArgs](),
	}
}

// Name implements tool.Tool.
func (EchoTool) Name() string { return "echo" }

// Run implements tool.Tool.
func (EchoTool) Run(ctx context.Context, args map[string]any) (tool.Result, error) {
	message, _ := args["message"].(string)
	return tool.Result{Content: message}, nil
}

// ClockArgs is the (empty) argument shape ClockTool accepts.
type ClockArgs struct{}

// ClockTool reports the current server time, standing in for a tool that
// reaches outside the process for live data.
type ClockTool struct {
	Now func() string
}

// Descriptor implements tool.Tool.
func (t ClockTool) Descriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        "clock",
		Description: "Reports the current server time.",
		Parameters:  mustSchema[ClockArgs](),
	}
}

// Name implements tool.Tool.
func (ClockTool) Name() string { return "clock" }

// Run implements tool.Tool.
func (t ClockTool) Run(ctx context.Context, args map[string]any) (tool.Result, error) {
	if t.Now == nil {
		return tool.Result{}, fmt.Errorf("clock tool has no time source configured")
	}
	return tool.Result{Content: t.Now()}, nil
}

// mustSchema generates a JSON schema map for T.
func mustSchema[T any]() map[string]any {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(T))

	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}

// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tool defines the contract the Broker invokes to resolve a
// model's tool calls. Concrete tools (filesystem access, web search, task
// management) are out of scope for this core; only the descriptor/run/
// name-match contract a Broker needs is.
package tool

import "context"

// Descriptor is the schema a tool advertises so a Gateway's provider knows
// when and how to call it.
type Descriptor struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Result is what a tool invocation produces. Content is the
// model-consumable text form; Output, if set, is the tool's structured
// result for callers that want more than text.
type Result struct {
	Content string
	Output  any
}

// Tool is a callable side-effect exposed to the model through a Broker.
type Tool interface {
	// Descriptor returns the tool's name, description and JSON Schema
	// parameters.
	Descriptor() Descriptor

	// Name returns the tool's identity, used to match a gateway.ToolCall
	// to the tool that should run it.
	Name() string

	// Run executes the tool with the given call arguments.
	Run(ctx context.Context, args map[string]any) (Result, error)
}

// Find returns the tool in tools whose Name matches name, or false if none
// does.
func Find(tools []Tool, name string) (Tool, bool) {
	for _, t := range tools {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

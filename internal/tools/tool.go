// Package tools houses the tool contract shared by every callable capability
// the agent loop can invoke: a JSON-schema-validated parameter list and a
// timeout-bounded, panic-safe execution pipeline.
package tools

import (
	"context"
	"time"
)

// ParamType is the JSON-schema primitive type of a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

// Parameter declares one named input a tool accepts.
type Parameter struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Default     any
	Enum        []string

	// MaxLength bounds string length / array length. Zero means use the
	// package default (MaxStringLength / MaxArrayLength).
	MaxLength int

	// Min/Max bound numeric values when non-zero (both zero means unbounded
	// aside from the absolute integer cap).
	Min, Max float64
}

// Default resource limits applied during validation unless a Parameter
// overrides them.
const (
	MaxStringLength  = 10000
	MaxArrayLength   = 100
	MaxIntegerValue  = 1_000_000_000
	DefaultTimeout   = 30 * time.Second
)

// Result is the structured outcome of a tool invocation.
type Result struct {
	Success     bool
	Data        any
	Observation string
	Error       string
	Metadata    map[string]any
}

// NeedsConfirmation reports whether the result carries the confirmation
// sentinel that tells the Supervisor to pause and wait for explicit
// user approval before the action proceeds.
func (r *Result) NeedsConfirmation() bool {
	if r == nil || r.Metadata == nil {
		return false
	}
	v, ok := r.Metadata["needs_confirmation"]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func (r *Result) setMetadata(key string, value any) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata[key] = value
}

// Tool is the closed contract every callable capability implements:
// a name, description, declared parameters, and an execute operation.
type Tool interface {
	Name() string
	Description() string
	Parameters() []Parameter
	Execute(ctx context.Context, args map[string]any) (*Result, error)
}

// Timeout is implemented by tools that want a non-default execute_safe
// deadline; tools that don't implement it get DefaultTimeout.
type Timeout interface {
	Timeout() time.Duration
}

// Schema renders a tool's LLM-facing function-calling schema:
// {type: "function", function: {name, description, parameters}}.
func Schema(t Tool) map[string]any {
	properties := make(map[string]any, len(t.Parameters()))
	var required []string
	for _, p := range t.Parameters() {
		prop := map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        t.Name(),
			"description": t.Description(),
			"parameters": map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		},
	}
}

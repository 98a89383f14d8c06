package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/nexus/internal/tools"
)

// RegistryServerInfo names the in-process server advertised by
// NewRegistryHandler's initialize response.
var RegistryServerInfo = ServerInfo{Name: "nexus-tools", Version: "1.0.0"}

// NewRegistryHandler exposes a tools.Registry as an MCP server over the
// in-process transport: initialize, tools/list, and tools/call are answered
// directly against the registry, with no subprocess or socket involved. This
// lets the tool-invocation surface be driven through the same MCP client
// code path used for third-party servers, and lets tests exercise that path
// without a wire transport.
func NewRegistryHandler(registry *tools.Registry) InProcessHandler {
	return func(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
		switch method {
		case "initialize":
			return json.Marshal(InitializeResult{
				ProtocolVersion: "2024-11-05",
				Capabilities: Capabilities{
					Tools: &ToolsCapability{},
				},
				ServerInfo: RegistryServerInfo,
			})

		case "notifications/initialized":
			return nil, nil

		case "tools/list":
			return json.Marshal(ListToolsResult{Tools: registryTools(registry)})

		case "resources/list":
			return json.Marshal(ListResourcesResult{})

		case "prompts/list":
			return json.Marshal(ListPromptsResult{})

		case "tools/call":
			return callRegistryTool(ctx, registry, params)

		default:
			return nil, fmt.Errorf("mcp: method not supported by registry handler: %q", method)
		}
	}
}

func registryTools(registry *tools.Registry) []*MCPTool {
	list := registry.List()
	out := make([]*MCPTool, 0, len(list))
	for _, t := range list {
		schema := tools.Schema(t)
		fn, _ := schema["function"].(map[string]any)
		parameters, _ := fn["parameters"]
		inputSchema, err := json.Marshal(parameters)
		if err != nil {
			inputSchema = json.RawMessage(`{"type":"object"}`)
		}
		out = append(out, &MCPTool{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: inputSchema,
		})
	}
	return out
}

func callRegistryTool(ctx context.Context, registry *tools.Registry, params json.RawMessage) (json.RawMessage, error) {
	var call CallToolParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &call); err != nil {
			return nil, fmt.Errorf("mcp: invalid tools/call params: %w", err)
		}
	}

	var args map[string]any
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return nil, fmt.Errorf("mcp: invalid tool arguments: %w", err)
		}
	}

	result := registry.Execute(ctx, call.Name, 0, args)
	return json.Marshal(ToolCallResult{
		Content: []ToolResultContent{{Type: "text", Text: result.Observation}},
		IsError: !result.Success,
	})
}

package builtin

import (
	"context"

	"github.com/haasonsaas/nexus/internal/tools"
)

// ChatTool is a pseudo-tool: it performs no action and exists only so the
// Supervisor's single-step/multi-step planning can name "just reply
// directly" as a first-class choice alongside real tool calls. Grounded on
// chat_tool.py.
type ChatTool struct{}

func (t *ChatTool) Name() string { return "chat" }

func (t *ChatTool) Description() string {
	return "Reply directly without taking any action. Use this for greetings, small talk, " +
		"or when the user has no concrete task in mind."
}

func (t *ChatTool) Parameters() []tools.Parameter {
	return []tools.Parameter{
		{Name: "message", Type: tools.TypeString, Description: "The user's message", Required: true},
	}
}

func (t *ChatTool) Execute(_ context.Context, args map[string]any) (*tools.Result, error) {
	message, _ := args["message"].(string)
	return &tools.Result{
		Success:     true,
		Data:        map[string]any{"type": "direct_response", "input": message},
		Observation: "Replying directly.",
	}, nil
}

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// PromptEngineeredAdapter wraps a rawChatter that cannot accept tool
// schemas natively. It synthesizes a system prompt describing the tools and
// mandating a <tool_call>{...json...}</tool_call> block, then parses that
// block back out of the generated text.
type PromptEngineeredAdapter struct {
	raw  rawChatter
	name string
}

// rawChatter is the minimal capability a provider must expose for the
// prompt-engineered fallback to drive it: plain chat with no tool support.
type rawChatter interface {
	RawChat(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error)
	RawStream(ctx context.Context, messages []Message) (<-chan StreamChunk, error)
}

// NewPromptEngineeredAdapter wraps raw with the tag-based tool-call convention.
func NewPromptEngineeredAdapter(name string, raw rawChatter) *PromptEngineeredAdapter {
	return &PromptEngineeredAdapter{raw: raw, name: name}
}

func (a *PromptEngineeredAdapter) Name() string { return a.name }

func (a *PromptEngineeredAdapter) Chat(ctx context.Context, messages []Message, tools []ToolSpec, choice ToolChoice, temperature float64, maxTokens int) (*Response, error) {
	augmented := messages
	if len(tools) > 0 && choice != ToolChoiceNone {
		augmented = append([]Message{{Role: "system", Content: toolPrompt(tools)}}, messages...)
	}

	text, err := a.raw.RawChat(ctx, augmented, temperature, maxTokens)
	if err != nil {
		return nil, err
	}

	content, call := extractToolCall(text)
	resp := &Response{Content: content, FinishReason: FinishStop}
	if call != nil {
		resp.ToolCalls = []ToolCall{*call}
		resp.FinishReason = FinishToolCalls
	}
	return resp, nil
}

func (a *PromptEngineeredAdapter) Stream(ctx context.Context, messages []Message) (<-chan StreamChunk, error) {
	return a.raw.RawStream(ctx, messages)
}

func toolPrompt(tools []ToolSpec) string {
	var b strings.Builder
	b.WriteString("You have access to the following tools. When you need to call one, ")
	b.WriteString("respond with exactly one block of the form ")
	b.WriteString("<tool_call>{\"name\": \"tool_name\", \"arguments\": {...}}</tool_call>. ")
	b.WriteString("Text outside the block is shown to the user as-is.\n\nTools:\n")
	for _, t := range tools {
		params, _ := json.Marshal(t.Parameters)
		fmt.Fprintf(&b, "- %s: %s\n  parameters: %s\n", t.Name, t.Description, string(params))
	}
	return b.String()
}

const (
	toolCallOpenTag  = "<tool_call>"
	toolCallCloseTag = "</tool_call>"
)

// extractToolCall pulls the first <tool_call>{...}</tool_call> block out of
// generated text. Content outside the block, trimmed of leading and trailing
// whitespace, is returned as the response's Content field.
func extractToolCall(text string) (content string, call *ToolCall) {
	start := strings.Index(text, toolCallOpenTag)
	if start == -1 {
		return text, nil
	}
	end := strings.Index(text, toolCallCloseTag)
	if end == -1 || end < start {
		return text, nil
	}
	raw := text[start+len(toolCallOpenTag) : end]
	remainder := text[:start] + text[end+len(toolCallCloseTag):]

	var payload struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil {
		return text, nil
	}
	return strings.TrimSpace(remainder), &ToolCall{Name: payload.Name, Arguments: payload.Arguments}
}

// Package anthropic adapts the Anthropic Messages API to the llm.Adapter
// contract using native tool use.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haasonsaas/nexus/internal/llm"
)

// Adapter implements llm.Adapter over github.com/anthropics/anthropic-sdk-go.
type Adapter struct {
	client anthropic.Client
	model  anthropic.Model
}

// Config configures the adapter.
type Config struct {
	APIKey string
	Model  string
}

// New creates an Anthropic adapter.
func New(cfg Config) *Adapter {
	return &Adapter{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  anthropic.Model(cfg.Model),
	}
}

func (a *Adapter) Name() string { return "anthropic" }

func (a *Adapter) Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec, choice llm.ToolChoice, temperature float64, maxTokens int) (*llm.Response, error) {
	var system string
	var msgs []anthropic.MessageParam
	for _, m := range messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		role := anthropic.MessageParamRoleUser
		if m.Role == "assistant" {
			role = anthropic.MessageParamRoleAssistant
		}
		msgs = append(msgs, anthropic.MessageParam{
			Role:    role,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)},
		})
	}

	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 && choice != llm.ToolChoiceNone {
		for _, t := range tools {
			params.Tools = append(params.Tools, anthropic.ToolUnionParam{
				OfTool: &anthropic.ToolParam{
					Name:        t.Name,
					Description: anthropic.String(t.Description),
					InputSchema: toAnthropicSchema(t.Parameters),
				},
			})
		}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	resp := &llm.Response{FinishReason: llm.FinishStop}
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Content += v.Text
		case anthropic.ToolUseBlock:
			var args map[string]any
			_ = json.Unmarshal(v.Input, &args)
			resp.ToolCalls = append(resp.ToolCalls, llm.ToolCall{ID: v.ID, Name: v.Name, Arguments: args})
		}
	}
	if len(resp.ToolCalls) > 0 {
		resp.FinishReason = llm.FinishToolCalls
	}
	return resp, nil
}

func (a *Adapter) Stream(ctx context.Context, messages []llm.Message) (<-chan llm.StreamChunk, error) {
	return nil, errors.New("anthropic: streaming not wired in this build")
}

func toAnthropicSchema(params map[string]any) anthropic.ToolInputSchemaParam {
	schema := anthropic.ToolInputSchemaParam{}
	if params == nil {
		return schema
	}
	if props, ok := params["properties"]; ok {
		schema.Properties = props
	}
	return schema
}

// Package openai adapts the OpenAI-compatible chat completions API
// (and any self-hosted endpoint implementing the same wire format) to the
// llm.Adapter contract, using native function-calling.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/nexus/internal/llm"
)

// Adapter implements llm.Adapter over github.com/sashabaranov/go-openai.
type Adapter struct {
	client *openai.Client
	model  string
	name   string
}

// Config configures the adapter; BaseURL empty means api.openai.com.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Name    string
}

// New creates an OpenAI-compatible adapter.
func New(cfg Config) *Adapter {
	oaCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaCfg.BaseURL = cfg.BaseURL
	}
	name := cfg.Name
	if name == "" {
		name = "openai"
	}
	return &Adapter{
		client: openai.NewClientWithConfig(oaCfg),
		model:  cfg.Model,
		name:   name,
	}
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec, choice llm.ToolChoice, temperature float64, maxTokens int) (*llm.Response, error) {
	req := openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: float32(temperature),
		MaxTokens:   maxTokens,
	}
	if len(tools) > 0 && choice != llm.ToolChoiceNone {
		req.Tools = toOpenAITools(tools)
		req.ToolChoice = "auto"
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusBadRequest && len(tools) > 0 {
			return nil, errors.Join(llm.ErrToolsUnsupported, err)
		}
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return &llm.Response{FinishReason: llm.FinishStop}, nil
	}
	choice0 := resp.Choices[0]

	out := &llm.Response{Content: choice0.Message.Content}
	for _, tc := range choice0.Message.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	if len(out.ToolCalls) > 0 {
		out.FinishReason = llm.FinishToolCalls
	} else {
		out.FinishReason = llm.FinishStop
	}
	return out, nil
}

func (a *Adapter) Stream(ctx context.Context, messages []llm.Message) (<-chan llm.StreamChunk, error) {
	req := openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: toOpenAIMessages(messages),
		Stream:   true,
	}
	stream, err := a.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			resp, err := stream.Recv()
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					out <- llm.StreamChunk{Error: err}
				}
				return
			}
			if len(resp.Choices) > 0 {
				out <- llm.StreamChunk{Text: resp.Choices[0].Delta.Content}
			}
		}
	}()
	return out, nil
}

func toOpenAIMessages(messages []llm.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

func toOpenAITools(tools []llm.ToolSpec) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, t := range tools {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return out
}

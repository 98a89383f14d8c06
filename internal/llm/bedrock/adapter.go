// Package bedrock adapts Amazon Bedrock's Converse API to the llm.Adapter
// contract, supplementing the original two-provider (OpenAI-compatible /
// Ollama) design with the cloud-hosted provider the wider example corpus
// already wires via aws-sdk-go-v2.
package bedrock

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/haasonsaas/nexus/internal/llm"
)

// Adapter implements llm.Adapter over bedrockruntime's Converse API.
type Adapter struct {
	client  *bedrockruntime.Client
	modelID string
}

// New creates a Bedrock adapter using the default AWS config chain.
func New(ctx context.Context, region, modelID string) (*Adapter, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &Adapter{client: bedrockruntime.NewFromConfig(cfg), modelID: modelID}, nil
}

func (a *Adapter) Name() string { return "bedrock" }

func (a *Adapter) Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec, choice llm.ToolChoice, temperature float64, maxTokens int) (*llm.Response, error) {
	var system []types.SystemContentBlock
	var msgs []types.Message
	for _, m := range messages {
		if m.Role == "system" {
			system = append(system, &types.SystemContentBlockMemberText{Value: m.Content})
			continue
		}
		role := types.ConversationRoleUser
		if m.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}
		msgs = append(msgs, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
		})
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(a.modelID),
		Messages: msgs,
		System:   system,
		InferenceConfig: &types.InferenceConfiguration{
			Temperature: aws.Float32(float32(temperature)),
			MaxTokens:   aws.Int32(int32(maxTokens)),
		},
	}
	if len(tools) > 0 && choice != llm.ToolChoiceNone {
		var toolSpecs []types.Tool
		for _, t := range tools {
			schema, _ := json.Marshal(t.Parameters)
			var doc map[string]any
			_ = json.Unmarshal(schema, &doc)
			toolSpecs = append(toolSpecs, &types.ToolMemberToolSpec{
				Value: types.ToolSpecification{
					Name:        aws.String(t.Name),
					Description: aws.String(t.Description),
					InputSchema: &types.ToolInputSchemaMemberJson{Value: documentFromMap(doc)},
				},
			})
		}
		input.ToolConfig = &types.ToolConfiguration{Tools: toolSpecs}
	}

	out, err := a.client.Converse(ctx, input)
	if err != nil {
		return nil, err
	}

	resp := &llm.Response{FinishReason: llm.FinishStop}
	if msg, ok := out.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range msg.Value.Content {
			switch v := block.(type) {
			case *types.ContentBlockMemberText:
				resp.Content += v.Value
			case *types.ContentBlockMemberToolUse:
				resp.ToolCalls = append(resp.ToolCalls, llm.ToolCall{
					ID:   aws.ToString(v.Value.ToolUseId),
					Name: aws.ToString(v.Value.Name),
				})
			}
		}
	}
	if len(resp.ToolCalls) > 0 {
		resp.FinishReason = llm.FinishToolCalls
	}
	return resp, nil
}

func (a *Adapter) Stream(ctx context.Context, messages []llm.Message) (<-chan llm.StreamChunk, error) {
	var msgs []types.Message
	for _, m := range messages {
		role := types.ConversationRoleUser
		if m.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}
		msgs = append(msgs, types.Message{Role: role, Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}}})
	}

	stream, err := a.client.ConverseStream(ctx, &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(a.modelID),
		Messages: msgs,
	})
	if err != nil {
		return nil, err
	}

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		eventStream := stream.GetStream()
		defer eventStream.Close()
		for event := range eventStream.Events() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if delta, ok := event.(*types.ConverseStreamOutputMemberContentBlockDelta); ok {
				if text, ok := delta.Value.Delta.(*types.ContentBlockDeltaMemberText); ok {
					out <- llm.StreamChunk{Text: text.Value}
				}
			}
		}
		if err := eventStream.Err(); err != nil {
			out <- llm.StreamChunk{Error: err}
		}
	}()
	return out, nil
}

func documentFromMap(m map[string]any) document {
	return document{v: m}
}

// document is a minimal smithy document.Interface implementation wrapping a
// plain Go map, sufficient to satisfy ToolInputSchemaMemberJson's Value field.
type document struct{ v map[string]any }

func (d document) MarshalSmithyDocument() ([]byte, error) { return json.Marshal(d.v) }
func (d document) UnmarshalSmithyDocument(b []byte) error  { return json.Unmarshal(b, &d.v) }

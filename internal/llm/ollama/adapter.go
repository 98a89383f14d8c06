// Package ollama adapts a local Ollama server to the llm.Adapter contract.
// Ollama has no native function-calling wire format for arbitrary models, so
// tool calls are requested via a synthesized system prompt and parsed back
// out of the generated text as a bare JSON object (no surrounding tags),
// matching the convention the original assistant's OllamaAdapter used.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/haasonsaas/nexus/internal/llm"
)

// Adapter talks to a local Ollama server's /api/chat endpoint.
type Adapter struct {
	baseURL string
	model   string
	client  *http.Client
}

// New creates an Ollama adapter. baseURL defaults to http://localhost:11434.
func New(baseURL, model string) *Adapter {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Adapter{baseURL: baseURL, model: model, client: http.DefaultClient}
}

func (a *Adapter) Name() string { return "ollama" }

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string           `json:"model"`
	Messages []ollamaMessage  `json:"messages"`
	Stream   bool             `json:"stream"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

func (a *Adapter) Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec, choice llm.ToolChoice, temperature float64, maxTokens int) (*llm.Response, error) {
	augmented := messages
	if len(tools) > 0 && choice != llm.ToolChoiceNone {
		augmented = append([]llm.Message{{Role: "system", Content: bareJSONToolPrompt(tools)}}, messages...)
	}

	text, err := a.RawChat(ctx, augmented, temperature, maxTokens)
	if err != nil {
		return nil, err
	}

	content, call := extractBareToolCall(text)
	resp := &llm.Response{Content: content, FinishReason: llm.FinishStop}
	if call != nil {
		resp.ToolCalls = []llm.ToolCall{*call}
		resp.FinishReason = llm.FinishToolCalls
	}
	return resp, nil
}

// RawChat performs a single non-streaming chat call with no tool awareness.
func (a *Adapter) RawChat(ctx context.Context, messages []llm.Message, temperature float64, maxTokens int) (string, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model:    a.model,
		Messages: toOllamaMessages(messages),
		Stream:   false,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama: unexpected status %d", resp.StatusCode)
	}

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Message.Content, nil
}

func (a *Adapter) Stream(ctx context.Context, messages []llm.Message) (<-chan llm.StreamChunk, error) {
	return a.RawStream(ctx, messages)
}

// RawStream streams chat chunks with no tool awareness.
func (a *Adapter) RawStream(ctx context.Context, messages []llm.Message) (<-chan llm.StreamChunk, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model:    a.model,
		Messages: toOllamaMessages(messages),
		Stream:   true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("ollama: unexpected status %d", resp.StatusCode)
	}

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			var chunk ollamaChatResponse
			if err := json.Unmarshal(scanner.Bytes(), &chunk); err != nil {
				continue
			}
			if chunk.Message.Content != "" {
				out <- llm.StreamChunk{Text: chunk.Message.Content}
			}
			if chunk.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			out <- llm.StreamChunk{Error: err}
		}
	}()
	return out, nil
}

func toOllamaMessages(messages []llm.Message) []ollamaMessage {
	out := make([]ollamaMessage, len(messages))
	for i, m := range messages {
		out[i] = ollamaMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

func bareJSONToolPrompt(tools []llm.ToolSpec) string {
	var b strings.Builder
	b.WriteString("You can call a tool by responding with ONLY a JSON object of the form ")
	b.WriteString(`{"tool_call": {"name": "...", "arguments": {...}}}`)
	b.WriteString(". Otherwise respond normally. Available tools:\n")
	for _, t := range tools {
		params, _ := json.Marshal(t.Parameters)
		fmt.Fprintf(&b, "- %s: %s params=%s\n", t.Name, t.Description, string(params))
	}
	return b.String()
}

// extractBareToolCall parses a bare {"tool_call": {...}} JSON object with no
// surrounding tags. If the entire trimmed text isn't valid JSON of that
// shape, the text is returned unchanged as plain content.
func extractBareToolCall(text string) (content string, call *llm.ToolCall) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return text, nil
	}
	var payload struct {
		ToolCall *struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		} `json:"tool_call"`
	}
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil || payload.ToolCall == nil {
		return text, nil
	}
	return "", &llm.ToolCall{Name: payload.ToolCall.Name, Arguments: payload.ToolCall.Arguments}
}

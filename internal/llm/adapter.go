// Package llm exposes a uniform chat-with-optional-tools capability across
// heterogeneous LLM providers, negotiating native tool-calling support and
// falling back to a prompt-engineered convention when a provider rejects it.
package llm

import (
	"context"
	"errors"
)

// ToolChoice controls whether/how the model should be steered toward
// calling a tool.
type ToolChoice string

const (
	ToolChoiceAuto ToolChoice = "auto"
	ToolChoiceNone ToolChoice = "none"
)

// Message is one turn in the conversation passed to Chat/Stream.
type Message struct {
	Role    string
	Content string
}

// ToolSpec is the provider-agnostic description of a callable tool, as
// rendered by tools.Schema.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is a model-requested invocation of a registered tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// FinishReason describes why generation stopped.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
	FinishLength    FinishReason = "length"
)

// Response is the uniform result of a Chat call.
type Response struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason FinishReason
}

// StreamChunk is one element of a Stream's lazy output sequence: either a
// text fragment or a terminal error. The consumer may abandon the channel
// at any point (cooperative cancellation via ctx).
type StreamChunk struct {
	Text  string
	Error error
}

// ErrToolsUnsupported is returned (wrapped) by a native adapter when the
// provider rejects a tools-bearing request (observed as HTTP 400), signaling
// the factory/fallback layer to retry via prompt engineering.
var ErrToolsUnsupported = errors.New("llm: provider does not support native tool calling")

// Adapter is the single capability every provider implementation exposes:
// chat with optional tools, and a cancellable streaming variant.
type Adapter interface {
	// Chat sends messages (and optionally tool schemas) and returns a
	// single completed response.
	Chat(ctx context.Context, messages []Message, tools []ToolSpec, choice ToolChoice, temperature float64, maxTokens int) (*Response, error)

	// Stream sends messages and returns a channel of text chunks. The
	// channel is closed when generation completes or ctx is cancelled.
	Stream(ctx context.Context, messages []Message) (<-chan StreamChunk, error)

	// Name identifies the provider for logging/fallback statistics.
	Name() string
}

package llm

import (
	"context"
	"errors"
)

// ProviderKind names a supported backend for the factory.
type ProviderKind string

const (
	ProviderOpenAI    ProviderKind = "openai"
	ProviderAnthropic ProviderKind = "anthropic"
	ProviderBedrock   ProviderKind = "bedrock"
	ProviderOllama    ProviderKind = "ollama"
)

// capabilityProbe is implemented by native adapters that can report, on a
// failed tools-bearing call, that the provider doesn't support native tool
// calling (ErrToolsUnsupported). New does not consult it; the prompt-engineered
// retry happens only through ChatWithCapabilityFallback.
type capabilityProbe interface {
	Adapter
}

// New inspects the configured provider kind and returns a capability-
// appropriate adapter: native tool-calling where the provider supports it.
// Callers that want an always-available fallback should compose the result
// with a PromptEngineeredAdapter via NewFallbackAdapter.
func New(kind ProviderKind, native Adapter) (Adapter, error) {
	if native == nil {
		return nil, errors.New("llm: no native adapter supplied")
	}
	switch kind {
	case ProviderOpenAI, ProviderAnthropic, ProviderBedrock, ProviderOllama:
		return native, nil
	default:
		return nil, errors.New("llm: unknown provider kind: " + string(kind))
	}
}

// ChatWithCapabilityFallback calls Chat on primary; if the call fails with
// ErrToolsUnsupported (HTTP 400 on a tools-bearing request), it retries the
// same turn through fallbackAdapter's prompt-engineered convention.
func ChatWithCapabilityFallback(ctx context.Context, primary, fallbackAdapter Adapter, messages []Message, tools []ToolSpec, choice ToolChoice, temperature float64, maxTokens int) (*Response, error) {
	resp, err := primary.Chat(ctx, messages, tools, choice, temperature, maxTokens)
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, ErrToolsUnsupported) && fallbackAdapter != nil {
		return fallbackAdapter.Chat(ctx, messages, tools, choice, temperature, maxTokens)
	}
	return nil, err
}

package llm

import (
	"context"

	"github.com/haasonsaas/nexus/internal/fallback"
)

// FallbackAdapter composes a primary and backup Adapter behind
// fallback.PrimaryBackup, so an LLM outage transparently and statistically
// tracked retries on the secondary provider.
type FallbackAdapter struct {
	pb   *fallback.PrimaryBackup[Adapter]
	name string
}

// NewFallbackAdapter wires primary/backup adapters under policy.
func NewFallbackAdapter(primary, backup Adapter, policy fallback.Policy) *FallbackAdapter {
	return &FallbackAdapter{
		pb:   fallback.New(primary, backup, policy),
		name: primary.Name() + "+" + backup.Name(),
	}
}

func (f *FallbackAdapter) Name() string { return f.name }

// Stats exposes primary/backup call statistics and latch state.
func (f *FallbackAdapter) Stats() fallback.Snapshot { return f.pb.Stats() }

func (f *FallbackAdapter) Chat(ctx context.Context, messages []Message, tools []ToolSpec, choice ToolChoice, temperature float64, maxTokens int) (*Response, error) {
	return fallback.Call(f.pb, false, func(a Adapter) (*Response, error) {
		return a.Chat(ctx, messages, tools, choice, temperature, maxTokens)
	})
}

func (f *FallbackAdapter) Stream(ctx context.Context, messages []Message) (<-chan StreamChunk, error) {
	return fallback.Call(f.pb, false, func(a Adapter) (<-chan StreamChunk, error) {
		return a.Stream(ctx, messages)
	})
}

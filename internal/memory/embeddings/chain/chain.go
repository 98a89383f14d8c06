// Package chain composes embedding providers into a priority-ordered
// fallback chain — Ollama, then an OpenAI-compatible API, then a
// dependency-free hash fallback — probing each provider's availability at
// most once per TTL window instead of on every call, mirroring
// original_source/src/memory/embeddings.py's provider_priority scheme.
package chain

import (
	"context"
	"sync"
	"time"

	"github.com/haasonsaas/nexus/internal/memory/embeddings"
)

// availabilityTTL is how long a provider's last known availability is
// trusted before being re-probed.
const availabilityTTL = 30 * time.Second

// AvailabilityChecker is implemented by providers that can report whether
// their backing service is currently reachable without generating a real
// embedding (e.g. a cheap health-check request). Providers that don't
// implement it are assumed always available and are only marked down once
// an actual Embed call fails.
type AvailabilityChecker interface {
	Available(ctx context.Context) bool
}

type providerStatus struct {
	available bool
	checkedAt time.Time
}

// Provider tries each configured embeddings.Provider in priority order,
// caching per-provider availability for availabilityTTL so a down service
// doesn't get re-probed on every single embed call.
type Provider struct {
	providers []embeddings.Provider

	mu     sync.Mutex
	status map[string]providerStatus

	// active is the name of the provider last successfully used; exposed
	// via ActiveProvider for diagnostics.
	active string
}

var _ embeddings.Provider = (*Provider)(nil)

// New builds a chain over providers, tried in the given order. The last
// provider is expected to be infallible (e.g. a hash fallback) so the chain
// always produces an embedding.
func New(providers ...embeddings.Provider) *Provider {
	return &Provider{
		providers: providers,
		status:    make(map[string]providerStatus),
	}
}

// Name returns the constant "chain"; it does not list the chained providers.
func (c *Provider) Name() string { return "chain" }

// Dimension returns the dimension of whichever provider is currently
// active, falling back to the first configured provider's dimension if
// none has been used yet.
func (c *Provider) Dimension() int {
	c.mu.Lock()
	active := c.active
	c.mu.Unlock()
	for _, p := range c.providers {
		if active == "" || p.Name() == active {
			return p.Dimension()
		}
	}
	if len(c.providers) > 0 {
		return c.providers[0].Dimension()
	}
	return 0
}

// MaxBatchSize returns the smallest max batch size across the chain, since
// any provider might end up serving a given batch.
func (c *Provider) MaxBatchSize() int {
	min := 0
	for _, p := range c.providers {
		if min == 0 || p.MaxBatchSize() < min {
			min = p.MaxBatchSize()
		}
	}
	return min
}

// ActiveProvider returns the name of the provider that most recently served
// an embedding.
func (c *Provider) ActiveProvider() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Provider) isAvailable(ctx context.Context, p embeddings.Provider) bool {
	c.mu.Lock()
	st, ok := c.status[p.Name()]
	fresh := ok && time.Since(st.checkedAt) < availabilityTTL
	if fresh {
		c.mu.Unlock()
		return st.available
	}
	c.mu.Unlock()

	available := true
	if checker, ok := p.(AvailabilityChecker); ok {
		available = checker.Available(ctx)
	}

	c.mu.Lock()
	c.status[p.Name()] = providerStatus{available: available, checkedAt: time.Now()}
	c.mu.Unlock()
	return available
}

func (c *Provider) markDown(name string) {
	c.mu.Lock()
	c.status[name] = providerStatus{available: false, checkedAt: time.Now()}
	c.mu.Unlock()
}

// Embed tries each provider in order, skipping ones known to be
// unavailable, and falls through to the next on error.
func (c *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for _, p := range c.providers {
		if !c.isAvailable(ctx, p) {
			continue
		}
		vec, err := p.Embed(ctx, text)
		if err != nil {
			lastErr = err
			c.markDown(p.Name())
			continue
		}
		c.mu.Lock()
		c.active = p.Name()
		c.mu.Unlock()
		return vec, nil
	}
	return nil, lastErr
}

// EmbedBatch embeds every text through whichever provider currently serves
// Embed; providers without a native batch implementation still work since
// embeddings.Provider requires EmbedBatch of every implementation.
func (c *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for _, p := range c.providers {
		if !c.isAvailable(ctx, p) {
			continue
		}
		vecs, err := p.EmbedBatch(ctx, texts)
		if err != nil {
			lastErr = err
			c.markDown(p.Name())
			continue
		}
		c.mu.Lock()
		c.active = p.Name()
		c.mu.Unlock()
		return vecs, nil
	}
	return nil, lastErr
}

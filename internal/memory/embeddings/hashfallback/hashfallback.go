// Package hashfallback provides a dependency-free embedding provider that
// derives a deterministic pseudo-embedding from a content hash. It exists
// purely so the assistant can keep functioning (same text always maps to
// the same vector, preserving exact-duplicate detection and rough
// locality) when no real embedding backend is reachable — it is not a
// substitute for model-quality embeddings.
package hashfallback

import (
	"context"
	"crypto/md5"
	"encoding/hex"

	"github.com/haasonsaas/nexus/internal/memory/embeddings"
)

// Provider implements embeddings.Provider using an MD5-derived vector.
type Provider struct {
	dim int
}

var _ embeddings.Provider = (*Provider)(nil)

// Config contains configuration for the hash-fallback provider.
type Config struct {
	Dimension int // default 768
}

// New creates a hash-fallback embedding provider.
func New(cfg Config) *Provider {
	dim := cfg.Dimension
	if dim <= 0 {
		dim = 768
	}
	return &Provider{dim: dim}
}

// Name returns the provider name.
func (p *Provider) Name() string { return "hash_fallback" }

// Dimension returns the configured embedding dimension.
func (p *Provider) Dimension() int { return p.dim }

// MaxBatchSize returns the maximum batch size; unlimited in practice since
// this provider does no I/O, but bounded to match the other providers'
// shape.
func (p *Provider) MaxBatchSize() int { return 1000 }

// Embed derives a deterministic vector from the MD5 hash of text: each
// dimension samples two hex digits (wrapping around the digest) and maps
// them into [-1, 1]. Never errors.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	return HashEmbedding(text, p.dim), nil
}

// EmbedBatch embeds each text independently.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = HashEmbedding(t, p.dim)
	}
	return out, nil
}

// HashEmbedding computes the deterministic hash-derived embedding for text
// at the given dimension, exported so the chain provider and tests can
// reuse it without going through the Provider wrapper.
func HashEmbedding(text string, dim int) []float32 {
	sum := md5.Sum([]byte(text))
	hexDigest := hex.EncodeToString(sum[:])
	hashLen := len(hexDigest)

	out := make([]float32, dim)
	for i := 0; i < dim; i++ {
		idx := (i * 2) % hashLen
		end := idx + 2
		var byteStr string
		if end <= hashLen {
			byteStr = hexDigest[idx:end]
		} else {
			byteStr = hexDigest[idx:hashLen] + hexDigest[:end-hashLen]
		}
		var v int
		for _, c := range byteStr {
			v *= 16
			switch {
			case c >= '0' && c <= '9':
				v += int(c - '0')
			case c >= 'a' && c <= 'f':
				v += int(c-'a') + 10
			}
		}
		normalized := float64(v) / 255.0
		out[i] = float32((normalized - 0.5) * 2)
	}
	return out
}

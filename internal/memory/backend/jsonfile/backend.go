// Package jsonfile provides a dependency-free backend.Backend implementation
// that stores one JSON file per memory entry under a directory, used as the
// long-term memory store's backup when no database is configured or reachable.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/haasonsaas/nexus/internal/memory/backend"
	"github.com/haasonsaas/nexus/pkg/models"
)

// Backend implements backend.Backend as a directory of per-entry JSON files.
// It keeps no in-memory index: every read re-reads the directory.
type Backend struct {
	mu  sync.RWMutex
	dir string
}

// New creates dir if needed. Entries already present are read on each call
// that needs them.
func New(dir string) (*Backend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create memory dir: %w", err)
	}
	return &Backend{dir: dir}, nil
}

func (b *Backend) path(id string) string {
	return filepath.Join(b.dir, id+".json")
}

// Index writes each entry to its own file, assigning IDs as needed.
func (b *Backend) Index(ctx context.Context, entries []*models.MemoryEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, entry := range entries {
		if entry.ID == "" {
			entry.ID = uuid.New().String()
		}
		if entry.InitialConfidence == 0 {
			entry.InitialConfidence = 1.0
		}
		if entry.CurrentConfidence == 0 {
			entry.CurrentConfidence = entry.InitialConfidence
		}
		data, err := json.MarshalIndent(entry, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal entry %s: %w", entry.ID, err)
		}
		if err := os.WriteFile(b.path(entry.ID), data, 0o644); err != nil {
			return fmt.Errorf("failed to write entry %s: %w", entry.ID, err)
		}
	}
	return nil
}

// Store indexes a single entry and returns its ID.
func (b *Backend) Store(ctx context.Context, entry *models.MemoryEntry) (string, error) {
	if err := b.Index(ctx, []*models.MemoryEntry{entry}); err != nil {
		return "", err
	}
	return entry.ID, nil
}

func (b *Backend) loadAll() ([]*models.MemoryEntry, error) {
	files, err := filepath.Glob(filepath.Join(b.dir, "*.json"))
	if err != nil {
		return nil, err
	}
	entries := make([]*models.MemoryEntry, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		var entry models.MemoryEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

func matchesScope(entry *models.MemoryEntry, scope models.MemoryScope, scopeID string) bool {
	switch scope {
	case models.ScopeSession:
		return entry.SessionID == scopeID
	case models.ScopeChannel:
		return entry.ChannelID == scopeID
	case models.ScopeAgent:
		return entry.AgentID == scopeID
	default:
		return true
	}
}

// Search performs a brute-force cosine similarity scan over every entry in
// scope; adequate for the single-user deployment this backend targets.
func (b *Backend) Search(ctx context.Context, queryEmbedding []float32, opts *backend.SearchOptions) ([]*models.SearchResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if opts == nil {
		opts = &backend.SearchOptions{Limit: 10}
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	entries, err := b.loadAll()
	if err != nil {
		return nil, err
	}

	var results []*models.SearchResult
	for _, entry := range entries {
		if !matchesScope(entry, opts.Scope, opts.ScopeID) {
			continue
		}
		score := cosineSimilarity(queryEmbedding, entry.Embedding)
		if opts.Threshold > 0 && score < opts.Threshold {
			continue
		}
		results = append(results, &models.SearchResult{Entry: entry, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// SearchByKeyword returns entries whose content contains the keyword,
// ordered most-recent-first.
func (b *Backend) SearchByKeyword(ctx context.Context, keyword string, opts *backend.SearchOptions) ([]*models.SearchResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if opts == nil {
		opts = &backend.SearchOptions{Limit: 10}
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	entries, err := b.loadAll()
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(keyword)

	var matched []*models.MemoryEntry
	for _, entry := range entries {
		if !matchesScope(entry, opts.Scope, opts.ScopeID) {
			continue
		}
		if strings.Contains(strings.ToLower(entry.Content), lower) {
			matched = append(matched, entry)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	if len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	results := make([]*models.SearchResult, len(matched))
	for i, e := range matched {
		results[i] = &models.SearchResult{Entry: e, Score: 1.0}
	}
	return results, nil
}

// GetAfter returns entries created after the given time, most-recent-first,
// bounded by limit (500 when limit <= 0). It has the same signature as the
// sqlite-vec backend's GetAfter, which orders oldest-first instead, so the
// fallback store can serve consolidation collection when the primary is
// unreachable.
func (b *Backend) GetAfter(ctx context.Context, scope models.MemoryScope, scopeID string, after time.Time, limit int) ([]*models.MemoryEntry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if limit <= 0 {
		limit = 500
	}

	entries, err := b.loadAll()
	if err != nil {
		return nil, err
	}

	var matched []*models.MemoryEntry
	for _, entry := range entries {
		if !matchesScope(entry, scope, scopeID) {
			continue
		}
		if entry.CreatedAt.After(after) {
			matched = append(matched, entry)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Delete removes the files backing the given IDs.
func (b *Backend) Delete(ctx context.Context, ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		if err := os.Remove(b.path(id)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete entry %s: %w", id, err)
		}
	}
	return nil
}

// Update overwrites the file for an already-stored entry.
func (b *Backend) Update(ctx context.Context, entry *models.MemoryEntry) error {
	return b.Index(ctx, []*models.MemoryEntry{entry})
}

// Count returns the number of entries matching scope.
func (b *Backend) Count(ctx context.Context, scope models.MemoryScope, scopeID string) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entries, err := b.loadAll()
	if err != nil {
		return 0, err
	}
	var count int64
	for _, e := range entries {
		if matchesScope(e, scope, scopeID) {
			count++
		}
	}
	return count, nil
}

// Compact is a no-op: there's no index to vacuum in a flat JSON directory.
func (b *Backend) Compact(ctx context.Context) error { return nil }

// Close is a no-op: there are no open handles to release.
func (b *Backend) Close() error { return nil }

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (sqrtApprox(normA) * sqrtApprox(normB)))
}

func sqrtApprox(x float64) float64 {
	if x <= 0 {
		return 0
	}
	z := x
	for i := 0; i < 20; i++ {
		z = (z + x/z) / 2
	}
	return z
}

package memory

import (
	"context"
	"time"

	"github.com/haasonsaas/nexus/internal/fallback"
	"github.com/haasonsaas/nexus/internal/memory/backend"
	"github.com/haasonsaas/nexus/pkg/models"
)

// FallbackBackend composes a primary and backup backend.Backend behind the
// shared PrimaryBackup mechanism, so a database outage degrades the memory
// subsystem to the local JSON-file store instead of losing data outright.
// Write-path failures latch onto the backup (the primary might still be
// missing data once it recovers, so don't bounce back automatically);
// read-path failures are treated as ephemeral and never latch, since a
// transient read failure says nothing about whether writes are still safe.
type FallbackBackend struct {
	pb *fallback.PrimaryBackup[backend.Backend]
}

// NewFallbackBackend wraps primary/backup behind the given policy.
func NewFallbackBackend(primary, backup backend.Backend, policy fallback.Policy) *FallbackBackend {
	return &FallbackBackend{pb: fallback.New(primary, backup, policy)}
}

// Stats exposes primary/backup call counters for diagnostics.
func (f *FallbackBackend) Stats() fallback.Stats { return f.pb.Stats() }

func (f *FallbackBackend) Index(ctx context.Context, entries []*models.MemoryEntry) error {
	_, err := fallback.Call(f.pb, false, func(b backend.Backend) (struct{}, error) {
		return struct{}{}, b.Index(ctx, entries)
	})
	return err
}

func (f *FallbackBackend) Search(ctx context.Context, embedding []float32, opts *backend.SearchOptions) ([]*models.SearchResult, error) {
	return fallback.Call(f.pb, true, func(b backend.Backend) ([]*models.SearchResult, error) {
		return b.Search(ctx, embedding, opts)
	})
}

// SearchByKeyword runs the active backend's keyword search (jsonfile and
// sqlitevec have one) and returns no results when that backend has none; it
// is consulted by retrieval.go's optional-interface check.
func (f *FallbackBackend) SearchByKeyword(ctx context.Context, keyword string, opts *backend.SearchOptions) ([]*models.SearchResult, error) {
	return fallback.Call(f.pb, true, func(b backend.Backend) ([]*models.SearchResult, error) {
		type keywordSearcher interface {
			SearchByKeyword(ctx context.Context, keyword string, opts *backend.SearchOptions) ([]*models.SearchResult, error)
		}
		ks, ok := b.(keywordSearcher)
		if !ok {
			return nil, nil
		}
		return ks.SearchByKeyword(ctx, keyword, opts)
	})
}

// Update runs the active backend's Update, or re-indexes the entry when
// that backend has no Update.
func (f *FallbackBackend) Update(ctx context.Context, entry *models.MemoryEntry) error {
	_, err := fallback.Call(f.pb, false, func(b backend.Backend) (struct{}, error) {
		type updater interface {
			Update(ctx context.Context, entry *models.MemoryEntry) error
		}
		u, ok := b.(updater)
		if !ok {
			return struct{}{}, b.Index(ctx, []*models.MemoryEntry{entry})
		}
		return struct{}{}, u.Update(ctx, entry)
	})
	return err
}

// GetAfter runs the active backend's GetAfter and returns nil when that
// backend has none; consolidation relies on this to collect recent entries
// for review.
func (f *FallbackBackend) GetAfter(ctx context.Context, scope models.MemoryScope, scopeID string, after time.Time, limit int) ([]*models.MemoryEntry, error) {
	return fallback.Call(f.pb, true, func(b backend.Backend) ([]*models.MemoryEntry, error) {
		type afterGetter interface {
			GetAfter(ctx context.Context, scope models.MemoryScope, scopeID string, after time.Time, limit int) ([]*models.MemoryEntry, error)
		}
		ag, ok := b.(afterGetter)
		if !ok {
			return nil, nil
		}
		return ag.GetAfter(ctx, scope, scopeID, after, limit)
	})
}

func (f *FallbackBackend) Delete(ctx context.Context, ids []string) error {
	_, err := fallback.Call(f.pb, false, func(b backend.Backend) (struct{}, error) {
		return struct{}{}, b.Delete(ctx, ids)
	})
	return err
}

func (f *FallbackBackend) Count(ctx context.Context, scope models.MemoryScope, scopeID string) (int64, error) {
	return fallback.Call(f.pb, true, func(b backend.Backend) (int64, error) {
		return b.Count(ctx, scope, scopeID)
	})
}

func (f *FallbackBackend) Compact(ctx context.Context) error {
	_, err := fallback.Call(f.pb, true, func(b backend.Backend) (struct{}, error) {
		return struct{}{}, b.Compact(ctx)
	})
	return err
}

func (f *FallbackBackend) Close() error {
	_ = f.pb.Primary.Close()
	return f.pb.Backup.Close()
}

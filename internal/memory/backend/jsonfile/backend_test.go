package jsonfile

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/nexus/internal/memory/backend"
	"github.com/haasonsaas/nexus/pkg/models"
)

func TestBackend_StoreSearchDelete(t *testing.T) {
	b, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	entry := &models.MemoryEntry{
		SessionID:       "s1",
		Content:         "the user prefers dark mode",
		MemoryType:      models.MemoryTypeFact,
		ConfidenceLevel: models.ConfidenceFact,
		Embedding:       []float32{1, 0, 0},
		CreatedAt:       time.Now(),
	}
	id, err := b.Store(ctx, entry)
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}

	count, err := b.Count(ctx, models.ScopeSession, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 entry, got %d", count)
	}

	results, err := b.Search(ctx, []float32{1, 0, 0}, &backend.SearchOptions{Scope: models.ScopeSession, ScopeID: "s1", Limit: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Score < 0.99 {
		t.Fatalf("expected one near-perfect match, got %+v", results)
	}

	kwResults, err := b.SearchByKeyword(ctx, "dark mode", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(kwResults) != 1 {
		t.Fatalf("expected keyword match, got %d", len(kwResults))
	}

	if err := b.Delete(ctx, []string{id}); err != nil {
		t.Fatal(err)
	}
	count, _ = b.Count(ctx, models.ScopeSession, "s1")
	if count != 0 {
		t.Fatalf("expected 0 entries after delete, got %d", count)
	}
}

func TestBackend_ScopeIsolation(t *testing.T) {
	b, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	_, _ = b.Store(ctx, &models.MemoryEntry{SessionID: "a", Content: "one", Embedding: []float32{1, 0}})
	_, _ = b.Store(ctx, &models.MemoryEntry{SessionID: "b", Content: "two", Embedding: []float32{0, 1}})

	results, err := b.Search(ctx, []float32{1, 0}, &backend.SearchOptions{Scope: models.ScopeSession, ScopeID: "a", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Entry.SessionID != "a" {
		t.Fatalf("expected scope isolation, got %+v", results)
	}
}

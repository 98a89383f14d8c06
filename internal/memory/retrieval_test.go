package memory

import (
	"testing"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

func TestCalculateRecency_DecaysOverTime(t *testing.T) {
	now := time.Now()
	fresh := &models.MemoryEntry{CreatedAt: now}
	old := &models.MemoryEntry{CreatedAt: now.Add(-30 * 24 * time.Hour)}

	freshScore := calculateRecency(fresh, now, defaultRecencyDecayHours)
	oldScore := calculateRecency(old, now, defaultRecencyDecayHours)

	if freshScore <= oldScore {
		t.Fatalf("expected fresh memory to score higher: fresh=%f old=%f", freshScore, oldScore)
	}
	if freshScore < 0.99 {
		t.Fatalf("expected near-1.0 recency for brand new entry, got %f", freshScore)
	}
}

func TestCalculateImportance_FactBeatsGossip(t *testing.T) {
	fact := &models.MemoryEntry{
		InitialConfidence: 1.0,
		ConfidenceLevel:   models.ConfidenceFact,
		MemoryType:        models.MemoryTypeFact,
	}
	gossip := &models.MemoryEntry{
		InitialConfidence: 1.0,
		ConfidenceLevel:   models.ConfidenceGossip,
		MemoryType:        models.MemoryTypeObservation,
	}
	if calculateImportance(fact) <= calculateImportance(gossip) {
		t.Fatalf("expected fact to outscore gossip")
	}
}

func TestCalculateFrequency_LogScaled(t *testing.T) {
	if calculateFrequency(&models.MemoryEntry{AccessCount: 0}) != 0 {
		t.Fatal("expected zero frequency score with no accesses")
	}
	low := calculateFrequency(&models.MemoryEntry{AccessCount: 1})
	high := calculateFrequency(&models.MemoryEntry{AccessCount: 10})
	if !(low > 0 && low < high && high <= 1.0) {
		t.Fatalf("expected monotonic, capped frequency score: low=%f high=%f", low, high)
	}
}

func TestExtractKeywords_DedupsAndCaps(t *testing.T) {
	kws := extractKeywords("hello hello World foo bar baz", 3)
	if len(kws) != 3 {
		t.Fatalf("expected 3 keywords, got %d: %v", len(kws), kws)
	}
}

package memory

import (
	"testing"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

func TestFilterSignificant_StaleAndLowConfidence(t *testing.T) {
	now := time.Now()

	fresh := &models.MemoryEntry{
		InitialConfidence: 1.0,
		ConfidenceLevel:   models.ConfidenceFact,
		CreatedAt:         now,
		AccessCount:       1,
	}
	stale := &models.MemoryEntry{
		InitialConfidence: 1.0,
		ConfidenceLevel:   models.ConfidenceFact,
		CreatedAt:         now.Add(-10 * 24 * time.Hour),
		AccessCount:       0,
	}
	decayed := &models.MemoryEntry{
		InitialConfidence: 1.0,
		ConfidenceLevel:   models.ConfidenceGossip,
		CreatedAt:         now.Add(-30 * 24 * time.Hour),
		AccessCount:       5,
	}

	out := filterSignificant([]*models.MemoryEntry{fresh, stale, decayed}, now)
	if len(out) != 2 {
		t.Fatalf("expected 2 significant entries, got %d", len(out))
	}
	for _, e := range out {
		if e == fresh {
			t.Fatal("fresh, recently-accessed entry should not be significant")
		}
	}
}

func TestArchiveForgotten_OnlyBelowThreshold(t *testing.T) {
	now := time.Now()
	keep := &models.MemoryEntry{ID: "keep", InitialConfidence: 1.0, ConfidenceLevel: models.ConfidenceFact, CreatedAt: now}
	forget := &models.MemoryEntry{ID: "forget", InitialConfidence: 1.0, ConfidenceLevel: models.ConfidenceGossip, CreatedAt: now.Add(-60 * 24 * time.Hour)}

	ids := archiveForgotten([]*models.MemoryEntry{keep, forget}, now)
	if len(ids) != 1 || ids[0] != "forget" {
		t.Fatalf("expected only %q to be archived, got %v", "forget", ids)
	}
}

func TestRuleBasedExtract_LabelsAndDedups(t *testing.T) {
	entries := []*models.MemoryEntry{
		{Content: "I prefer dark mode. It helps at night."},
		{Content: "We decided to use Postgres for the new service."},
		{Content: "Shipped the release yesterday."},
		{Content: "Just a neutral observation with no signal."},
		{Content: "I prefer dark mode. It helps at night."},
	}

	out := ruleBasedExtract(entries)
	if len(out) != 3 {
		t.Fatalf("expected 3 distinct labeled extracts, got %d: %+v", len(out), out)
	}

	var sawPreference, sawDecision, sawMilestone bool
	for _, e := range out {
		switch {
		case len(e.Content) > 12 && e.Content[:12] == "[Preference]":
			sawPreference = true
		case len(e.Content) > 10 && e.Content[:10] == "[Decision]":
			sawDecision = true
		case len(e.Content) > 11 && e.Content[:11] == "[Milestone]":
			sawMilestone = true
		}
		if e.MemoryType != models.MemoryTypeSummary {
			t.Errorf("expected rule-based extracts to be summaries, got %v", e.MemoryType)
		}
	}
	if !sawPreference || !sawDecision || !sawMilestone {
		t.Fatalf("expected all three label kinds, got preference=%v decision=%v milestone=%v", sawPreference, sawDecision, sawMilestone)
	}
}

func TestAppendTag_NoDuplicate(t *testing.T) {
	tags := appendTag([]string{"a", "archived"}, "archived")
	if len(tags) != 2 {
		t.Fatalf("expected appendTag to skip duplicates, got %v", tags)
	}
	tags = appendTag([]string{"a"}, "archived")
	if len(tags) != 2 || tags[1] != "archived" {
		t.Fatalf("expected tag to be appended, got %v", tags)
	}
}

func TestConsolidate_NilManagerIsSafe(t *testing.T) {
	var m *Manager
	stats, err := m.Consolidate(nil, 7, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats == nil || !stats.DryRun {
		t.Fatalf("expected a dry-run stats struct, got %+v", stats)
	}
}

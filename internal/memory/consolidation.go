package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/haasonsaas/nexus/internal/llm"
	"github.com/haasonsaas/nexus/internal/memory/backend"
	"github.com/haasonsaas/nexus/pkg/models"
)

// staleAfter is how long an entry can sit unaccessed before it counts as
// "significant" for consolidation purposes even if its confidence hasn't
// dropped below the forget threshold yet.
const staleAfter = 3 * 24 * time.Hour

// minSignificantForLLM is the minimum number of significant events required
// before the LLM-based extractor is worth the round trip; below this the
// rule-based extractor runs instead, same as with few events there is
// rarely enough signal to justify the cost.
const minSignificantForLLM = 5

// ConsolidationStats summarizes one consolidation run.
type ConsolidationStats struct {
	Collected        int  `json:"collected"`
	Filtered         int  `json:"filtered"`
	FactsExtracted   int  `json:"facts_extracted"`
	BeliefsExtracted int  `json:"beliefs_extracted"`
	SummariesCreated int  `json:"summaries_created"`
	Archived         int  `json:"archived"`
	DryRun           bool `json:"dry_run"`
}

// extractedMemory is one fact/belief/summary the extraction phase proposes
// for storage as a new, synthesized entry.
type extractedMemory struct {
	Content         string               `json:"content"`
	MemoryType      models.MemoryType    `json:"memory_type"`
	ConfidenceLevel models.MemoryConfidence `json:"confidence_level"`
}

// Consolidate runs the sleep-like batch consolidation pipeline: it collects
// recent events, filters down to the significant ones, extracts durable
// facts/beliefs/summaries from them (via an LLM when one is configured and
// there's enough material, otherwise by heuristic), archives memories that
// have decayed past the forget threshold, and stores what it distilled.
// With dryRun set, nothing is written; the stats reflect what would happen.
func (m *Manager) Consolidate(ctx context.Context, daysBack int, dryRun bool) (*ConsolidationStats, error) {
	if m == nil || m.backend == nil {
		return &ConsolidationStats{DryRun: dryRun}, nil
	}
	if daysBack <= 0 {
		daysBack = 7
	}

	stats := &ConsolidationStats{DryRun: dryRun}
	now := time.Now()
	since := now.Add(-time.Duration(daysBack) * 24 * time.Hour)

	collected, err := collectSince(ctx, m.backend, since)
	if err != nil {
		return stats, fmt.Errorf("memory: consolidation collect: %w", err)
	}
	stats.Collected = len(collected)

	significant := filterSignificant(collected, now)
	stats.Filtered = len(significant)

	var extracted []extractedMemory
	if len(significant) > 0 {
		if m.extractor != nil && len(significant) >= minSignificantForLLM {
			extracted, err = llmExtractAndClassify(ctx, m.extractor, significant)
			if err != nil {
				extracted = ruleBasedExtract(significant)
			}
		} else {
			extracted = ruleBasedExtract(significant)
		}
	}

	for _, e := range extracted {
		switch e.MemoryType {
		case models.MemoryTypeFact:
			stats.FactsExtracted++
		case models.MemoryTypeBelief:
			stats.BeliefsExtracted++
		default:
			stats.SummariesCreated++
		}
	}

	archivedIDs := archiveForgotten(collected, now)
	stats.Archived = len(archivedIDs)

	if dryRun {
		return stats, nil
	}

	for _, id := range archivedIDs {
		entry := findByID(collected, id)
		if entry == nil {
			continue
		}
		entry.Tags = appendTag(entry.Tags, "archived")
		entry.UpdatedAt = now
		_ = updateEntry(ctx, m.backend, entry)
	}

	for _, e := range extracted {
		entry := &models.MemoryEntry{
			Content:           e.Content,
			MemoryType:        e.MemoryType,
			ConfidenceLevel:   e.ConfidenceLevel,
			InitialConfidence: 1.0,
			CurrentConfidence: 1.0,
			Tags:              []string{"consolidated"},
			Source:            "consolidation",
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if ierr := m.backend.Index(ctx, []*models.MemoryEntry{entry}); ierr != nil {
			continue
		}
	}

	return stats, nil
}

// Extractor is the LLM capability consolidation needs: a single chat
// completion, no tool calling. internal/llm.Adapter satisfies it directly.
type Extractor interface {
	Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec, choice llm.ToolChoice, temperature float64, maxTokens int) (*llm.Response, error)
}

func collectSince(ctx context.Context, b backend.Backend, since time.Time) ([]*models.MemoryEntry, error) {
	type afterGetter interface {
		GetAfter(ctx context.Context, scope models.MemoryScope, scopeID string, after time.Time, limit int) ([]*models.MemoryEntry, error)
	}
	ag, ok := b.(afterGetter)
	if !ok {
		return nil, nil
	}
	return ag.GetAfter(ctx, models.ScopeAll, "", since, 500)
}

// filterSignificant keeps entries that are either already below the forget
// threshold, or have sat unaccessed longer than staleAfter — both are
// signals that the entry needs deliberate attention during consolidation
// rather than being left to decay unattended.
func filterSignificant(entries []*models.MemoryEntry, now time.Time) []*models.MemoryEntry {
	var out []*models.MemoryEntry
	for _, e := range entries {
		if e == nil {
			continue
		}
		stale := e.AccessCount == 0 && now.Sub(e.CreatedAt) > staleAfter
		if e.ShouldForget(now) || stale {
			out = append(out, e)
		}
	}
	return out
}

// archiveForgotten scans ALL collected entries (not just the significant
// subset) for ones whose decayed confidence has crossed the forget
// threshold, and returns their IDs for archival tagging.
func archiveForgotten(entries []*models.MemoryEntry, now time.Time) []string {
	var ids []string
	for _, e := range entries {
		if e == nil {
			continue
		}
		if e.ShouldForget(now) {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

func findByID(entries []*models.MemoryEntry, id string) *models.MemoryEntry {
	for _, e := range entries {
		if e != nil && e.ID == id {
			return e
		}
	}
	return nil
}

func appendTag(tags []string, tag string) []string {
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	return append(tags, tag)
}

const consolidationPrompt = `You are distilling raw memory entries into durable facts, beliefs, and summaries.
Given the entries below, extract the few that are worth keeping long-term.
Respond with a JSON array of objects, each: {"content": string, "memory_type": "fact"|"belief"|"summary", "confidence_level": "fact"|"belief"|"summary"}.
Entries:
%s`

func llmExtractAndClassify(ctx context.Context, extractor Extractor, entries []*models.MemoryEntry) ([]extractedMemory, error) {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s\n", e.Content)
	}

	resp, err := extractor.Chat(ctx, []llm.Message{
		{Role: "user", Content: fmt.Sprintf(consolidationPrompt, b.String())},
	}, nil, llm.ToolChoiceNone, 0.2, 1024)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(resp.Content)
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("memory: consolidation extractor returned no JSON array")
	}

	var out []extractedMemory
	if err := json.Unmarshal([]byte(content[start:end+1]), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// preferenceKeywords/decisionKeywords/milestoneKeywords mirror the simple
// substring heuristics the reference assistant uses when no LLM is
// available to do the extraction.
var (
	preferenceKeywords = []string{"prefer", "like", "usually", "always", "habit"}
	decisionKeywords   = []string{"decided", "chose", "will use", "going with"}
	milestoneKeywords  = []string{"finished", "shipped", "released", "fixed"}
)

var sentenceSplit = regexp.MustCompile(`[.!?]\s+`)

// ruleBasedExtract distills significant entries into a handful of
// labeled summaries using keyword matching, same approach the Python
// original falls back to without an LLM client.
func ruleBasedExtract(entries []*models.MemoryEntry) []extractedMemory {
	seen := make(map[string]struct{})
	var out []extractedMemory

	for _, e := range entries {
		for _, line := range sentenceSplit.Split(e.Content, -1) {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			lower := strings.ToLower(line)

			var label string
			switch {
			case containsAny(lower, preferenceKeywords):
				label = "[Preference] "
			case containsAny(lower, decisionKeywords):
				label = "[Decision] "
			case containsAny(lower, milestoneKeywords):
				label = "[Milestone] "
			default:
				continue
			}

			content := label + line
			if _, ok := seen[content]; ok {
				continue
			}
			seen[content] = struct{}{}

			out = append(out, extractedMemory{
				Content:         content,
				MemoryType:      models.MemoryTypeSummary,
				ConfidenceLevel: models.ConfidenceSummary,
			})
			if len(out) >= 20 {
				return out
			}
		}
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

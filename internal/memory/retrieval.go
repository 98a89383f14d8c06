package memory

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/haasonsaas/nexus/internal/memory/backend"
	"github.com/haasonsaas/nexus/pkg/models"
)

// RIF score weights: Recency, Importance, Frequency, plus raw semantic
// similarity. These sum to 1.0 and are not currently configurable — the
// reference assistant treats them as fixed constants.
const (
	weightSemantic   = 0.3
	weightRecency    = 0.3
	weightImportance = 0.3
	weightFrequency  = 0.1

	defaultRecencyDecayHours = 7 * 24
)

// RetrievalResult carries a candidate memory plus its RIF score breakdown.
type RetrievalResult struct {
	Entry           *models.MemoryEntry
	SemanticScore   float64
	RecencyScore    float64
	ImportanceScore float64
	FrequencyScore  float64
	FinalScore      float64
}

var keywordPattern = regexp.MustCompile(`\w{2,}`)

func extractKeywords(text string, max int) []string {
	words := keywordPattern.FindAllString(text, -1)
	seen := make(map[string]struct{})
	var keywords []string
	for _, w := range words {
		lower := strings.ToLower(w)
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		keywords = append(keywords, w)
		if len(keywords) >= max {
			break
		}
	}
	return keywords
}

// Retrieve runs the multi-path RIF (Recency/Importance/Frequency) retrieval
// pipeline: vector recall, keyword recall as a fault-tolerant supplement,
// then a weighted rerank combining semantic similarity with recency decay,
// a memory's intrinsic importance, and how often it has been recalled.
func (m *Manager) Retrieve(ctx context.Context, query string, topK int, minConfidence float64, recencyDecayHours int) ([]RetrievalResult, error) {
	if m == nil || m.backend == nil {
		return nil, nil
	}
	if topK <= 0 {
		topK = 10
	}
	if recencyDecayHours <= 0 {
		recencyDecayHours = defaultRecencyDecayHours
	}

	candidates := make(map[string]*models.MemoryEntry)
	scores := make(map[string]float64)

	if m.embedder != nil {
		embed, err := m.embedder.Embed(ctx, query)
		if err == nil {
			vecResults, verr := m.backend.Search(ctx, embed, &backend.SearchOptions{Limit: topK * 2})
			if verr == nil {
				for _, r := range vecResults {
					if r == nil || r.Entry == nil {
						continue
					}
					candidates[r.Entry.ID] = r.Entry
					scores[r.Entry.ID] = float64(r.Score)
				}
			}
		}
	}

	for _, keyword := range extractKeywords(query, 3) {
		kwResults, err := kwSearch(ctx, m.backend, keyword, topK)
		if err != nil {
			continue
		}
		for _, r := range kwResults {
			if r == nil || r.Entry == nil {
				continue
			}
			if _, ok := candidates[r.Entry.ID]; !ok {
				candidates[r.Entry.ID] = r.Entry
				scores[r.Entry.ID] = 0.5
			} else {
				scores[r.Entry.ID] = math.Min(1.0, scores[r.Entry.ID]+0.1)
			}
		}
	}

	now := time.Now()
	var results []RetrievalResult
	for id, entry := range candidates {
		semantic := scores[id]
		recency := calculateRecency(entry, now, recencyDecayHours)
		importance := calculateImportance(entry)
		frequency := calculateFrequency(entry)

		final := semantic*weightSemantic + recency*weightRecency + importance*weightImportance + frequency*weightFrequency
		if final < minConfidence {
			continue
		}

		results = append(results, RetrievalResult{
			Entry:           entry,
			SemanticScore:   semantic,
			RecencyScore:    recency,
			ImportanceScore: importance,
			FrequencyScore:  frequency,
			FinalScore:      final,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].FinalScore > results[j].FinalScore })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// kwSearch dispatches to the backend's keyword search when it supports one,
// falling back to an empty result set otherwise.
func kwSearch(ctx context.Context, b backend.Backend, keyword string, limit int) ([]*models.SearchResult, error) {
	type keywordSearcher interface {
		SearchByKeyword(ctx context.Context, keyword string, opts *backend.SearchOptions) ([]*models.SearchResult, error)
	}
	if ks, ok := b.(keywordSearcher); ok {
		return ks.SearchByKeyword(ctx, keyword, &backend.SearchOptions{Limit: limit})
	}
	return nil, nil
}

func calculateRecency(entry *models.MemoryEntry, now time.Time, decayHours int) float64 {
	hoursAgo := now.Sub(entry.CreatedAt).Hours()
	if hoursAgo < 0 {
		hoursAgo = 0
	}
	return math.Exp(-hoursAgo / float64(decayHours))
}

var confidenceBonus = map[models.MemoryConfidence]float64{
	models.ConfidenceFact:    0.3,
	models.ConfidenceSummary: 0.2,
	models.ConfidenceBelief:  0.1,
	models.ConfidenceEvent:   0.0,
	models.ConfidenceGossip:  -0.1,
}

var typeBonus = map[models.MemoryType]float64{
	models.MemoryTypeFact:       0.15,
	models.MemoryTypeKnowledge:  0.1,
	models.MemoryTypeProcedural: 0.05,
	models.MemoryTypeSemantic:   0.1,
	models.MemoryTypeEpisodic:   0.05,
}

func calculateImportance(entry *models.MemoryEntry) float64 {
	base := entry.InitialConfidence
	score := base*0.5 + confidenceBonus[entry.ConfidenceLevel] + typeBonus[entry.MemoryType]
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

func calculateFrequency(entry *models.MemoryEntry) float64 {
	if entry.AccessCount == 0 {
		return 0
	}
	return math.Min(1.0, math.Log1p(float64(entry.AccessCount))/math.Log1p(10))
}

// RetrieveForContext retrieves and renders memories as a formatted context
// block bounded by max tokens, bumping each surfaced entry's access stats.
func (m *Manager) RetrieveForContext(ctx context.Context, query string, maxTokens, maxMemories int) (string, error) {
	results, err := m.Retrieve(ctx, query, maxMemories, 0.3, 0)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", nil
	}

	lines := []string{"[relevant memories]"}
	currentTokens := 0
	now := time.Now()

	for _, r := range results {
		line := "- " + r.Entry.Content
		lineTokens := EstimateTokens(line)
		if currentTokens+lineTokens > maxTokens {
			break
		}
		lines = append(lines, line)
		currentTokens += lineTokens

		r.Entry.Access(now)
		if err := updateEntry(ctx, m.backend, r.Entry); err != nil {
			continue
		}
	}

	return strings.Join(lines, "\n"), nil
}

func updateEntry(ctx context.Context, b backend.Backend, entry *models.MemoryEntry) error {
	type updater interface {
		Update(ctx context.Context, entry *models.MemoryEntry) error
	}
	if u, ok := b.(updater); ok {
		return u.Update(ctx, entry)
	}
	return b.Index(ctx, []*models.MemoryEntry{entry})
}

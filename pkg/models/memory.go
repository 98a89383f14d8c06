// Package models defines the core data types for Nexus.
package models

import (
	"math"
	"time"
)

// MemoryType classifies the kind of knowledge a MemoryEntry carries.
type MemoryType string

const (
	MemoryTypeObservation MemoryType = "observation"
	MemoryTypeFact        MemoryType = "fact"
	MemoryTypeKnowledge   MemoryType = "knowledge"
	MemoryTypeEpisodic    MemoryType = "episodic"
	MemoryTypeSemantic    MemoryType = "semantic"
	MemoryTypeProcedural  MemoryType = "procedural"
	MemoryTypeEmotional   MemoryType = "emotional"
	MemoryTypeSummary     MemoryType = "summary"
	MemoryTypeBelief      MemoryType = "belief"
)

// MemoryConfidence is the decay tier of a memory entry: how quickly its
// current_confidence fades from its initial value over time.
type MemoryConfidence string

const (
	ConfidenceFact    MemoryConfidence = "fact"
	ConfidenceSummary MemoryConfidence = "summary"
	ConfidenceBelief  MemoryConfidence = "belief"
	ConfidenceEvent   MemoryConfidence = "event"
	ConfidenceGossip  MemoryConfidence = "gossip"
)

// DecayRate returns the per-day confidence decay rate for a confidence level.
func (c MemoryConfidence) DecayRate() float64 {
	switch c {
	case ConfidenceFact:
		return 0.008
	case ConfidenceSummary:
		return 0.025
	case ConfidenceBelief:
		return 0.07
	case ConfidenceEvent:
		return 0.15
	case ConfidenceGossip:
		return 0.20
	default:
		return 0.07
	}
}

// ForgetThreshold is the current_confidence below which an entry is
// eligible for forgetting (archival).
const ForgetThreshold = 0.3

// AccessBoost is added to a memory's decayed confidence each time it is
// accessed, modeling reinforcement through use.
const AccessBoost = 0.02

// MemoryEntry represents a memory item stored in the vector database for semantic search.
type MemoryEntry struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
	AgentID   string `json:"agent_id,omitempty"`

	Content          string           `json:"content"`
	MemoryType       MemoryType       `json:"memory_type"`
	ConfidenceLevel  MemoryConfidence `json:"confidence_level"`
	InitialConfidence float64         `json:"initial_confidence"`
	CurrentConfidence float64         `json:"current_confidence"`
	AccessCount      int              `json:"access_count"`
	Tags             []string         `json:"tags,omitempty"`
	Source           string           `json:"source,omitempty"`

	Metadata MemoryMetadata `json:"metadata"`

	Embedding    []float32 `json:"-"` // Not serialized to JSON
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastAccessed time.Time `json:"last_accessed"`
}

// DecayedConfidence computes the entry's current_confidence as of `now`,
// applying the exponential decay curve for its confidence level. It does not
// mutate the entry; callers that want the side effect should call Access.
func (m *MemoryEntry) DecayedConfidence(now time.Time) float64 {
	days := now.Sub(m.CreatedAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	rate := m.ConfidenceLevel.DecayRate()
	decayed := m.InitialConfidence * math.Pow(1-rate, days)
	if decayed > m.InitialConfidence {
		decayed = m.InitialConfidence
	}
	if decayed < 0 {
		decayed = 0
	}
	return decayed
}

// ShouldForget reports whether the entry's decayed confidence has fallen
// below ForgetThreshold as of now.
func (m *MemoryEntry) ShouldForget(now time.Time) bool {
	return m.DecayedConfidence(now) < ForgetThreshold
}

// Access bumps last_accessed/access_count and nudges current_confidence
// upward by AccessBoost (capped at initial_confidence), modeling the fact
// that recalled memories are reinforced.
func (m *MemoryEntry) Access(now time.Time) {
	m.LastAccessed = now
	m.AccessCount++
	boosted := m.DecayedConfidence(now) + AccessBoost
	if boosted > m.InitialConfidence {
		boosted = m.InitialConfidence
	}
	m.CurrentConfidence = boosted
}

// MemoryMetadata contains additional information about a memory entry.
type MemoryMetadata struct {
	Source string         `json:"source"` // "message", "document", "note"
	Role   string         `json:"role"`   // "user", "assistant"
	Tags   []string       `json:"tags"`
	Extra  map[string]any `json:"extra"`
}

// MemoryScope defines the scope for memory search/indexing.
type MemoryScope string

const (
	// ScopeSession limits memory to the current session.
	ScopeSession MemoryScope = "session"
	// ScopeChannel limits memory to the current channel.
	ScopeChannel MemoryScope = "channel"
	// ScopeAgent limits memory to the current agent.
	ScopeAgent MemoryScope = "agent"
	// ScopeGlobal searches all memories.
	ScopeGlobal MemoryScope = "global"
	// ScopeAll is an alias for ScopeGlobal used by hierarchical search's
	// scope list to mean "no scope filter at all".
	ScopeAll MemoryScope = "all"
)

// SearchRequest defines parameters for semantic memory search.
type SearchRequest struct {
	Query     string         `json:"query"`
	Scope     MemoryScope    `json:"scope"`
	ScopeID   string         `json:"scope_id"`
	Limit     int            `json:"limit"`
	Threshold float32        `json:"threshold"` // Min similarity (0-1)
	Filters   map[string]any `json:"filters"`
}

// SearchResult represents a single search result.
type SearchResult struct {
	Entry      *MemoryEntry `json:"entry"`
	Score      float32      `json:"score"`      // Similarity score (0-1)
	Highlights []string     `json:"highlights"` // Matched snippets
}

// SearchResponse contains the results of a memory search.
type SearchResponse struct {
	Results    []*SearchResult `json:"results"`
	TotalCount int             `json:"total_count"`
	QueryTime  time.Duration   `json:"query_time"`
}

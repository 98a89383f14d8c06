// Package memory implements the two-tier memory subsystem: a bounded,
// token-aware WorkingMemory for the active conversation and a durable
// long-term store with confidence decay and multi-signal retrieval.
package memory

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	tokenRatioCJK  = 0.5
	tokenRatioText = 0.25

	// SummaryTriggerRatio is the fraction of MaxTokens at which the message
	// buffer starts summarizing old turns instead of just trimming them.
	SummaryTriggerRatio = 0.8

	recentMessagesKept = 5
)

// EstimateTokens heuristically estimates the token count of text using a
// per-character ratio for CJK characters versus other text, since an exact
// tokenizer isn't available for every configured provider.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	var cjk, other int
	for _, r := range text {
		if r >= 0x4e00 && r <= 0x9fff {
			cjk++
		} else {
			other++
		}
	}
	tokens := int(float64(cjk)*tokenRatioCJK + float64(other)*tokenRatioText)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

var summaryKeywords = []struct {
	keyword, topic string
}{
	{"create", "creation"},
	{"search", "search"},
	{"query", "query"},
	{"calculate", "calculation"},
	{"analyze", "analysis"},
	{"weather", "weather lookup"},
	{"task", "task management"},
	{"remember", "memory operations"},
	{"config", "configuration"},
	{"delete", "deletion"},
}

func summarizeMessages(msgs []Message) string {
	if len(msgs) == 0 {
		return ""
	}
	topics := make(map[string]struct{})
	for _, m := range msgs {
		lower := strings.ToLower(m.Content)
		for _, kw := range summaryKeywords {
			if strings.Contains(lower, kw.keyword) {
				topics[kw.topic] = struct{}{}
			}
		}
	}
	if len(topics) > 0 {
		list := make([]string, 0, len(topics))
		for t := range topics {
			list = append(list, t)
		}
		return fmt.Sprintf("earlier conversation touched on: %s", strings.Join(list, ", "))
	}
	return fmt.Sprintf("earlier conversation spanned %d messages", len(msgs))
}

// WorkingMemoryConfig bounds the size of a WorkingMemory instance.
type WorkingMemoryConfig struct {
	MaxTokens          int
	MaxSlots           int
	MaxMessages        int
	IdentityTokens     int
	ContextTokens      int
	FactsTokens        int
	EnableCompression  bool
}

// DefaultWorkingMemoryConfig mirrors the defaults of the reference assistant.
func DefaultWorkingMemoryConfig() WorkingMemoryConfig {
	return WorkingMemoryConfig{
		MaxTokens:         2000,
		MaxSlots:          10,
		MaxMessages:       20,
		IdentityTokens:    500,
		ContextTokens:     500,
		FactsTokens:       1000,
		EnableCompression: true,
	}
}

// Slot is a named, priority-ranked region of working memory (identity,
// current context, key facts, or a caller-defined scratch slot).
type Slot struct {
	Name      string
	Content   string
	MaxTokens int
	Priority  int
}

// Message is one turn of the active conversation buffer.
type Message struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// WorkingMemory is the short-term memory tier: small, fast, and capacity
// bounded, the way human working memory holds only what's immediately
// relevant. It evicts and summarizes automatically as it fills.
type WorkingMemory struct {
	mu      sync.RWMutex
	config  WorkingMemoryConfig
	slots   map[string]*Slot
	history []Message
	summary string
	logger  *slog.Logger
}

// NewWorkingMemory constructs a WorkingMemory with its three default slots:
// identity (highest priority, never trimmed), context, and facts.
func NewWorkingMemory(cfg WorkingMemoryConfig, logger *slog.Logger) *WorkingMemory {
	if logger == nil {
		logger = slog.Default()
	}
	wm := &WorkingMemory{
		config: cfg,
		slots:  make(map[string]*Slot),
		logger: logger,
	}
	wm.slots["identity"] = &Slot{Name: "identity", MaxTokens: cfg.IdentityTokens, Priority: 10}
	wm.slots["context"] = &Slot{Name: "context", MaxTokens: cfg.ContextTokens, Priority: 5}
	wm.slots["facts"] = &Slot{Name: "facts", MaxTokens: cfg.FactsTokens, Priority: 3}
	return wm
}

// AddMessage appends a conversation turn and runs the compression policy.
func (w *WorkingMemory) AddMessage(role, content string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.history = append(w.history, Message{Role: role, Content: content, Timestamp: time.Now()})
	w.manageContext()
}

func (w *WorkingMemory) manageContext() {
	if !w.config.EnableCompression {
		w.trimByCount()
		return
	}
	total := w.totalMessageTokens()
	if float64(total) <= float64(w.config.MaxTokens)*SummaryTriggerRatio {
		if len(w.history) > w.config.MaxMessages {
			w.trimByCount()
		}
		return
	}
	w.compressContext()
}

func (w *WorkingMemory) totalMessageTokens() int {
	total := 0
	for _, m := range w.history {
		total += EstimateTokens(m.Content)
	}
	return total
}

func (w *WorkingMemory) trimByCount() {
	if len(w.history) <= w.config.MaxMessages {
		return
	}
	var system, other []Message
	for _, m := range w.history {
		if m.Role == "system" {
			system = append(system, m)
		} else {
			other = append(other, m)
		}
	}
	keep := w.config.MaxMessages - len(system)
	if keep < 0 {
		keep = 0
	}
	if keep < len(other) {
		other = other[len(other)-keep:]
	}
	w.history = append(system, other...)
}

// compressContext keeps all system messages and the most recent turns
// verbatim, folding everything older into a running summary string.
func (w *WorkingMemory) compressContext() {
	var system, other []Message
	for _, m := range w.history {
		if m.Role == "system" {
			system = append(system, m)
		} else {
			other = append(other, m)
		}
	}
	if len(other) <= recentMessagesKept {
		w.trimByCount()
		return
	}
	old := other[:len(other)-recentMessagesKept]
	recent := other[len(other)-recentMessagesKept:]

	if len(old) > 0 {
		newSummary := summarizeMessages(old)
		if w.summary != "" {
			w.summary = w.summary + "; " + newSummary
		} else {
			w.summary = newSummary
		}
	}
	w.history = append(system, recent...)
	w.logger.Debug("compressed working memory context", "kept_messages", len(w.history), "summary_len", len(w.summary))
}

// Summary returns the running summary of history folded out of the buffer.
func (w *WorkingMemory) Summary() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.summary
}

// Messages returns the live message buffer, optionally with the running
// summary spliced in as a system message immediately after the last
// existing system message (or at the front if there is none).
func (w *WorkingMemory) Messages(includeSummary bool) []Message {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Message, len(w.history))
	copy(out, w.history)

	if !includeSummary || w.summary == "" {
		return out
	}
	summaryMsg := Message{Role: "system", Content: "[conversation summary] " + w.summary}
	lastSystem := -1
	for i, m := range out {
		if m.Role == "system" {
			lastSystem = i
		}
	}
	if lastSystem < 0 {
		return append([]Message{summaryMsg}, out...)
	}
	result := make([]Message, 0, len(out)+1)
	result = append(result, out[:lastSystem+1]...)
	result = append(result, summaryMsg)
	result = append(result, out[lastSystem+1:]...)
	return result
}

// SetIdentity overwrites the identity slot (user preferences, persona).
func (w *WorkingMemory) SetIdentity(content string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.slots["identity"].Content = content
}

// SetContext overwrites the current-context slot.
func (w *WorkingMemory) SetContext(content string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.slots["context"].Content = content
}

// AddFact appends a bullet point to the facts slot.
func (w *WorkingMemory) AddFact(fact string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.slots["facts"]
	if s.Content != "" {
		s.Content += "\n- " + fact
	} else {
		s.Content = "- " + fact
	}
}

// FullContext renders identity, summary, context, and facts into one
// formatted prompt section, in priority order.
func (w *WorkingMemory) FullContext() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var sections []string
	if id := w.slots["identity"].Content; id != "" {
		sections = append(sections, "[identity/preferences]\n"+id)
	}
	if w.summary != "" {
		sections = append(sections, "[history summary]\n"+w.summary)
	}
	if ctx := w.slots["context"].Content; ctx != "" {
		sections = append(sections, "[current context]\n"+ctx)
	}
	if facts := w.slots["facts"].Content; facts != "" {
		sections = append(sections, "[key facts]\n"+facts)
	}
	return strings.Join(sections, "\n\n")
}

// IsWithinLimit reports whether total estimated tokens (slots + messages)
// fit inside MaxTokens.
func (w *WorkingMemory) IsWithinLimit() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.totalTokensLocked() <= w.config.MaxTokens
}

func (w *WorkingMemory) totalTokensLocked() int {
	total := w.totalMessageTokens()
	for _, s := range w.slots {
		total += EstimateTokens(s.Content)
	}
	return total
}

// Summarizer produces an abbreviated version of content bounded to roughly
// targetTokens, used by Compact when an LLM-backed summarizer is available.
type Summarizer interface {
	Summarize(content string, targetTokens int) (string, error)
}

// Compact shrinks any slot that has grown past its token budget. The
// identity slot is never trimmed. If summarizer is non-nil the context slot
// is summarized through it; otherwise (and for every other oversized slot)
// the oldest content is simply dropped, keeping the tail.
func (w *WorkingMemory) Compact(summarizer Summarizer) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for name, slot := range w.slots {
		if name == "identity" {
			continue
		}
		tokens := EstimateTokens(slot.Content)
		if tokens <= slot.MaxTokens || tokens == 0 {
			continue
		}
		if name == "context" && summarizer != nil {
			if summary, err := summarizer.Summarize(slot.Content, slot.MaxTokens); err == nil {
				slot.Content = "[summary] " + strings.TrimSpace(summary)
				continue
			}
			w.logger.Warn("llm summarization failed, falling back to truncation", "slot", name)
		}
		ratio := float64(slot.MaxTokens) / float64(tokens)
		keepChars := int(float64(len(slot.Content)) * ratio * 0.8)
		if keepChars < 0 {
			keepChars = 0
		}
		if keepChars > len(slot.Content) {
			keepChars = len(slot.Content)
		}
		slot.Content = "..." + slot.Content[len(slot.Content)-keepChars:]
	}
	w.manageContext()
}

// ClearContext resets the context slot and message buffer, as on session end.
func (w *WorkingMemory) ClearContext() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.slots["context"].Content = ""
	w.history = nil
	w.summary = ""
}

// ClearAll resets every slot plus the message buffer.
func (w *WorkingMemory) ClearAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range w.slots {
		s.Content = ""
	}
	w.history = nil
	w.summary = ""
}

// WriteSlot creates or overwrites a named slot. When the slot count is at
// MaxSlots, the lowest-priority non-identity slot is evicted only if its
// priority is lower than the incoming write; otherwise the write is dropped.
func (w *WorkingMemory) WriteSlot(name, content string, priority float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	intPriority := int(priority * 10)
	if existing, ok := w.slots[name]; ok {
		existing.Content = content
		existing.Priority = intPriority
		return
	}

	if len(w.slots) >= w.config.MaxSlots {
		var lowest *Slot
		for _, s := range w.slots {
			if s.Name == "identity" {
				continue
			}
			if lowest == nil || s.Priority < lowest.Priority {
				lowest = s
			}
		}
		if lowest != nil && lowest.Priority < intPriority {
			delete(w.slots, lowest.Name)
			w.logger.Debug("evicted working memory slot", "slot", lowest.Name)
		} else {
			w.logger.Warn("working memory slots full, dropping write", "slot", name)
			return
		}
	}

	w.slots[name] = &Slot{Name: name, Content: content, MaxTokens: 500, Priority: intPriority}
}

// ReadSlot returns a copy of the named slot, or false if it doesn't exist.
func (w *WorkingMemory) ReadSlot(name string) (Slot, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, ok := w.slots[name]
	if !ok {
		return Slot{}, false
	}
	return *s, true
}

// Context returns the current-context slot's content.
func (w *WorkingMemory) Context() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.slots["context"].Content
}

// WorkingMemoryStats reports current token usage against the configured budget.
type WorkingMemoryStats struct {
	MessageCount int
	MessageTokens int
	SlotCount    int
	SlotTokens   int
	TotalTokens  int
	MaxTokens    int
	UsageRatio   float64
	HasSummary   bool
	WithinLimit  bool
}

// Stats computes a snapshot of current usage.
func (w *WorkingMemory) Stats() WorkingMemoryStats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	msgTokens := w.totalMessageTokens()
	slotTokens := 0
	for _, s := range w.slots {
		slotTokens += EstimateTokens(s.Content)
	}
	total := msgTokens + slotTokens
	return WorkingMemoryStats{
		MessageCount:  len(w.history),
		MessageTokens: msgTokens,
		SlotCount:     len(w.slots),
		SlotTokens:    slotTokens,
		TotalTokens:   total,
		MaxTokens:     w.config.MaxTokens,
		UsageRatio:    float64(total) / float64(w.config.MaxTokens),
		HasSummary:    w.summary != "",
		WithinLimit:   total <= w.config.MaxTokens,
	}
}

package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

// AutoConsolidationConfig configures the three-layer automatic consolidation
// schedule: a lightweight hourly check during waking hours, a nightly pass
// over the day's memories, and a weekly distillation into core, durable
// memories.
type AutoConsolidationConfig struct {
	DailyHour      int           `yaml:"daily_hour"`       // 0-23, default 23
	WeeklyDay      time.Weekday  `yaml:"weekly_day"`       // default Sunday
	WeeklyHour     int           `yaml:"weekly_hour"`      // 0-23, default 22
	MicroSyncHours []int         `yaml:"micro_sync_hours"` // default 10,13,16,19,22
	TickInterval   time.Duration `yaml:"-"`                // default time.Minute; test hook
}

func (c AutoConsolidationConfig) withDefaults() AutoConsolidationConfig {
	if c.DailyHour == 0 {
		c.DailyHour = 23
	}
	if c.WeeklyHour == 0 {
		c.WeeklyHour = 22
	}
	if len(c.MicroSyncHours) == 0 {
		c.MicroSyncHours = []int{10, 13, 16, 19, 22}
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Minute
	}
	return c
}

// LayerResult records the outcome of one scheduled layer's run.
type LayerResult struct {
	Layer          string    `json:"layer"` // daily/weekly/micro
	Success        bool      `json:"success"`
	ItemsProcessed int       `json:"items_processed"`
	ItemsExtracted int       `json:"items_extracted"`
	Errors         []string  `json:"errors,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// AutoConsolidationScheduler drives the three consolidation layers off a
// minute-granularity clock, same cadence the reference assistant polls at,
// without requiring an external cron entry.
type AutoConsolidationScheduler struct {
	manager *Manager
	working *WorkingMemory // optional; powers the micro-sync layer
	cfg     AutoConsolidationConfig
	logger  *slog.Logger
	now     func() time.Time

	mu          sync.Mutex
	started     bool
	wg          sync.WaitGroup
	lastResults []LayerResult
}

// NewAutoConsolidationScheduler builds a scheduler bound to manager, with an
// optional WorkingMemory to power the micro-sync layer's activity check.
func NewAutoConsolidationScheduler(manager *Manager, working *WorkingMemory, cfg AutoConsolidationConfig, logger *slog.Logger) *AutoConsolidationScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AutoConsolidationScheduler{
		manager: manager,
		working: working,
		cfg:     cfg.withDefaults(),
		logger:  logger.With("component", "memory.auto_consolidation"),
		now:     time.Now,
	}
}

// Start runs the scheduler loop in a background goroutine until ctx is
// canceled. Stop does not end the loop; it only waits for it to exit.
func (s *AutoConsolidationScheduler) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	s.logger.Info("auto consolidation scheduler started",
		"daily_hour", s.cfg.DailyHour, "weekly_day", s.cfg.WeeklyDay, "weekly_hour", s.cfg.WeeklyHour,
		"micro_sync_hours", s.cfg.MicroSyncHours)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
	return nil
}

// Stop waits for the scheduler's background loop to exit.
func (s *AutoConsolidationScheduler) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AutoConsolidationScheduler) tick(ctx context.Context) {
	now := s.now()

	if containsInt(s.cfg.MicroSyncHours, now.Hour()) && now.Minute() == 0 {
		s.record(s.microSync(ctx, now))
	}
	if now.Hour() == s.cfg.DailyHour && now.Minute() == 0 {
		s.record(s.dailySync(ctx, now))
	}
	if now.Weekday() == s.cfg.WeeklyDay && now.Hour() == s.cfg.WeeklyHour && now.Minute() == 0 {
		s.record(s.weeklyCompound(ctx, now))
	}
}

func (s *AutoConsolidationScheduler) record(r LayerResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastResults = append(s.lastResults, r)
	if len(s.lastResults) > 100 {
		s.lastResults = s.lastResults[len(s.lastResults)-50:]
	}
}

// Status reports whether the scheduler is running plus its most recent
// per-layer results, for diagnostics/health endpoints.
func (s *AutoConsolidationScheduler) Status() (running bool, lastResults []LayerResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.lastResults)
	if n > 5 {
		n = 5
	}
	out := make([]LayerResult, n)
	copy(out, s.lastResults[len(s.lastResults)-n:])
	return s.started, out
}

// dailySync (Layer 1) recalls the day's activity and distills it into facts
// via the same rule-based labeling consolidation uses, without touching the
// decay/archival phases — it's meant to be cheap and run every night.
func (s *AutoConsolidationScheduler) dailySync(ctx context.Context, now time.Time) LayerResult {
	result := LayerResult{Layer: "daily", Timestamp: now}

	recalled, err := s.manager.Retrieve(ctx, "today's activity conversations decisions", 20, 0, 0)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	result.ItemsProcessed = len(recalled)

	entries := make([]*models.MemoryEntry, len(recalled))
	for i, r := range recalled {
		entries[i] = r.Entry
	}
	extracted := ruleBasedExtract(entries)
	result.ItemsExtracted = len(extracted)

	for _, e := range extracted {
		entry := &models.MemoryEntry{
			Content:           e.Content,
			MemoryType:        e.MemoryType,
			ConfidenceLevel:   e.ConfidenceLevel,
			InitialConfidence: 1.0,
			CurrentConfidence: 1.0,
			Tags:              []string{"daily_sync"},
			Source:            "auto_consolidation",
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := s.manager.backend.Index(ctx, []*models.MemoryEntry{entry}); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
	}

	result.Success = len(result.Errors) == 0
	return result
}

// weeklyCompound (Layer 2) runs the full consolidation pipeline over the
// trailing week, distilling down to core, durable memories.
func (s *AutoConsolidationScheduler) weeklyCompound(ctx context.Context, now time.Time) LayerResult {
	result := LayerResult{Layer: "weekly", Timestamp: now}

	stats, err := s.manager.Consolidate(ctx, 7, false)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	result.ItemsProcessed = stats.Collected
	result.ItemsExtracted = stats.FactsExtracted + stats.BeliefsExtracted + stats.SummariesCreated
	result.Success = true
	return result
}

// microSync (Layer 3) is a cheap, frequent check of the live working memory
// buffer: if nothing substantial has accumulated, it's a silent no-op,
// same as the reference assistant's micro-sync layer.
func (s *AutoConsolidationScheduler) microSync(ctx context.Context, now time.Time) LayerResult {
	result := LayerResult{Layer: "micro", Timestamp: now, Success: true}

	if s.working == nil {
		return result
	}
	recentContext := s.working.Context()
	if len(recentContext) < 100 {
		return result
	}

	snippet := recentContext
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	entry := &models.MemoryEntry{
		Content:           fmt.Sprintf("[Micro-Sync] %s...", snippet),
		MemoryType:        models.MemoryTypeSummary,
		ConfidenceLevel:   models.ConfidenceEvent,
		InitialConfidence: 0.6,
		CurrentConfidence: 0.6,
		Tags:              []string{"micro_sync"},
		Source:            "auto_consolidation",
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.manager.backend.Index(ctx, []*models.MemoryEntry{entry}); err != nil {
		result.Success = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	result.ItemsProcessed = 1
	result.ItemsExtracted = 1
	return result
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

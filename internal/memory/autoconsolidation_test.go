package memory

import (
	"testing"
	"time"
)

func TestAutoConsolidationConfig_Defaults(t *testing.T) {
	cfg := AutoConsolidationConfig{}.withDefaults()
	if cfg.DailyHour != 23 {
		t.Errorf("DailyHour = %d, want 23", cfg.DailyHour)
	}
	if cfg.WeeklyHour != 22 {
		t.Errorf("WeeklyHour = %d, want 22", cfg.WeeklyHour)
	}
	if len(cfg.MicroSyncHours) != 5 {
		t.Errorf("expected 5 default micro-sync hours, got %v", cfg.MicroSyncHours)
	}
	if cfg.TickInterval != time.Minute {
		t.Errorf("TickInterval = %v, want 1m", cfg.TickInterval)
	}
}

func TestContainsInt(t *testing.T) {
	hours := []int{10, 13, 16, 19, 22}
	if !containsInt(hours, 13) {
		t.Error("expected 13 to be found")
	}
	if containsInt(hours, 12) {
		t.Error("expected 12 to be absent")
	}
}

func TestAutoConsolidationScheduler_StatusBeforeStart(t *testing.T) {
	s := NewAutoConsolidationScheduler(nil, nil, AutoConsolidationConfig{}, nil)
	running, results := s.Status()
	if running {
		t.Error("expected scheduler to report not running before Start")
	}
	if len(results) != 0 {
		t.Errorf("expected no results before any tick, got %v", results)
	}
}

func TestAutoConsolidationScheduler_MicroSyncNilWorkingMemoryIsNoop(t *testing.T) {
	s := NewAutoConsolidationScheduler(nil, nil, AutoConsolidationConfig{}, nil)
	result := s.microSync(nil, time.Now())
	if !result.Success || result.ItemsProcessed != 0 {
		t.Fatalf("expected a silent no-op result, got %+v", result)
	}
}

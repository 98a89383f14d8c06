package agent

import (
	"testing"
	"time"
)

func TestMetrics_Summary(t *testing.T) {
	m := NewMetrics(false)
	m.RecordLLMCall("fake", 10*time.Millisecond)
	m.RecordLLMCall("fake", 20*time.Millisecond)
	m.RecordToolCall("list_tasks", true, 5*time.Millisecond)
	m.RecordToolCall("list_tasks", false, 15*time.Millisecond)
	m.RecordMode(ModeSingleStep)
	m.RecordMode(ModeSingleStep)
	m.RecordMode(ModeFastPath)
	m.RecordError("boom")

	summary := m.Summary()
	if summary["llm_calls"].(int) != 2 {
		t.Fatalf("expected 2 llm calls, got %v", summary["llm_calls"])
	}
	if summary["error_count"].(int) != 1 {
		t.Fatalf("expected 1 recorded error, got %v", summary["error_count"])
	}
	modeUsage := summary["mode_usage"].(map[string]int)
	if modeUsage["single_step"] != 2 || modeUsage["fast_path"] != 1 {
		t.Fatalf("unexpected mode usage: %v", modeUsage)
	}
	toolCalls := summary["tool_calls"].(map[string]any)
	listStats := toolCalls["list_tasks"].(map[string]any)
	if listStats["success"].(int) != 1 || listStats["failed"].(int) != 1 {
		t.Fatalf("unexpected tool stats: %v", listStats)
	}
}

func TestMetrics_ErrorLogIsBounded(t *testing.T) {
	m := NewMetrics(false)
	m.maxErrorLog = 3
	for i := 0; i < 10; i++ {
		m.RecordError("err")
	}
	if len(m.errors) != 3 {
		t.Fatalf("expected error log capped at 3, got %d", len(m.errors))
	}
}

func TestMetrics_PrometheusMirroringDoesNotPanic(t *testing.T) {
	m := NewMetrics(true)
	m.RecordLLMCall("fake", time.Millisecond)
	m.RecordToolCall("create_task", true, time.Millisecond)
	m.RecordMode(ModeMultiStep)
}

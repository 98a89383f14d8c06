package memory

import "testing"

func TestEstimateTokens_MixedScript(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Fatalf("empty text: got %d", got)
	}
	if got := EstimateTokens("a"); got != 1 {
		t.Fatalf("single char floors to 1: got %d", got)
	}
	cjk := EstimateTokens("你好世界")
	if cjk != 2 {
		t.Fatalf("4 cjk chars at 0.5 ratio: got %d", cjk)
	}
}

func TestWorkingMemory_SlotsAndContext(t *testing.T) {
	wm := NewWorkingMemory(DefaultWorkingMemoryConfig(), nil)
	wm.SetIdentity("likes concise answers")
	wm.SetContext("discussing deployment plan")
	wm.AddFact("prefers Go over Python")
	wm.AddFact("timezone is UTC+8")

	ctx := wm.FullContext()
	if ctx == "" {
		t.Fatal("expected non-empty full context")
	}
	slot, ok := wm.ReadSlot("facts")
	if !ok {
		t.Fatal("expected facts slot to exist")
	}
	if slot.Content == "" {
		t.Fatal("expected facts content")
	}
}

func TestWorkingMemory_TrimByCount(t *testing.T) {
	cfg := DefaultWorkingMemoryConfig()
	cfg.MaxMessages = 3
	cfg.EnableCompression = false
	wm := NewWorkingMemory(cfg, nil)
	for i := 0; i < 10; i++ {
		wm.AddMessage("user", "hello")
	}
	if got := len(wm.Messages(false)); got != 3 {
		t.Fatalf("expected trim to 3 messages, got %d", got)
	}
}

func TestWorkingMemory_CompressesOnOverflow(t *testing.T) {
	cfg := DefaultWorkingMemoryConfig()
	cfg.MaxTokens = 10
	cfg.MaxMessages = 100
	wm := NewWorkingMemory(cfg, nil)
	for i := 0; i < 20; i++ {
		wm.AddMessage("user", "this is a reasonably long message to inflate token counts")
	}
	if wm.Summary() == "" {
		t.Fatal("expected compression to produce a summary")
	}
	if len(wm.Messages(false)) > recentMessagesKept {
		t.Fatalf("expected at most %d messages retained, got %d", recentMessagesKept, len(wm.Messages(false)))
	}
}

func TestWorkingMemory_WriteSlotEviction(t *testing.T) {
	cfg := DefaultWorkingMemoryConfig()
	cfg.MaxSlots = 3
	wm := NewWorkingMemory(cfg, nil)
	// identity, context, facts already occupy all 3 slots.
	wm.WriteSlot("low_priority_scratch", "x", 0.01)
	if _, ok := wm.ReadSlot("low_priority_scratch"); ok {
		t.Fatal("expected low priority write to be dropped when slots are full")
	}
	wm.WriteSlot("high_priority_scratch", "x", 2.0)
	if _, ok := wm.ReadSlot("high_priority_scratch"); !ok {
		t.Fatal("expected high priority write to evict a lower priority slot")
	}
}

func TestWorkingMemory_ClearAll(t *testing.T) {
	wm := NewWorkingMemory(DefaultWorkingMemoryConfig(), nil)
	wm.SetIdentity("x")
	wm.AddMessage("user", "hi")
	wm.ClearAll()
	if wm.FullContext() != "" {
		t.Fatal("expected empty context after ClearAll")
	}
	if len(wm.Messages(false)) != 0 {
		t.Fatal("expected empty message buffer after ClearAll")
	}
}

func TestWorkingMemory_Stats(t *testing.T) {
	wm := NewWorkingMemory(DefaultWorkingMemoryConfig(), nil)
	wm.AddMessage("user", "hello there")
	stats := wm.Stats()
	if stats.MessageCount != 1 {
		t.Fatalf("expected 1 message, got %d", stats.MessageCount)
	}
	if !stats.WithinLimit {
		t.Fatal("expected small buffer to be within limit")
	}
}

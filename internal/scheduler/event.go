package scheduler

import (
	"context"
	"log/slog"
)

// EventCondition gates whether an EventTrigger's action runs for a given
// event's data.
type EventCondition func(data map[string]any) bool

// EventAction runs when an EventTrigger's condition passes.
type EventAction func(ctx context.Context, data map[string]any) error

// EventTrigger pairs a condition with an action for one registered event
// type. Unlike CronTrigger/HeartbeatTrigger it has no loop of its own —
// HybridScheduler.Emit evaluates it synchronously when a matching event
// arrives, mirroring scheduler.py's emit_event/register_event pair.
type EventTrigger struct {
	EventType string
	Condition EventCondition
	Action    EventAction
}

// checkAndTrigger evaluates the condition and, if it passes, runs the
// action in its own goroutine so a slow handler never blocks Emit's other
// registered handlers.
func (t *EventTrigger) checkAndTrigger(ctx context.Context, data map[string]any, logger *slog.Logger) bool {
	if t.Condition == nil || !t.Condition(data) {
		return false
	}
	go func() {
		if t.Action == nil {
			return
		}
		if err := t.Action(ctx, data); err != nil {
			logger.Error("event action failed", "event_type", t.EventType, "error", err)
		}
	}()
	return true
}

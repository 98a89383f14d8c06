package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/haasonsaas/nexus/internal/config"
)

// HybridScheduler combines the three trigger kinds the personal assistant
// needs: Cron (traditional time-of-day triggers), Heartbeat ("Simmer
// mode" — idle poll, fire only on anomaly), and Event (fired in-process by
// other components). Grounded on original_source/src/schedule/scheduler.py.
type HybridScheduler struct {
	logger     *slog.Logger
	dispatcher Dispatcher

	mu         sync.Mutex
	cronJobs   []*CronTrigger
	heartbeats []*HeartbeatTrigger
	events     map[string][]*EventTrigger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHybridScheduler builds a scheduler from configured cron jobs. Use
// RegisterHeartbeat/RegisterEvent to add the other two trigger kinds before
// calling Start.
func NewHybridScheduler(cfg config.SchedulerConfig, dispatcher Dispatcher, logger *slog.Logger) (*HybridScheduler, error) {
	if logger == nil {
		logger = slog.Default().With("component", "scheduler")
	}
	s := &HybridScheduler{
		logger:     logger,
		dispatcher: dispatcher,
		events:     make(map[string][]*EventTrigger),
	}

	for _, jobCfg := range cfg.Jobs {
		if !jobCfg.Enabled {
			continue
		}
		job, err := buildJob(jobCfg)
		if err != nil {
			logger.Warn("scheduler job skipped", "id", jobCfg.ID, "error", err)
			continue
		}
		trigger, err := NewCronTrigger(job, dispatcher, logger.With("job", job.ID))
		if err != nil {
			logger.Warn("scheduler job skipped", "id", jobCfg.ID, "error", err)
			continue
		}
		s.cronJobs = append(s.cronJobs, trigger)
	}

	return s, nil
}

func buildJob(cfg config.SchedulerJobConfig) (*Job, error) {
	id := strings.TrimSpace(cfg.ID)
	if id == "" {
		return nil, fmt.Errorf("job id required")
	}

	jobType := JobType(strings.ToLower(strings.TrimSpace(cfg.Type)))
	job := &Job{
		ID:       id,
		Name:     cfg.Name,
		Type:     jobType,
		Enabled:  cfg.Enabled,
		Schedule: strings.TrimSpace(cfg.Schedule.Cron),
		Every:    cfg.Schedule.Every,
		Timezone: cfg.Schedule.Timezone,
	}

	switch jobType {
	case JobTypePrompt:
		if cfg.Prompt == nil || strings.TrimSpace(cfg.Prompt.Prompt) == "" {
			return nil, fmt.Errorf("prompt job missing prompt")
		}
		job.AgentID = cfg.Prompt.AgentID
		job.Prompt = cfg.Prompt.Prompt
	case JobTypeWebhook:
		if cfg.Webhook == nil || strings.TrimSpace(cfg.Webhook.URL) == "" {
			return nil, fmt.Errorf("webhook job missing url")
		}
		job.WebhookURL = cfg.Webhook.URL
		job.WebhookMethod = cfg.Webhook.Method
		job.WebhookHeaders = cfg.Webhook.Headers
		job.WebhookBody = cfg.Webhook.Body
		job.WebhookTimeout = cfg.Webhook.Timeout
	default:
		return nil, fmt.Errorf("unsupported job type %q", cfg.Type)
	}

	return job, nil
}

// RegisterHeartbeat adds a heartbeat monitor. Must be called before Start.
func (s *HybridScheduler) RegisterHeartbeat(t *HeartbeatTrigger) {
	if t == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeats = append(s.heartbeats, t)
}

// RegisterEvent registers a condition/action pair for an event type. Safe
// to call at any time, including after Start, since Emit reads the map
// under lock.
func (s *HybridScheduler) RegisterEvent(eventType string, condition EventCondition, action EventAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[eventType] = append(s.events[eventType], &EventTrigger{
		EventType: eventType,
		Condition: condition,
		Action:    action,
	})
}

// Emit fires any registered handlers for eventType whose condition matches
// data. Returns the number of handlers triggered.
func (s *HybridScheduler) Emit(ctx context.Context, eventType string, data map[string]any) int {
	s.mu.Lock()
	triggers := append([]*EventTrigger(nil), s.events[eventType]...)
	s.mu.Unlock()

	triggered := 0
	for _, t := range triggers {
		if t.checkAndTrigger(ctx, data, s.logger) {
			triggered++
		}
	}
	if triggered > 0 {
		s.logger.Debug("event triggered handlers", "event_type", eventType, "count", triggered)
	}
	return triggered
}

// Start launches every cron and heartbeat trigger in its own goroutine.
// Event triggers need no loop: Emit checks their conditions synchronously
// and runs each matching action in its own goroutine.
func (s *HybridScheduler) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.logger.Info("hybrid scheduler starting",
		"cron_jobs", len(s.cronJobs),
		"heartbeats", len(s.heartbeats),
	)

	for _, trigger := range s.cronJobs {
		trigger := trigger
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			trigger.Run(ctx)
		}()
	}
	for _, trigger := range s.heartbeats {
		trigger := trigger
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			trigger.Run(ctx)
		}()
	}

	return nil
}

// Stop cancels every running trigger and waits for them to exit, or until
// ctx is cancelled first.
func (s *HybridScheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("hybrid scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status reports a snapshot for introspection/diagnostics tools.
func (s *HybridScheduler) Status() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	eventTypes := make([]string, 0, len(s.events))
	for t := range s.events {
		eventTypes = append(eventTypes, t)
	}

	return map[string]any{
		"cron_jobs":   len(s.cronJobs),
		"heartbeats":  len(s.heartbeats),
		"event_types": eventTypes,
	}
}

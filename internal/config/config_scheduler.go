package config

import (
	"fmt"
	"strings"
	"time"
)

// SchedulerConfig configures the hybrid scheduler's cron-triggered,
// heartbeat-triggered, and event-triggered job sources (§4.8).
type SchedulerConfig struct {
	Enabled bool                  `yaml:"enabled"`
	Jobs    []SchedulerJobConfig  `yaml:"jobs"`
	Tick    time.Duration         `yaml:"tick"`
	Heart   SchedulerHeartConfig  `yaml:"heartbeat"`
}

// SchedulerJobConfig defines a single cron-triggered job.
type SchedulerJobConfig struct {
	ID       string                    `yaml:"id"`
	Name     string                    `yaml:"name"`
	Type     string                    `yaml:"type"`
	Enabled  bool                      `yaml:"enabled"`
	Schedule SchedulerScheduleConfig   `yaml:"schedule"`
	Prompt   *SchedulerPromptConfig    `yaml:"prompt,omitempty"`
	Webhook  *SchedulerWebhookConfig   `yaml:"webhook,omitempty"`
}

// SchedulerScheduleConfig defines when a job runs, accepting either a full
// cron expression or a fixed interval.
type SchedulerScheduleConfig struct {
	Cron     string        `yaml:"cron"`
	Every    time.Duration `yaml:"every"`
	Timezone string        `yaml:"timezone"`
}

// SchedulerPromptConfig defines an agent-prompt job payload: the scheduler
// hands this prompt to the Supervisor as if the operator had typed it.
type SchedulerPromptConfig struct {
	AgentID string `yaml:"agent_id"`
	Prompt  string `yaml:"prompt"`
}

// SchedulerWebhookConfig defines a webhook job payload.
type SchedulerWebhookConfig struct {
	URL     string            `yaml:"url"`
	Method  string            `yaml:"method"`
	Headers map[string]string `yaml:"headers"`
	Body    string            `yaml:"body"`
	Timeout time.Duration     `yaml:"timeout"`
}

// SchedulerHeartConfig configures the heartbeat trigger's poll cadence.
type SchedulerHeartConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

func applySchedulerDefaults(cfg *SchedulerConfig) {
	if cfg.Tick == 0 {
		cfg.Tick = time.Minute
	}
	if cfg.Heart.Interval == 0 {
		cfg.Heart.Interval = 5 * time.Minute
	}
}

func schedulerValidationIssues(cfg *SchedulerConfig) []string {
	var issues []string
	if !cfg.Enabled {
		return issues
	}
	for i, job := range cfg.Jobs {
		if strings.TrimSpace(job.ID) == "" {
			issues = append(issues, fmt.Sprintf("scheduler.jobs[%d].id is required", i))
		}
		if strings.TrimSpace(job.Schedule.Cron) == "" && job.Schedule.Every == 0 {
			issues = append(issues, fmt.Sprintf("scheduler.jobs[%d].schedule is required", i))
		}
		switch strings.ToLower(strings.TrimSpace(job.Type)) {
		case "webhook":
			if job.Webhook == nil || strings.TrimSpace(job.Webhook.URL) == "" {
				issues = append(issues, fmt.Sprintf("scheduler.jobs[%d].webhook.url is required for webhook jobs", i))
			}
		case "prompt":
			if job.Prompt == nil || strings.TrimSpace(job.Prompt.Prompt) == "" {
				issues = append(issues, fmt.Sprintf("scheduler.jobs[%d].prompt.prompt is required for prompt jobs", i))
			}
		default:
			issues = append(issues, fmt.Sprintf("scheduler.jobs[%d].type must be prompt or webhook", i))
		}
	}
	return issues
}

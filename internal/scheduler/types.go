// Package scheduler implements the hybrid scheduler: cron-triggered,
// heartbeat-triggered, and event-triggered jobs feeding a single dispatcher.
package scheduler

import (
	"context"
	"time"
)

// Dispatcher hands a fired job's payload to the agent runtime or an
// external sink. Implementations should return quickly or push the heavy
// work onto their own goroutine; the scheduler does not wait on the result
// beyond logging it.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *Job, payload map[string]any) error
}

// DispatcherFunc adapts a function to a Dispatcher.
type DispatcherFunc func(ctx context.Context, job *Job, payload map[string]any) error

// Dispatch calls the wrapped function.
func (f DispatcherFunc) Dispatch(ctx context.Context, job *Job, payload map[string]any) error {
	return f(ctx, job, payload)
}

// JobType identifies how a cron job's firing is dispatched.
type JobType string

const (
	// JobTypePrompt hands the configured prompt to the agent runtime as if
	// the operator had typed it.
	JobTypePrompt JobType = "prompt"
	// JobTypeWebhook performs an outbound HTTP request.
	JobTypeWebhook JobType = "webhook"
)

// Job is a single configured cron-triggered task.
type Job struct {
	ID       string
	Name     string
	Type     JobType
	Enabled  bool
	Schedule string // cron expression, parsed by github.com/robfig/cron/v3
	Timezone string

	// Every is an alternative to Schedule: a fixed interval between runs,
	// used when the job config sets "every" instead of a cron expression.
	Every time.Duration

	AgentID string
	Prompt  string

	WebhookURL     string
	WebhookMethod  string
	WebhookHeaders map[string]string
	WebhookBody    string
	WebhookTimeout time.Duration

	NextRun    time.Time
	LastRun    time.Time
	LastError  string
	RetryCount int
}

// HeartbeatEvent is the payload a heartbeat endpoint returns on each poll.
type HeartbeatEvent struct {
	Name      string
	Data      map[string]any
	Error     error
	Timestamp time.Time
}

// AnomalyDetector decides whether a heartbeat reading should fire its
// handler. NewHeartbeatTrigger replaces a nil detector with
// DefaultAnomalyDetector.
type AnomalyDetector func(data map[string]any) bool

// DefaultAnomalyDetector mirrors the original assistant's default
// thresholds: a swing of more than 15% in "price_change", or more than 10
// accumulated errors, counts as anomalous.
func DefaultAnomalyDetector(data map[string]any) bool {
	if v, ok := data["price_change"].(float64); ok && v > 0.15 {
		return true
	}
	if v, ok := data["error_count"].(float64); ok && v > 10 {
		return true
	}
	return false
}

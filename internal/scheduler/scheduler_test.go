package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/nexus/internal/config"
)

func TestCronTrigger_FiresOnInterval(t *testing.T) {
	fired := make(chan struct{}, 4)
	job := &Job{ID: "ping", Type: JobTypePrompt, Prompt: "ping", Every: 10 * time.Millisecond}

	trigger, err := NewCronTrigger(job, DispatcherFunc(func(_ context.Context, _ *Job, _ map[string]any) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}), nil)
	if err != nil {
		t.Fatalf("NewCronTrigger: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	trigger.Run(ctx)

	select {
	case <-fired:
	default:
		t.Fatal("expected cron trigger to fire at least once")
	}
}

func TestNewCronTrigger_RequiresScheduleOrInterval(t *testing.T) {
	_, err := NewCronTrigger(&Job{ID: "bad"}, nil, nil)
	if err == nil {
		t.Fatal("expected error for job with no schedule or interval")
	}
}

func TestCronTrigger_ParsesCronExpression(t *testing.T) {
	job := &Job{ID: "daily", Type: JobTypePrompt, Prompt: "hi", Schedule: "0 9 * * *"}
	trigger, err := NewCronTrigger(job, nil, nil)
	if err != nil {
		t.Fatalf("NewCronTrigger: %v", err)
	}
	wait := trigger.nextWait()
	if wait <= 0 || wait > 24*time.Hour {
		t.Fatalf("expected a sensible wait duration, got %v", wait)
	}
}

func TestHeartbeatTrigger_FiresOnAnomaly(t *testing.T) {
	fired := make(chan map[string]any, 1)
	briefing := func(_ context.Context) (map[string]any, error) {
		return map[string]any{"error_count": float64(42)}, nil
	}
	trigger := NewHeartbeatTrigger("watch", 10*time.Millisecond, briefing, nil, func(_ context.Context, data map[string]any) error {
		fired <- data
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	trigger.Run(ctx)

	select {
	case data := <-fired:
		if data["error_count"].(float64) != 42 {
			t.Fatalf("unexpected briefing data: %v", data)
		}
	default:
		t.Fatal("expected heartbeat to fire on anomalous reading")
	}
}

func TestHeartbeatTrigger_SkipsWhenNotAnomalous(t *testing.T) {
	fired := false
	briefing := func(_ context.Context) (map[string]any, error) {
		return map[string]any{"error_count": float64(1)}, nil
	}
	trigger := NewHeartbeatTrigger("watch", 10*time.Millisecond, briefing, nil, func(_ context.Context, _ map[string]any) error {
		fired = true
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	trigger.Run(ctx)

	if fired {
		t.Fatal("expected heartbeat handler not to fire for a normal reading")
	}
}

func TestDefaultAnomalyDetector(t *testing.T) {
	cases := []struct {
		data     map[string]any
		anomaly  bool
		scenario string
	}{
		{map[string]any{"price_change": 0.2}, true, "large price swing"},
		{map[string]any{"price_change": 0.05}, false, "small price swing"},
		{map[string]any{"error_count": 11.0}, true, "high error count"},
		{map[string]any{}, false, "empty briefing"},
	}
	for _, c := range cases {
		if got := DefaultAnomalyDetector(c.data); got != c.anomaly {
			t.Errorf("%s: got %v, want %v", c.scenario, got, c.anomaly)
		}
	}
}

func TestHybridScheduler_EmitTriggersMatchingHandlers(t *testing.T) {
	s, err := NewHybridScheduler(config.SchedulerConfig{}, nil, nil)
	if err != nil {
		t.Fatalf("NewHybridScheduler: %v", err)
	}

	triggered := make(chan struct{}, 1)
	s.RegisterEvent("price_alert", func(data map[string]any) bool {
		return data["symbol"] == "BTC"
	}, func(_ context.Context, _ map[string]any) error {
		triggered <- struct{}{}
		return nil
	})

	count := s.Emit(context.Background(), "price_alert", map[string]any{"symbol": "ETH"})
	if count != 0 {
		t.Fatalf("expected no handlers to match ETH, got %d", count)
	}

	count = s.Emit(context.Background(), "price_alert", map[string]any{"symbol": "BTC"})
	if count != 1 {
		t.Fatalf("expected exactly one handler to match BTC, got %d", count)
	}

	select {
	case <-triggered:
	case <-time.After(time.Second):
		t.Fatal("expected matching event action to run")
	}
}

func TestHybridScheduler_SkipsDisabledAndInvalidJobs(t *testing.T) {
	cfg := config.SchedulerConfig{
		Jobs: []config.SchedulerJobConfig{
			{ID: "disabled", Enabled: false, Type: "prompt", Schedule: config.SchedulerScheduleConfig{Cron: "0 9 * * *"}, Prompt: &config.SchedulerPromptConfig{Prompt: "hi"}},
			{ID: "no-type", Enabled: true, Schedule: config.SchedulerScheduleConfig{Cron: "0 9 * * *"}},
			{ID: "good", Enabled: true, Type: "prompt", Schedule: config.SchedulerScheduleConfig{Cron: "0 9 * * *"}, Prompt: &config.SchedulerPromptConfig{Prompt: "hi"}},
		},
	}

	s, err := NewHybridScheduler(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewHybridScheduler: %v", err)
	}
	if len(s.cronJobs) != 1 {
		t.Fatalf("expected exactly one valid job to be registered, got %d", len(s.cronJobs))
	}
	if s.cronJobs[0].job.ID != "good" {
		t.Fatalf("expected the valid job to be %q, got %q", "good", s.cronJobs[0].job.ID)
	}
}

func TestHybridScheduler_StartStop(t *testing.T) {
	s, err := NewHybridScheduler(config.SchedulerConfig{}, nil, nil)
	if err != nil {
		t.Fatalf("NewHybridScheduler: %v", err)
	}

	fired := make(chan struct{}, 1)
	s.RegisterHeartbeat(NewHeartbeatTrigger("x", 5*time.Millisecond, func(_ context.Context) (map[string]any, error) {
		return map[string]any{"error_count": float64(99)}, nil
	}, nil, func(_ context.Context, _ map[string]any) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("expected heartbeat to fire after Start")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

package builtin

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/haasonsaas/nexus/internal/tools"
)

// SystemInfoTool reports basic runtime facts about the host the assistant
// is running on. Grounded on system_tools.py's pattern of a parameterless
// introspection tool (the original's SwitchPersonalityTool/ClearHistoryTool
// have no counterpart once the personality subsystem is out of scope; this
// reports the assistant's own runtime instead).
type SystemInfoTool struct {
	StartedAt time.Time
}

func (t *SystemInfoTool) Name() string { return "system_info" }

func (t *SystemInfoTool) Description() string {
	return "Report basic information about the assistant's runtime environment, such as uptime and platform."
}

func (t *SystemInfoTool) Parameters() []tools.Parameter { return nil }

func (t *SystemInfoTool) Execute(_ context.Context, _ map[string]any) (*tools.Result, error) {
	uptime := time.Since(t.StartedAt).Round(time.Second)
	data := map[string]any{
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"go_version": runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
		"uptime":     uptime.String(),
	}
	return &tools.Result{
		Success:     true,
		Data:        data,
		Observation: fmt.Sprintf("Running on %s/%s, uptime %s.", runtime.GOOS, runtime.GOARCH, uptime),
	}, nil
}

// SleepTool pauses before the next tool call, useful when an agent plan
// needs to wait out a short external delay (e.g. "check again in a
// minute"). Grounded on system_tools.py's pattern of a small utility tool.
type SleepTool struct {
	// MaxDuration caps how long a single call may sleep for, preventing a
	// runaway plan from blocking the agent loop indefinitely.
	MaxDuration time.Duration
}

func (t *SleepTool) Name() string { return "sleep" }

func (t *SleepTool) Description() string {
	return "Pause briefly before continuing. Use this only when a short wait is genuinely needed between steps."
}

func (t *SleepTool) Parameters() []tools.Parameter {
	return []tools.Parameter{
		{Name: "seconds", Type: tools.TypeNumber, Description: "How long to sleep, in seconds", Required: true, Min: 0, Max: 300},
	}
}

func (t *SleepTool) Timeout() time.Duration {
	if t.MaxDuration > 0 {
		return t.MaxDuration + 5*time.Second
	}
	return 5 * time.Minute
}

func (t *SleepTool) Execute(ctx context.Context, args map[string]any) (*tools.Result, error) {
	seconds, _ := args["seconds"].(float64)
	d := time.Duration(seconds * float64(time.Second))
	max := t.MaxDuration
	if max == 0 {
		max = 300 * time.Second
	}
	if d > max {
		d = max
	}
	if d < 0 {
		d = 0
	}

	select {
	case <-time.After(d):
	case <-ctx.Done():
		return &tools.Result{Success: false, Error: ctx.Err().Error(), Observation: "Sleep interrupted."}, nil
	}

	return &tools.Result{
		Success:     true,
		Data:        map[string]any{"slept_seconds": d.Seconds()},
		Observation: fmt.Sprintf("Slept for %s.", d),
	}, nil
}

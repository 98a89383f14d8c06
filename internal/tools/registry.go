package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Registry is the thread-safe catalog of callable tools, keyed by name.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger *slog.Logger
}

// NewRegistry creates an empty tool registry. A nil logger defaults to slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger,
	}
}

// Register inserts or replaces a tool by name. Replacing an existing tool
// logs a warning but succeeds.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name()]; exists {
		r.logger.Warn("replacing already-registered tool", "tool", tool.Name())
	}
	r.tools[tool.Name()] = tool
}

// Get returns the tool registered under name, if any.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Has reports whether a tool is registered under name.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// List returns every registered tool.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// Names returns the names of every registered tool.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	return out
}

// Schemas returns the LLM-facing function-calling schema for every
// registered tool.
func (r *Registry) Schemas() []map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]map[string]any, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, Schema(t))
	}
	return out
}

// Execute looks up a tool by name and runs it through ExecuteSafe with the
// given timeout. An unknown tool name never raises — it returns a failure
// Result.
func (r *Registry) Execute(ctx context.Context, name string, timeout time.Duration, args map[string]any) *Result {
	t, ok := r.Get(name)
	if !ok {
		return &Result{
			Success:     false,
			Observation: fmt.Sprintf("tool not found: %s", name),
			Error:       "NotFoundError",
		}
	}
	return ExecuteSafe(ctx, t, timeout, args)
}

// ExecuteSafe runs the execute_safe pipeline: parameter validation,
// timeout-bounded execution, exception (panic) capture, and metadata
// stamping. It never panics and always returns a non-nil Result.
func ExecuteSafe(ctx context.Context, t Tool, timeout time.Duration, args map[string]any) (result *Result) {
	start := time.Now()
	defer func() {
		if result == nil {
			result = &Result{}
		}
		result.setMetadata("duration", time.Since(start).Seconds())
		result.setMetadata("timestamp", time.Now().UTC().Format(time.RFC3339))
	}()

	// Only declared parameters are validated; extra args in the caller's
	// map simply never reach the tool's declared surface.
	if ok, msg := ValidateParams(t.Parameters(), args); !ok {
		return &Result{
			Success:     false,
			Observation: msg,
			Error:       "ValidationError",
		}
	}

	if timeout <= 0 {
		if to, ok := t.(Timeout); ok && to.Timeout() > 0 {
			timeout = to.Timeout()
		} else {
			timeout = DefaultTimeout
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{res: &Result{
					Success:     false,
					Observation: fmt.Sprintf("tool panicked: %v", rec),
					Error:       fmt.Sprintf("%v", rec),
					Metadata:    map[string]any{"exception_type": "panic"},
				}}
			}
		}()
		res, err := t.Execute(execCtx, args)
		done <- outcome{res: res, err: err}
	}()

	select {
	case <-execCtx.Done():
		return &Result{
			Success:     false,
			Observation: fmt.Sprintf("Timeout after %ds", int(timeout.Seconds())),
			Error:       fmt.Sprintf("Timeout after %ds", int(timeout.Seconds())),
		}
	case o := <-done:
		if o.err != nil {
			return &Result{
				Success:     false,
				Observation: o.err.Error(),
				Error:       o.err.Error(),
				Metadata:    map[string]any{"exception_type": fmt.Sprintf("%T", o.err)},
			}
		}
		if o.res == nil {
			return &Result{Success: false, Observation: "tool returned no result", Error: "NilResult"}
		}
		return o.res
	}
}

package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/nexus/internal/llm"
)

// FailoverConfig configures the failover orchestrator.
type FailoverConfig struct {
	// MaxRetries is the maximum number of retry attempts per provider
	MaxRetries int

	// RetryBackoff is the initial backoff between retries
	RetryBackoff time.Duration

	// MaxRetryBackoff is the maximum backoff duration
	MaxRetryBackoff time.Duration

	// FailoverOnRateLimit enables failover on rate limit errors
	FailoverOnRateLimit bool

	// FailoverOnServerError enables failover on server errors
	FailoverOnServerError bool

	// CircuitBreakerThreshold is the number of failures before opening circuit
	CircuitBreakerThreshold int

	// CircuitBreakerTimeout is how long to wait before trying a failed provider
	CircuitBreakerTimeout time.Duration
}

// DefaultFailoverConfig returns sensible defaults for failover.
func DefaultFailoverConfig() *FailoverConfig {
	return &FailoverConfig{
		MaxRetries:              2,
		RetryBackoff:            100 * time.Millisecond,
		MaxRetryBackoff:         5 * time.Second,
		FailoverOnRateLimit:     true,
		FailoverOnServerError:   true,
		CircuitBreakerThreshold: 3,
		CircuitBreakerTimeout:   30 * time.Second,
	}
}

// ProviderState tracks the health of an adapter.
type ProviderState struct {
	Name          string
	Failures      int
	LastFailure   time.Time
	CircuitOpen   bool
	CircuitOpenAt time.Time
}

// IsAvailable returns true if the provider can accept requests.
func (s *ProviderState) IsAvailable(cfg *FailoverConfig) bool {
	if !s.CircuitOpen {
		return true
	}
	return time.Since(s.CircuitOpenAt) > cfg.CircuitBreakerTimeout
}

// FailoverMetrics tracks failover statistics.
type FailoverMetrics struct {
	mu               sync.Mutex
	TotalRequests    int64
	TotalFailovers   int64
	TotalRetries     int64
	ProviderFailures map[string]int64
	CircuitBreaks    int64
}

// FailoverAdapter implements llm.Adapter over an ordered list of adapters,
// trying each in turn with retry and a per-adapter circuit breaker. The
// Supervisor talks to it exactly like any other llm.Adapter; it has no idea
// multiple providers are behind it.
type FailoverAdapter struct {
	adapters []llm.Adapter
	config   *FailoverConfig
	states   map[string]*ProviderState
	mu       sync.RWMutex
	metrics  *FailoverMetrics
}

// NewFailoverAdapter creates a failover adapter over primary and any
// additional fallback adapters, in priority order. config nil uses
// DefaultFailoverConfig.
func NewFailoverAdapter(config *FailoverConfig, primary llm.Adapter, fallbacks ...llm.Adapter) *FailoverAdapter {
	if config == nil {
		config = DefaultFailoverConfig()
	}
	return &FailoverAdapter{
		adapters: append([]llm.Adapter{primary}, fallbacks...),
		config:   config,
		states:   make(map[string]*ProviderState),
		metrics:  &FailoverMetrics{ProviderFailures: make(map[string]int64)},
	}
}

// Name implements llm.Adapter, identifying as the primary (first) adapter's
// name prefixed with "failover:", whatever that adapter's health.
func (o *FailoverAdapter) Name() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if len(o.adapters) == 0 {
		return "failover"
	}
	return "failover:" + o.adapters[0].Name()
}

// Chat implements llm.Adapter with failover across adapters.
func (o *FailoverAdapter) Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec, choice llm.ToolChoice, temperature float64, maxTokens int) (*llm.Response, error) {
	o.metrics.mu.Lock()
	o.metrics.TotalRequests++
	o.metrics.mu.Unlock()

	adapters := o.snapshotAdapters()
	var lastErr error

	for i, a := range adapters {
		state := o.getOrCreateState(a.Name())
		if !state.IsAvailable(o.config) {
			continue
		}

		resp, err := o.tryChat(ctx, a, messages, tools, choice, temperature, maxTokens)
		if err == nil {
			o.recordSuccess(a.Name())
			return resp, nil
		}

		lastErr = err
		o.recordFailure(a.Name(), err)

		if !o.shouldFailover(err) {
			return nil, err
		}
		if i < len(adapters)-1 {
			o.metrics.mu.Lock()
			o.metrics.TotalFailovers++
			o.metrics.mu.Unlock()
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no available llm adapters")
	}
	return nil, lastErr
}

func (o *FailoverAdapter) tryChat(ctx context.Context, a llm.Adapter, messages []llm.Message, tools []llm.ToolSpec, choice llm.ToolChoice, temperature float64, maxTokens int) (*llm.Response, error) {
	var lastErr error
	backoff := o.config.RetryBackoff

	for attempt := 0; attempt <= o.config.MaxRetries; attempt++ {
		resp, err := a.Chat(ctx, messages, tools, choice, temperature, maxTokens)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt >= o.config.MaxRetries {
			break
		}

		o.metrics.mu.Lock()
		o.metrics.TotalRetries++
		o.metrics.mu.Unlock()

		select {
		case <-time.After(backoff):
			backoff *= 2
			if backoff > o.config.MaxRetryBackoff {
				backoff = o.config.MaxRetryBackoff
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// Stream implements llm.Adapter by streaming from the first available
// adapter; mid-stream failures are not retried (there is no way to splice
// output from two adapters into one coherent stream).
func (o *FailoverAdapter) Stream(ctx context.Context, messages []llm.Message) (<-chan llm.StreamChunk, error) {
	adapters := o.snapshotAdapters()
	var lastErr error

	for _, a := range adapters {
		state := o.getOrCreateState(a.Name())
		if !state.IsAvailable(o.config) {
			continue
		}
		ch, err := a.Stream(ctx, messages)
		if err == nil {
			o.recordSuccess(a.Name())
			return ch, nil
		}
		lastErr = err
		o.recordFailure(a.Name(), err)
		if !o.shouldFailover(err) {
			return nil, err
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no available llm adapters")
	}
	return nil, lastErr
}

func (o *FailoverAdapter) snapshotAdapters() []llm.Adapter {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]llm.Adapter, len(o.adapters))
	copy(out, o.adapters)
	return out
}

// shouldFailover determines if an error warrants trying another adapter.
func (o *FailoverAdapter) shouldFailover(err error) bool {
	reason := classifyError(err)
	switch reason {
	case "billing", "auth", "model_unavailable":
		return true
	}
	if o.config.FailoverOnRateLimit && reason == "rate_limit" {
		return true
	}
	if o.config.FailoverOnServerError && reason == "server_error" {
		return true
	}
	return false
}

// isRetryable checks if an error is worth retrying against the same adapter.
func isRetryable(err error) bool {
	switch classifyError(err) {
	case "rate_limit", "timeout", "server_error":
		return true
	default:
		return false
	}
}

// classifyError determines the error category from its message. Providers
// behind llm.Adapter are expected to surface HTTP-flavored error text;
// this is a best-effort classification, not a typed error taxonomy.
func classifyError(err error) string {
	if err == nil {
		return "unknown"
	}
	s := strings.ToLower(err.Error())

	switch {
	case strings.Contains(s, "timeout"), strings.Contains(s, "deadline exceeded"), strings.Contains(s, "context deadline"):
		return "timeout"
	case strings.Contains(s, "rate limit"), strings.Contains(s, "rate_limit"), strings.Contains(s, "too many requests"), strings.Contains(s, "429"):
		return "rate_limit"
	case strings.Contains(s, "unauthorized"), strings.Contains(s, "invalid api key"), strings.Contains(s, "authentication"), strings.Contains(s, "401"), strings.Contains(s, "403"):
		return "auth"
	case strings.Contains(s, "billing"), strings.Contains(s, "payment"), strings.Contains(s, "quota"), strings.Contains(s, "402"):
		return "billing"
	case strings.Contains(s, "model not found"), strings.Contains(s, "does not exist"), strings.Contains(s, "unavailable"):
		return "model_unavailable"
	case strings.Contains(s, "internal server"), strings.Contains(s, "server error"), strings.Contains(s, "500"), strings.Contains(s, "502"), strings.Contains(s, "503"), strings.Contains(s, "504"):
		return "server_error"
	case strings.Contains(s, "invalid"), strings.Contains(s, "bad request"), strings.Contains(s, "400"):
		return "invalid_request"
	default:
		return "unknown"
	}
}

func (o *FailoverAdapter) getOrCreateState(name string) *ProviderState {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.states[name]; ok {
		return s
	}
	s := &ProviderState{Name: name}
	o.states[name] = s
	return s
}

func (o *FailoverAdapter) recordSuccess(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s := o.states[name]; s != nil {
		s.Failures = 0
		s.CircuitOpen = false
	}
}

func (o *FailoverAdapter) recordFailure(name string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := o.states[name]
	if s == nil {
		s = &ProviderState{Name: name}
		o.states[name] = s
	}
	s.Failures++
	s.LastFailure = time.Now()

	if s.Failures >= o.config.CircuitBreakerThreshold && !s.CircuitOpen {
		s.CircuitOpen = true
		s.CircuitOpenAt = time.Now()
		o.metrics.mu.Lock()
		o.metrics.CircuitBreaks++
		o.metrics.mu.Unlock()
	}

	o.metrics.mu.Lock()
	o.metrics.ProviderFailures[name]++
	o.metrics.mu.Unlock()
}

// Metrics returns a snapshot of failover statistics.
func (o *FailoverAdapter) Metrics() FailoverMetrics {
	o.metrics.mu.Lock()
	defer o.metrics.mu.Unlock()
	failures := make(map[string]int64, len(o.metrics.ProviderFailures))
	for k, v := range o.metrics.ProviderFailures {
		failures[k] = v
	}
	return FailoverMetrics{
		TotalRequests:    o.metrics.TotalRequests,
		TotalFailovers:   o.metrics.TotalFailovers,
		TotalRetries:     o.metrics.TotalRetries,
		ProviderFailures: failures,
		CircuitBreaks:    o.metrics.CircuitBreaks,
	}
}

// ProviderStates returns the current state of all adapters.
func (o *FailoverAdapter) ProviderStates() []ProviderState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]ProviderState, 0, len(o.states))
	for _, s := range o.states {
		out = append(out, *s)
	}
	return out
}

// ResetCircuitBreaker resets the circuit breaker for a named adapter.
func (o *FailoverAdapter) ResetCircuitBreaker(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.states[name]; ok {
		s.Failures = 0
		s.CircuitOpen = false
	}
}

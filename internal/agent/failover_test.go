package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/haasonsaas/nexus/internal/llm"
)

// failingAdapter always fails with the given error
type failingAdapter struct {
	name      string
	err       error
	callCount atomic.Int32
}

func (a *failingAdapter) Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec, choice llm.ToolChoice, temperature float64, maxTokens int) (*llm.Response, error) {
	a.callCount.Add(1)
	return nil, a.err
}

func (a *failingAdapter) Stream(ctx context.Context, messages []llm.Message) (<-chan llm.StreamChunk, error) {
	a.callCount.Add(1)
	return nil, a.err
}

func (a *failingAdapter) Name() string { return a.name }

// successAdapter always succeeds
type successAdapter struct {
	name      string
	callCount atomic.Int32
}

func (a *successAdapter) Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec, choice llm.ToolChoice, temperature float64, maxTokens int) (*llm.Response, error) {
	a.callCount.Add(1)
	return &llm.Response{Content: "success", FinishReason: llm.FinishStop}, nil
}

func (a *successAdapter) Stream(ctx context.Context, messages []llm.Message) (<-chan llm.StreamChunk, error) {
	a.callCount.Add(1)
	ch := make(chan llm.StreamChunk, 1)
	ch <- llm.StreamChunk{Text: "success"}
	close(ch)
	return ch, nil
}

func (a *successAdapter) Name() string { return a.name }

func TestFailoverAdapter_PrimarySuccess(t *testing.T) {
	primary := &successAdapter{name: "primary"}
	secondary := &successAdapter{name: "secondary"}

	fo := NewFailoverAdapter(nil, primary, secondary)

	_, err := fo.Chat(context.Background(), nil, nil, llm.ToolChoiceAuto, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if primary.callCount.Load() != 1 {
		t.Errorf("primary call count = %d, want 1", primary.callCount.Load())
	}
	if secondary.callCount.Load() != 0 {
		t.Errorf("secondary should not be called")
	}
}

func TestFailoverAdapter_FailoverOnError(t *testing.T) {
	primary := &failingAdapter{name: "primary", err: errors.New("billing: quota exceeded")}
	secondary := &successAdapter{name: "secondary"}

	config := DefaultFailoverConfig()
	config.MaxRetries = 0

	fo := NewFailoverAdapter(config, primary, secondary)

	_, err := fo.Chat(context.Background(), nil, nil, llm.ToolChoiceAuto, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if secondary.callCount.Load() != 1 {
		t.Errorf("secondary should be called on failover")
	}

	metrics := fo.Metrics()
	if metrics.TotalFailovers != 1 {
		t.Errorf("TotalFailovers = %d, want 1", metrics.TotalFailovers)
	}
}

func TestFailoverAdapter_RetryOnTransientError(t *testing.T) {
	primary := &failingAdapter{name: "primary", err: errors.New("rate limit exceeded")}

	config := DefaultFailoverConfig()
	config.MaxRetries = 2
	config.RetryBackoff = time.Millisecond

	fo := NewFailoverAdapter(config, primary)

	_, err := fo.Chat(context.Background(), nil, nil, llm.ToolChoiceAuto, 0, 0)
	if err == nil {
		t.Fatal("expected error")
	}

	if primary.callCount.Load() != 3 { // 1 initial + 2 retries
		t.Errorf("call count = %d, want 3", primary.callCount.Load())
	}
}

func TestFailoverAdapter_NoRetryOnNonRetriable(t *testing.T) {
	primary := &failingAdapter{name: "primary", err: errors.New("invalid request: missing field")}

	config := DefaultFailoverConfig()
	config.MaxRetries = 3

	fo := NewFailoverAdapter(config, primary)

	_, err := fo.Chat(context.Background(), nil, nil, llm.ToolChoiceAuto, 0, 0)
	if err == nil {
		t.Fatal("expected error")
	}

	if primary.callCount.Load() != 1 {
		t.Errorf("call count = %d, want 1 (no retry for invalid request)", primary.callCount.Load())
	}
}

func TestFailoverAdapter_CircuitBreaker(t *testing.T) {
	primary := &failingAdapter{name: "primary", err: errors.New("server error 500")}
	secondary := &successAdapter{name: "secondary"}

	config := DefaultFailoverConfig()
	config.MaxRetries = 0
	config.CircuitBreakerThreshold = 2
	config.CircuitBreakerTimeout = 100 * time.Millisecond

	fo := NewFailoverAdapter(config, primary, secondary)

	_, _ = fo.Chat(context.Background(), nil, nil, llm.ToolChoiceAuto, 0, 0)
	_, _ = fo.Chat(context.Background(), nil, nil, llm.ToolChoiceAuto, 0, 0)

	states := fo.ProviderStates()
	var primaryState *ProviderState
	for _, s := range states {
		if s.Name == "primary" {
			primaryState = &s
			break
		}
	}
	if primaryState == nil || !primaryState.CircuitOpen {
		t.Error("circuit breaker should be open")
	}

	primary.callCount.Store(0)
	secondary.callCount.Store(0)
	_, _ = fo.Chat(context.Background(), nil, nil, llm.ToolChoiceAuto, 0, 0)

	if primary.callCount.Load() != 0 {
		t.Error("primary should be skipped when circuit is open")
	}
	if secondary.callCount.Load() != 1 {
		t.Error("secondary should be called")
	}

	time.Sleep(150 * time.Millisecond)

	primary.callCount.Store(0)
	_, _ = fo.Chat(context.Background(), nil, nil, llm.ToolChoiceAuto, 0, 0)

	if primary.callCount.Load() == 0 {
		t.Error("primary should be tried after circuit timeout")
	}
}

func TestFailoverAdapter_ResetCircuitBreaker(t *testing.T) {
	primary := &failingAdapter{name: "primary", err: errors.New("server error")}

	config := DefaultFailoverConfig()
	config.MaxRetries = 0
	config.CircuitBreakerThreshold = 1

	fo := NewFailoverAdapter(config, primary)

	_, _ = fo.Chat(context.Background(), nil, nil, llm.ToolChoiceAuto, 0, 0)
	fo.ResetCircuitBreaker("primary")

	states := fo.ProviderStates()
	for _, s := range states {
		if s.Name == "primary" {
			if s.CircuitOpen {
				t.Error("circuit should be closed after reset")
			}
			if s.Failures != 0 {
				t.Errorf("failures = %d, want 0", s.Failures)
			}
		}
	}
}

func TestFailoverAdapter_AllAdaptersFail(t *testing.T) {
	primary := &failingAdapter{name: "primary", err: errors.New("billing error")}
	secondary := &failingAdapter{name: "secondary", err: errors.New("auth error")}

	config := DefaultFailoverConfig()
	config.MaxRetries = 0

	fo := NewFailoverAdapter(config, primary, secondary)

	_, err := fo.Chat(context.Background(), nil, nil, llm.ToolChoiceAuto, 0, 0)
	if err == nil {
		t.Fatal("expected error when all adapters fail")
	}
	if !errors.Is(err, secondary.err) && err.Error() != secondary.err.Error() {
		t.Errorf("error = %v, want %v", err, secondary.err)
	}
}

func TestFailoverAdapter_ContextCancellation(t *testing.T) {
	primary := &failingAdapter{name: "primary", err: errors.New("rate limit")}

	config := DefaultFailoverConfig()
	config.MaxRetries = 5
	config.RetryBackoff = time.Second

	fo := NewFailoverAdapter(config, primary)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := fo.Chat(ctx, nil, nil, llm.ToolChoiceAuto, 0, 0)
	if err == nil {
		t.Fatal("expected error on context cancellation")
	}
	if primary.callCount.Load() > 2 {
		t.Errorf("should have stopped retrying, got %d calls", primary.callCount.Load())
	}
}

func TestFailoverAdapter_Metrics(t *testing.T) {
	primary := &failingAdapter{name: "primary", err: errors.New("server error")}
	secondary := &successAdapter{name: "secondary"}

	config := DefaultFailoverConfig()
	config.MaxRetries = 1
	config.RetryBackoff = time.Millisecond

	fo := NewFailoverAdapter(config, primary, secondary)

	for i := 0; i < 3; i++ {
		_, _ = fo.Chat(context.Background(), nil, nil, llm.ToolChoiceAuto, 0, 0)
	}

	metrics := fo.Metrics()
	if metrics.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", metrics.TotalRequests)
	}
	if metrics.TotalFailovers < 3 {
		t.Errorf("TotalFailovers = %d, want >= 3", metrics.TotalFailovers)
	}
	if metrics.ProviderFailures["primary"] < 3 {
		t.Errorf("primary failures = %d, want >= 3", metrics.ProviderFailures["primary"])
	}
}

func TestFailoverAdapter_Name(t *testing.T) {
	primary := &successAdapter{name: "anthropic"}
	fo := NewFailoverAdapter(nil, primary)

	if name := fo.Name(); name != "failover:anthropic" {
		t.Errorf("Name = %q, want %q", name, "failover:anthropic")
	}
}

// trackingAdapter tracks call times for testing backoff
type trackingAdapter struct {
	name      string
	err       error
	callTimes []time.Time
	mu        sync.Mutex
}

func (a *trackingAdapter) Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec, choice llm.ToolChoice, temperature float64, maxTokens int) (*llm.Response, error) {
	a.mu.Lock()
	a.callTimes = append(a.callTimes, time.Now())
	a.mu.Unlock()
	return nil, a.err
}

func (a *trackingAdapter) Stream(ctx context.Context, messages []llm.Message) (<-chan llm.StreamChunk, error) {
	return nil, a.err
}

func (a *trackingAdapter) Name() string { return a.name }

func (a *trackingAdapter) getCallTimes() []time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	result := make([]time.Time, len(a.callTimes))
	copy(result, a.callTimes)
	return result
}

func TestFailoverAdapter_ExponentialBackoffCapping(t *testing.T) {
	primary := &trackingAdapter{name: "primary", err: errors.New("rate limit exceeded")}

	config := DefaultFailoverConfig()
	config.MaxRetries = 5
	config.RetryBackoff = 10 * time.Millisecond
	config.MaxRetryBackoff = 30 * time.Millisecond

	fo := NewFailoverAdapter(config, primary)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, _ = fo.Chat(ctx, nil, nil, llm.ToolChoiceAuto, 0, 0)

	times := primary.getCallTimes()
	if len(times) < 3 {
		t.Skip("not enough calls to verify backoff")
	}

	for i := 2; i < len(times); i++ {
		gap := times[i].Sub(times[i-1])
		if gap > config.MaxRetryBackoff*2 {
			t.Errorf("gap %d: %v exceeds max backoff %v", i, gap, config.MaxRetryBackoff)
		}
	}
}

func TestFailoverAdapter_ResetAllCircuitBreakers(t *testing.T) {
	primary := &failingAdapter{name: "primary", err: errors.New("error")}
	secondary := &failingAdapter{name: "secondary", err: errors.New("error")}

	config := DefaultFailoverConfig()
	config.MaxRetries = 0
	config.CircuitBreakerThreshold = 1

	fo := NewFailoverAdapter(config, primary, secondary)
	_, _ = fo.Chat(context.Background(), nil, nil, llm.ToolChoiceAuto, 0, 0)

	for _, name := range []string{"primary", "secondary"} {
		fo.ResetCircuitBreaker(name)
	}

	states := fo.ProviderStates()
	for _, s := range states {
		if s.CircuitOpen {
			t.Errorf("adapter %s circuit should be closed", s.Name)
		}
		if s.Failures != 0 {
			t.Errorf("adapter %s failures = %d, want 0", s.Name, s.Failures)
		}
	}
}

func TestFailoverAdapter_NameWithNoAdapters(t *testing.T) {
	fo := &FailoverAdapter{
		config:  DefaultFailoverConfig(),
		states:  make(map[string]*ProviderState),
		metrics: &FailoverMetrics{ProviderFailures: make(map[string]int64)},
	}
	if name := fo.Name(); name != "failover" {
		t.Errorf("Name() = %q, want %q", name, "failover")
	}
}

func TestProviderState_IsAvailable(t *testing.T) {
	config := DefaultFailoverConfig()
	config.CircuitBreakerTimeout = 100 * time.Millisecond

	tests := []struct {
		name     string
		state    *ProviderState
		expected bool
	}{
		{
			name:     "circuit closed",
			state:    &ProviderState{Name: "test", CircuitOpen: false},
			expected: true,
		},
		{
			name:     "circuit open recent",
			state:    &ProviderState{Name: "test", CircuitOpen: true, CircuitOpenAt: time.Now()},
			expected: false,
		},
		{
			name:     "circuit open timeout passed",
			state:    &ProviderState{Name: "test", CircuitOpen: true, CircuitOpenAt: time.Now().Add(-200 * time.Millisecond)},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.state.IsAvailable(config); result != tt.expected {
				t.Errorf("IsAvailable() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{errors.New("rate limit exceeded"), "rate_limit"},
		{errors.New("too many requests 429"), "rate_limit"},
		{errors.New("timeout waiting for response"), "timeout"},
		{errors.New("context deadline exceeded"), "timeout"},
		{errors.New("unauthorized: invalid api key"), "auth"},
		{errors.New("authentication failed 401"), "auth"},
		{errors.New("billing: quota exceeded"), "billing"},
		{errors.New("payment required 402"), "billing"},
		{errors.New("model not found: gpt-5"), "model_unavailable"},
		{errors.New("service unavailable"), "model_unavailable"},
		{errors.New("internal server error 500"), "server_error"},
		{errors.New("bad gateway 502"), "server_error"},
		{errors.New("invalid request: missing field"), "invalid_request"},
		{errors.New("bad request 400"), "invalid_request"},
		{errors.New("something random happened"), "unknown"},
		{nil, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if result := classifyError(tt.err); result != tt.expected {
				t.Errorf("classifyError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err      error
		expected bool
	}{
		{errors.New("rate limit exceeded"), true},
		{errors.New("timeout"), true},
		{errors.New("server error 500"), true},
		{errors.New("invalid request"), false},
		{errors.New("unauthorized"), false},
		{errors.New("billing error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if result := isRetryable(tt.err); result != tt.expected {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestFailoverConfig_Defaults(t *testing.T) {
	config := DefaultFailoverConfig()

	if config.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", config.MaxRetries)
	}
	if config.RetryBackoff != 100*time.Millisecond {
		t.Errorf("RetryBackoff = %v, want 100ms", config.RetryBackoff)
	}
	if config.MaxRetryBackoff != 5*time.Second {
		t.Errorf("MaxRetryBackoff = %v, want 5s", config.MaxRetryBackoff)
	}
	if !config.FailoverOnRateLimit {
		t.Error("FailoverOnRateLimit should be true")
	}
	if !config.FailoverOnServerError {
		t.Error("FailoverOnServerError should be true")
	}
	if config.CircuitBreakerThreshold != 3 {
		t.Errorf("CircuitBreakerThreshold = %d, want 3", config.CircuitBreakerThreshold)
	}
	if config.CircuitBreakerTimeout != 30*time.Second {
		t.Errorf("CircuitBreakerTimeout = %v, want 30s", config.CircuitBreakerTimeout)
	}
}

func TestFailoverAdapter_ShouldFailover(t *testing.T) {
	tests := []struct {
		name                  string
		err                   error
		failoverOnRateLimit   bool
		failoverOnServerError bool
		expected              bool
	}{
		{name: "rate limit with flag on", err: errors.New("rate limit"), failoverOnRateLimit: true, expected: true},
		{name: "rate limit with flag off", err: errors.New("rate limit"), failoverOnRateLimit: false, expected: false},
		{name: "server error with flag on", err: errors.New("server error 500"), failoverOnServerError: true, expected: true},
		{name: "server error with flag off", err: errors.New("server error 500"), failoverOnServerError: false, expected: false},
		{name: "billing always failover", err: errors.New("billing error"), expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultFailoverConfig()
			config.FailoverOnRateLimit = tt.failoverOnRateLimit
			config.FailoverOnServerError = tt.failoverOnServerError

			fo := NewFailoverAdapter(config, &successAdapter{name: "test"})
			if result := fo.shouldFailover(tt.err); result != tt.expected {
				t.Errorf("shouldFailover() = %v, want %v", result, tt.expected)
			}
		})
	}
}

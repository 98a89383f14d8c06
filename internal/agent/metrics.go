package agent

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ExecutionMode selects how the Supervisor turns a user turn into tool
// calls. See analyzeIntent.
type ExecutionMode string

const (
	ModeFastPath   ExecutionMode = "fast_path"
	ModeSingleStep ExecutionMode = "single_step"
	ModeMultiStep  ExecutionMode = "multi_step"
)

var promMetricsOnce sync.Once
var (
	promLLMCalls   *prometheus.CounterVec
	promToolCalls  *prometheus.CounterVec
	promModeUsage  *prometheus.CounterVec
	promLLMLatency prometheus.Histogram
)

// registerPromMetrics is idempotent: multiple Supervisors in the same
// process (e.g. tests) share one registration.
func registerPromMetrics() {
	promMetricsOnce.Do(func() {
		promLLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nexus_llm_calls_total",
			Help: "Total LLM adapter calls issued by the supervisor.",
		}, []string{"provider"})
		promToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nexus_tool_calls_total",
			Help: "Total tool invocations, labeled by tool name and outcome.",
		}, []string{"tool", "outcome"})
		promModeUsage = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nexus_mode_usage_total",
			Help: "Total turns handled per execution mode.",
		}, []string{"mode"})
		promLLMLatency = promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "nexus_llm_call_latency_seconds",
			Help:    "LLM adapter call latency in seconds.",
			Buckets: prometheus.DefBuckets,
		})
	})
}

// toolStat accumulates per-tool call outcomes and latencies.
type toolStat struct {
	success   int
	failed    int
	latencies []time.Duration
}

// metricsError is a timestamped error record kept for get_summary-style
// diagnostics.
type metricsError struct {
	At      time.Time
	Message string
}

// Metrics is an in-memory collector of Supervisor activity: LLM call
// counts and latencies, per-tool call outcomes and latencies, mode usage,
// and a bounded error log. Grounded on original_source/src/agent/
// supervisor.py's MetricsCollector; additionally mirrors each counter into
// Prometheus (internal/observability's convention in the teacher) so both
// a local summary and a scrape endpoint stay in sync.
type Metrics struct {
	mu sync.Mutex

	llmCalls    int
	llmLatency  []time.Duration
	toolStats   map[string]*toolStat
	modeUsage   map[ExecutionMode]int
	errors      []metricsError
	maxErrorLog int

	prometheus bool
}

// NewMetrics creates an empty collector. When withPrometheus is true, each
// recorded event is additionally mirrored into package-level Prometheus
// counters/histograms (registered once per process).
func NewMetrics(withPrometheus bool) *Metrics {
	if withPrometheus {
		registerPromMetrics()
	}
	return &Metrics{
		toolStats:   make(map[string]*toolStat),
		modeUsage:   make(map[ExecutionMode]int),
		maxErrorLog: 100,
		prometheus:  withPrometheus,
	}
}

// RecordLLMCall logs one LLM adapter call and its latency.
func (m *Metrics) RecordLLMCall(provider string, d time.Duration) {
	m.mu.Lock()
	m.llmCalls++
	m.llmLatency = append(m.llmLatency, d)
	m.mu.Unlock()

	if m.prometheus {
		promLLMCalls.WithLabelValues(provider).Inc()
		promLLMLatency.Observe(d.Seconds())
	}
}

// RecordToolCall logs one tool invocation's outcome and latency.
func (m *Metrics) RecordToolCall(tool string, success bool, d time.Duration) {
	m.mu.Lock()
	stat, ok := m.toolStats[tool]
	if !ok {
		stat = &toolStat{}
		m.toolStats[tool] = stat
	}
	if success {
		stat.success++
	} else {
		stat.failed++
	}
	stat.latencies = append(stat.latencies, d)
	m.mu.Unlock()

	if m.prometheus {
		outcome := "success"
		if !success {
			outcome = "failed"
		}
		promToolCalls.WithLabelValues(tool, outcome).Inc()
	}
}

// RecordMode logs which execution mode handled a turn.
func (m *Metrics) RecordMode(mode ExecutionMode) {
	m.mu.Lock()
	m.modeUsage[mode]++
	m.mu.Unlock()

	if m.prometheus {
		promModeUsage.WithLabelValues(string(mode)).Inc()
	}
}

// RecordError appends a timestamped error message, capping the log at
// maxErrorLog entries (oldest dropped first).
func (m *Metrics) RecordError(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, metricsError{At: time.Now(), Message: message})
	if len(m.errors) > m.maxErrorLog {
		m.errors = m.errors[len(m.errors)-m.maxErrorLog:]
	}
}

// Summary derives averages and distributions from the raw counters, the
// equivalent of the original's get_summary().
func (m *Metrics) Summary() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := map[string]any{
		"llm_calls":        m.llmCalls,
		"llm_avg_latency":  avgDuration(m.llmLatency),
		"mode_usage":       copyModeUsage(m.modeUsage),
		"error_count":      len(m.errors),
	}

	tools := make(map[string]any, len(m.toolStats))
	for name, stat := range m.toolStats {
		tools[name] = map[string]any{
			"success":      stat.success,
			"failed":       stat.failed,
			"avg_latency":  avgDuration(stat.latencies),
		}
	}
	out["tool_calls"] = tools

	return out
}

func copyModeUsage(m map[ExecutionMode]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}

func avgDuration(ds []time.Duration) float64 {
	if len(ds) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range ds {
		total += d
	}
	return total.Seconds() / float64(len(ds))
}

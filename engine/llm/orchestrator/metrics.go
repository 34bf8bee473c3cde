package orchestrator

import (
	"context"

	llmadapter "github.com/compozy/logscout/engine/llm/adapter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "logscout"

// Metrics records orchestrator activity in Prometheus. It is also a
// ToolCallObserver: terminal records feed the tool counters. A nil *Metrics
// is a valid no-op.
type Metrics struct {
	llmCalls     *prometheus.CounterVec
	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	retryPrompts *prometheus.CounterVec
	nudges       *prometheus.CounterVec
	turns        *prometheus.CounterVec
	iterations   prometheus.Histogram
	tokens       *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		llmCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "llm_calls_total",
			Help:      "LLM calls issued by the orchestrator",
		}, []string{"outcome"}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tool_calls_total",
			Help:      "Completed tool calls by tool and terminal status",
		}, []string{"tool", "status"}),
		toolDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool call duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		retryPrompts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "retry_prompts_total",
			Help:      "Corrective retry prompts injected after tool results",
		}, []string{"reason"}),
		nudges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "nudges_total",
			Help:      "Corrective prompts injected after a text-only response",
		}, []string{"kind"}),
		turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "turns_total",
			Help:      "Finished turns by outcome",
		}, []string{"outcome"}),
		iterations: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "turn_iterations",
			Help:      "LLM calls per turn",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		tokens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens reported by the LLM provider",
		}, []string{"kind"}),
	}
}

func (m *Metrics) OnToolCall(_ context.Context, record ToolCallRecord) error {
	if m == nil || !record.Terminal() {
		return nil
	}
	m.toolCalls.WithLabelValues(record.ToolName, string(record.Status)).Inc()
	m.toolDuration.WithLabelValues(record.ToolName).Observe(record.Duration().Seconds())
	return nil
}

func (m *Metrics) observeLLMCall(err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.llmCalls.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeRetryPrompt(reason string) {
	if m == nil {
		return
	}
	m.retryPrompts.WithLabelValues(reason).Inc()
}

func (m *Metrics) observeNudge(kind string) {
	if m == nil {
		return
	}
	m.nudges.WithLabelValues(kind).Inc()
}

func (m *Metrics) observeTurn(outcome string, iterations int) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
	m.iterations.Observe(float64(iterations))
}

func (m *Metrics) observeUsage(u *llmadapter.Usage) {
	if m == nil || u == nil {
		return
	}
	m.tokens.WithLabelValues("prompt").Add(float64(u.PromptTokens))
	m.tokens.WithLabelValues("completion").Add(float64(u.CompletionTokens))
}

package httpserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the process's Prometheus surface: tool execution, LLM request
// latency, and delegation counts — the slice of the original metrics set
// relevant once transports are external collaborators rather than
// in-process adapters.
type Metrics struct {
	ToolExecutionCounter  *prometheus.CounterVec
	ToolExecutionDuration *prometheus.HistogramVec

	LLMRequestCounter  *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec

	DelegationCounter *prometheus.CounterVec
}

// NewMetrics registers every collector with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		ToolExecutionCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_tool_executions_total",
			Help: "Tool invocations by tool name and outcome.",
		}, []string{"tool_name", "status"}),

		ToolExecutionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "assistant_tool_execution_duration_seconds",
			Help:    "Tool execution latency in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"tool_name"}),

		LLMRequestCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_llm_requests_total",
			Help: "LLM requests by provider, model, and outcome.",
		}, []string{"provider", "model", "status"}),

		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "assistant_llm_request_duration_seconds",
			Help:    "LLM request latency in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider", "model"}),

		DelegationCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_delegations_total",
			Help: "Agent delegations by agent name and mode (foreground|parallel|background).",
		}, []string{"agent_name", "mode"}),
	}
}

// ToolCall records one tool execution's outcome and duration.
func (m *Metrics) ToolCall(toolName string, isError bool, seconds float64) {
	status := "success"
	if isError {
		status = "error"
	}
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(seconds)
}

// LLMRequest records one provider round's outcome and duration.
func (m *Metrics) LLMRequest(provider, model string, isError bool, seconds float64) {
	status := "success"
	if isError {
		status = "error"
	}
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(seconds)
}

// Delegation records one delegation call.
func (m *Metrics) Delegation(agentName, mode string) {
	m.DelegationCounter.WithLabelValues(agentName, mode).Inc()
}

// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks observer API request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dialogue_api_request_duration_seconds",
			Help:    "Observer API request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total observer API requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogue_api_requests_total",
			Help: "Total observer API requests",
		},
		[]string{"method", "path", "status"},
	)

	// SSEConnections tracks open observer stream connections.
	SSEConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dialogue_sse_connections_active",
			Help: "Number of active observer SSE connections",
		},
	)

	// LLMRequestDuration tracks completion call duration.
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dialogue_llm_request_duration_seconds",
			Help:    "Completion request duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"provider", "model", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogue_llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// TurnsTotal tracks persona replies appended to conversations.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogue_turns_total",
			Help: "Total persona turns appended",
		},
		[]string{"persona"},
	)

	// RetriesTotal tracks retried completion attempts.
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogue_retries_total",
			Help: "Completion attempts retried after a transient failure",
		},
		[]string{"persona"},
	)

	// ThinkingDelaySeconds tracks the configured delay applied per attempt.
	ThinkingDelaySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dialogue_thinking_delay_seconds",
			Help:    "Thinking delay applied before each completion attempt",
			Buckets: []float64{0, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	// ConversationsTotal tracks finished conversations by terminal status.
	ConversationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogue_conversations_total",
			Help: "Total conversations finished",
		},
		[]string{"status"},
	)

	// TranscriptWriteFailures tracks best-effort transcript writes that failed.
	TranscriptWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogue_transcript_write_failures_total",
			Help: "Transcript writes that failed",
		},
		[]string{"op"},
	)

	// ObserverFailures tracks observer notifications that failed.
	ObserverFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogue_observer_failures_total",
			Help: "Observer notifications that failed",
		},
		[]string{"observer"},
	)
)

// RecordRequest records metrics for an observer API request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLLMCall records metrics for a completion call.
func RecordLLMCall(provider, model, status string, duration float64, tokensIn, tokensOut int) {
	LLMRequestDuration.WithLabelValues(provider, model, status).Observe(duration)
	if tokensIn > 0 {
		LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	}
	if tokensOut > 0 {
		LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
	}
}

// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// MessagesRouted tracks inbound customer messages by department and the
	// routing action taken.
	MessagesRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_routed_total",
			Help: "Customer messages handled by the conversation router",
		},
		[]string{"department", "action"},
	)

	// TransfersTotal tracks department transfers.
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_department_transfers_total",
			Help: "Department transfers performed by the router",
		},
		[]string{"from", "to"},
	)

	// HumanEscalations tracks messages that ended in the human-agent path.
	HumanEscalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_human_escalations_total",
			Help: "Messages escalated to a human agent",
		},
		[]string{"department", "reason"},
	)

	// CompletionDuration tracks completion provider call duration.
	CompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "completion_duration_seconds",
			Help:    "Completion provider call duration",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "status"},
	)

	// CompletionTokens tracks tokens exchanged with the completion provider.
	CompletionTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "completion_tokens_total",
			Help: "Tokens exchanged with the completion provider",
		},
		[]string{"provider", "direction"},
	)

	// FlowSteps tracks flow script step executions by type.
	FlowSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flow_steps_total",
			Help: "Flow script steps executed",
		},
		[]string{"type"},
	)

	// ConversationsActive tracks the number of live conversations.
	ConversationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_conversations_active",
			Help: "Number of active conversations",
		},
	)

	// ConversationsStarted tracks sessions created.
	ConversationsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_conversations_started_total",
			Help: "Conversations started",
		},
		[]string{"tenant_id"},
	)

	// ConversationsSwept tracks idle conversations reclaimed by the sweeper.
	ConversationsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_conversations_swept_total",
			Help: "Idle conversations reclaimed by the session sweeper",
		},
	)

	// SSEConnectionsActive tracks active SSE event subscribers.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordCompletion records metrics for one completion provider call.
func RecordCompletion(provider, status string, seconds float64, tokensIn, tokensOut int) {
	CompletionDuration.WithLabelValues(provider, status).Observe(seconds)
	CompletionTokens.WithLabelValues(provider, "in").Add(float64(tokensIn))
	CompletionTokens.WithLabelValues(provider, "out").Add(float64(tokensOut))
}

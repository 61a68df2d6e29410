// Package observability holds the Prometheus metrics and OpenTelemetry tracing
// shared by the gateway client and the session controller.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeStale   = "stale"
)

// Metrics holds all Prometheus metrics for a vidtwin client process.
type Metrics struct {
	// Gateway metrics
	GatewayRequestsTotal  *prometheus.CounterVec
	GatewayRequestSeconds *prometheus.HistogramVec

	// Session metrics
	SessionTransitionsTotal *prometheus.CounterVec
	SessionResultsTotal     *prometheus.CounterVec
	ChatTurnsTotal          *prometheus.CounterVec

	// Playback metrics
	PlayerSeeksTotal   *prometheus.CounterVec
	PlayerAttachTotal  *prometheus.CounterVec
	PlayerReadySeconds prometheus.Histogram
}

// DefaultMetrics creates metrics registered with the default registerer.
func DefaultMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}

// NewMetrics creates a new set of metrics registered with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		GatewayRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vidtwin_gateway_requests_total",
				Help: "Total requests sent to the transcript service",
			},
			[]string{"operation", "outcome"},
		),
		GatewayRequestSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vidtwin_gateway_request_seconds",
				Help:    "Transcript service request latency",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"operation"},
		),

		SessionTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vidtwin_session_transitions_total",
				Help: "Session state transitions by target state",
			},
			[]string{"state"},
		),
		SessionResultsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vidtwin_session_results_total",
				Help: "Asynchronous results applied or discarded by the session",
			},
			[]string{"operation", "outcome"},
		),
		ChatTurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vidtwin_chat_turns_total",
				Help: "Chat turns appended to the conversation",
			},
			[]string{"role"},
		),

		PlayerSeeksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vidtwin_player_seeks_total",
				Help: "Seek requests handled by the playback bridge",
			},
			[]string{"outcome"},
		),
		PlayerAttachTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vidtwin_player_attach_total",
				Help: "Player attach attempts",
			},
			[]string{"outcome"},
		),
		PlayerReadySeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vidtwin_player_ready_seconds",
				Help:    "Time from attach to player readiness",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		),
	}
}

// RecordGatewayRequest records one completed gateway request.
func (m *Metrics) RecordGatewayRequest(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.GatewayRequestsTotal.WithLabelValues(operation, outcome).Inc()
	m.GatewayRequestSeconds.WithLabelValues(operation).Observe(seconds)
}

// RecordTransition records a session state change.
func (m *Metrics) RecordTransition(state string) {
	if m == nil {
		return
	}
	m.SessionTransitionsTotal.WithLabelValues(state).Inc()
}

// RecordResult records an asynchronous result reaching the session.
func (m *Metrics) RecordResult(operation, outcome string) {
	if m == nil {
		return
	}
	m.SessionResultsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordChatTurn records an appended chat turn.
func (m *Metrics) RecordChatTurn(role string) {
	if m == nil {
		return
	}
	m.ChatTurnsTotal.WithLabelValues(role).Inc()
}

// RecordSeek records a seek request outcome (performed, buffered, ignored, failed).
func (m *Metrics) RecordSeek(outcome string) {
	if m == nil {
		return
	}
	m.PlayerSeeksTotal.WithLabelValues(outcome).Inc()
}

// RecordAttach records a player attach outcome and, when ready, its latency.
func (m *Metrics) RecordAttach(outcome string, readySeconds float64) {
	if m == nil {
		return
	}
	m.PlayerAttachTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSuccess {
		m.PlayerReadySeconds.Observe(readySeconds)
	}
}

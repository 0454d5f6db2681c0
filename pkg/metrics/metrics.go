// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submission outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeEmpty    = "empty"
	OutcomeBusy     = "busy"
)

// Reveal outcomes.
const (
	RevealCompleted = "completed"
	RevealCancelled = "cancelled"
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

	// SubmissionsTotal counts submissions by outcome.
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_submissions_total",
			Help: "Chat submissions by outcome",
		},
		[]string{"outcome"},
	)

	// ResolveDuration tracks how long answer resolution takes.
	ResolveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_resolve_duration_seconds",
			Help:    "Answer resolution duration",
			Buckets: []float64{.05, .1, .25, .5, 1, 1.5, 2, 5, 10, 30, 60},
		},
		[]string{"resolver", "status"},
	)

	// RevealsTotal counts finished reveal sessions by outcome.
	RevealsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_reveals_total",
			Help: "Reveal sessions by outcome",
		},
		[]string{"outcome"},
	)

	// RevealSegmentsTotal counts segments delivered to observers.
	RevealSegmentsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_reveal_segments_total",
			Help: "Reveal segments delivered",
		},
	)

	// RevealsActive tracks reveal sessions currently in flight.
	RevealsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_reveals_active",
			Help: "Reveal sessions in flight",
		},
	)

	// SessionsActive tracks live chat sessions.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_sessions_active",
			Help: "Number of live chat sessions",
		},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// EventsPublishedTotal counts engine events published to NATS.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_events_published_total",
			Help: "Engine events published to NATS",
		},
		[]string{"type", "status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordResolve records one answer resolution.
func RecordResolve(resolver, status string, duration float64) {
	ResolveDuration.WithLabelValues(resolver, status).Observe(duration)
}

// RecordRevealStarted marks a reveal session as in flight.
func RecordRevealStarted() {
	RevealsActive.Inc()
}

// RecordRevealFinished records the end of a reveal session.
func RecordRevealFinished(outcome string) {
	RevealsActive.Dec()
	RevealsTotal.WithLabelValues(outcome).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}

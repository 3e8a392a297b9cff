// internal/dispatcher/metrics.go
package dispatcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Tool call outcomes, also used as audit event outcomes.
const (
	OutcomeOK        = "ok"
	OutcomePartial   = "partial"
	OutcomeError     = "error"
	OutcomeInvalid   = "validation_error"
	OutcomeDenied    = "authorization_denied"
	OutcomeNotFound  = "not_found"
	OutcomeCancelled = "cancelled"
)

// Metrics holds the dispatcher's prometheus collectors. A nil *Metrics is
// valid and records nothing, mirroring the optional stores elsewhere.
type Metrics struct {
	toolCalls        *prometheus.CounterVec
	connectorReqs    *prometheus.CounterVec
	connectorLatency *prometheus.HistogramVec
	authzDenials     prometheus.Counter
}

// NewMetrics builds the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer to expose them on /metrics; tests pass a
// private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "searchgate_tool_calls_total",
			Help: "Tool invocations by outcome.",
		}, []string{"outcome"}),
		connectorReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "searchgate_connector_requests_total",
			Help: "Connector searches by source and outcome.",
		}, []string{"source", "outcome"}),
		connectorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "searchgate_connector_latency_seconds",
			Help:    "Connector search latency by source.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		authzDenials: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "searchgate_authorization_denials_total",
			Help: "Requests denied for missing scopes or guard policy.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.toolCalls, m.connectorReqs, m.connectorLatency, m.authzDenials)
	}
	return m
}

func (m *Metrics) ToolCall(outcome string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Connector(source, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.connectorReqs.WithLabelValues(source, outcome).Inc()
	m.connectorLatency.WithLabelValues(source).Observe(took.Seconds())
}

func (m *Metrics) AuthzDenied() {
	if m == nil {
		return
	}
	m.authzDenials.Inc()
}

// File: internal/observability/metrics.go
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Flow names used as metric labels.
const (
	FlowRegister  = "register"
	FlowVerifyOTP = "verify_otp"
)

// Metrics tracks flow outcomes, flow latency and browser session churn.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	FlowsTotal         *prometheus.CounterVec
	FlowDuration       *prometheus.HistogramVec
	SessionsOpened     prometheus.Counter
	SessionFailures    prometheus.Counter
	PersistenceErrors  *prometheus.CounterVec
	RemoteCallFailures *prometheus.CounterVec
}

// NewMetrics registers every collector with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FlowsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "enroll_flows_total",
			Help: "Completed flows by flow name and outcome",
		}, []string{"flow", "outcome"}),
		FlowDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "enroll_flow_duration_seconds",
			Help:    "Wall time of a flow including browser session setup and teardown",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 90, 120},
		}, []string{"flow"}),
		SessionsOpened: f.NewCounter(prometheus.CounterOpts{
			Name: "enroll_browser_sessions_opened_total",
			Help: "Browser sessions successfully acquired",
		}),
		SessionFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "enroll_browser_session_failures_total",
			Help: "Browser session acquisitions that failed",
		}),
		PersistenceErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "enroll_persistence_errors_total",
			Help: "Best-effort store writes or lookups that failed",
		}, []string{"op"}),
		RemoteCallFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "enroll_remote_call_failures_total",
			Help: "Authenticated portal API calls that returned non-2xx or failed in transport",
		}, []string{"call"}),
	}
}

// ObserveFlow records the outcome and duration of a flow started at start.
func (m *Metrics) ObserveFlow(flow, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.FlowsTotal.WithLabelValues(flow, outcome).Inc()
	m.FlowDuration.WithLabelValues(flow).Observe(time.Since(start).Seconds())
}

// SessionOpened increments the session counter.
func (m *Metrics) SessionOpened() {
	if m != nil {
		m.SessionsOpened.Inc()
	}
}

// SessionFailed increments the session failure counter.
func (m *Metrics) SessionFailed() {
	if m != nil {
		m.SessionFailures.Inc()
	}
}

// PersistenceFailed records a failed store operation.
func (m *Metrics) PersistenceFailed(op string) {
	if m != nil {
		m.PersistenceErrors.WithLabelValues(op).Inc()
	}
}

// RemoteCallFailed records a failed portal API call.
func (m *Metrics) RemoteCallFailed(call string) {
	if m != nil {
		m.RemoteCallFailures.WithLabelValues(call).Inc()
	}
}

package authstate

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the package's Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	operations  *prometheus.CounterVec
	transitions *prometheus.CounterVec
	enrollment  *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authclient_operations_total",
			Help: "Authentication operations by outcome (ok or the error kind).",
		}, []string{"operation", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authclient_session_transitions_total",
			Help: "Session store transitions by event.",
		}, []string{"event"}),
		enrollment: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "authclient_mfa_enrollment_state",
			Help: "1 for the current MFA enrollment state, 0 otherwise.",
		}, []string{"state"}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.transitions, m.enrollment)
	}
	return m
}

func (m *Metrics) operation(op string, err *Error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(err.Kind)
	}
	m.operations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) transition(ev Event) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(ev)).Inc()
}

func (m *Metrics) enrollmentState(s EnrollmentState) {
	if m == nil {
		return
	}
	for _, st := range allEnrollmentStates {
		v := 0.0
		if st == s {
			v = 1
		}
		m.enrollment.WithLabelValues(st.String()).Set(v)
	}
}

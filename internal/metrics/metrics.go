// Package metrics exposes Prometheus counters for console navigation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	// GuardDecisions counts guard outcomes by route class and outcome.
	GuardDecisions *prometheus.CounterVec
	// AuthChecks counts auth-check calls by result: authenticated, anonymous, check_failed.
	AuthChecks *prometheus.CounterVec
	// UnauthorizedRedirects counts redirects forced by a 401 response.
	UnauthorizedRedirects prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		GuardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xui",
			Subsystem: "console",
			Name:      "guard_decisions_total",
			Help:      "Navigation guard decisions by route class and outcome.",
		}, []string{"class", "outcome"}),
		AuthChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xui",
			Subsystem: "console",
			Name:      "auth_checks_total",
			Help:      "Auth-check calls made by the navigation guard, by result.",
		}, []string{"result"}),
		UnauthorizedRedirects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xui",
			Subsystem: "console",
			Name:      "unauthorized_redirects_total",
			Help:      "Page redirects to login forced by a 401 API response.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.GuardDecisions, m.AuthChecks, m.UnauthorizedRedirects)
	}
	return m
}

// ObserveDecision implements guard.Recorder.
func (m *Metrics) ObserveDecision(class, outcome string) {
	m.GuardDecisions.WithLabelValues(class, outcome).Inc()
}

// ObserveAuthCheck implements guard.Recorder.
func (m *Metrics) ObserveAuthCheck(result string) {
	m.AuthChecks.WithLabelValues(result).Inc()
}

// Package metrics holds the prometheus collectors for visibility resolution
// and the password gate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "retailtasks"

// Outcome labels for resolutions.
const (
	OutcomeOK     = "ok"
	OutcomeDenied = "denied"
	OutcomeError  = "error"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	resolutions     *prometheus.CounterVec
	drift           prometheus.Counter
	passwordChanges *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "visibility_resolutions_total",
				Help:      "Total number of task visibility resolutions",
			},
			[]string{"mode", "outcome"},
		),
		drift: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "denormalization_drift_total",
				Help:      "Tasks whose stored team no longer matches their creator's team",
			},
		),
		passwordChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "password_changes_total",
				Help:      "Password gate submissions by result",
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(m.resolutions, m.drift, m.passwordChanges)
	return m
}

func (m *Metrics) ObserveResolution(mode, outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(mode, outcome).Inc()
}

func (m *Metrics) ObserveDrift(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.drift.Add(float64(n))
}

func (m *Metrics) ObservePasswordChange(result string) {
	if m == nil {
		return
	}
	m.passwordChanges.WithLabelValues(result).Inc()
}

package sampler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "greta"

// Metrics are the sampler's Prometheus instruments
type Metrics struct {
	Iterations  *prometheus.CounterVec // by phase
	Accepted    *prometheus.CounterVec // by phase
	Divergences *prometheus.CounterVec // by phase
	StepSize    prometheus.Gauge
	LogDensity  prometheus.Gauge
	AcceptProb  prometheus.Histogram
}

// NewMetrics creates the instruments and registers them with reg. A nil reg
// leaves them unregistered, which is handy for tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Iterations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "hmc",
				Name:      "iterations_total",
				Help:      "Completed HMC iterations by phase",
			},
			[]string{"phase"},
		),
		Accepted: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "hmc",
				Name:      "accepted_total",
				Help:      "Accepted HMC proposals by phase",
			},
			[]string{"phase"},
		),
		Divergences: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "hmc",
				Name:      "divergences_total",
				Help:      "Divergent HMC trajectories by phase",
			},
			[]string{"phase"},
		),
		StepSize: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "hmc",
				Name:      "step_size",
				Help:      "Current leapfrog step size",
			},
		),
		LogDensity: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "hmc",
				Name:      "log_density",
				Help:      "Log density of the current draw",
			},
		),
		AcceptProb: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "hmc",
				Name:      "accept_probability",
				Help:      "Metropolis acceptance probability per iteration",
				Buckets:   []float64{0.1, 0.2, 0.4, 0.6, 0.8, 0.9, 0.95, 1},
			},
		),
	}
}

// observe records one finished iteration; nil Metrics are ignored
func (m *Metrics) observe(phase Phase, t transition, stepSize float64) {
	if m == nil {
		return
	}
	label := phase.String()
	m.Iterations.WithLabelValues(label).Inc()
	if t.accepted {
		m.Accepted.WithLabelValues(label).Inc()
	}
	if t.divergent {
		m.Divergences.WithLabelValues(label).Inc()
	}
	m.StepSize.Set(stepSize)
	m.LogDensity.Set(t.lp)
	m.AcceptProb.Observe(t.acceptProb)
}

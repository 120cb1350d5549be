package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/weave/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "weave"

// Metrics holds the collectors fed by the engine hooks.
type Metrics struct {
	StepsTotal   *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec
	NodesTotal   *prometheus.CounterVec
	RunsTotal    *prometheus.CounterVec
	StepsActive  prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Total number of finished step executions by outcome.",
			},
			[]string{"type", "method", "status"},
		),
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of step executions.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"type", "method"},
		),
		NodesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_total",
				Help:      "Nodes consumed and produced by steps.",
			},
			[]string{"direction"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of runs reaching a terminal status.",
			},
			[]string{"status"},
		),
		StepsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "steps_active",
				Help:      "Steps currently executing.",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.StepsTotal, m.StepDuration, m.NodesTotal, m.RunsTotal, m.StepsActive)
	}
	return m
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepStart: func(_ context.Context, e *domain.StepEvent) {
			m.StepsActive.Inc()
			m.NodesTotal.WithLabelValues("in").Add(float64(e.Inputs))
		},
		OnStepFinish: func(_ context.Context, e *domain.StepEvent) {
			m.StepsActive.Dec()
			m.StepsTotal.WithLabelValues(e.Type, e.Method, string(e.Status)).Inc()
			m.StepDuration.WithLabelValues(e.Type, e.Method).Observe(e.Duration.Seconds())
			m.NodesTotal.WithLabelValues("out").Add(float64(e.Outputs))
		},
		OnRunFinish: func(_ context.Context, e *domain.RunEvent) {
			m.RunsTotal.WithLabelValues(string(e.Status)).Inc()
		},
	}
}

// Handler serves the metrics of g in the prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

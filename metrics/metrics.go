// Package metrics provides Prometheus-based recording of dispatch activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Route outcomes.
const (
	OutcomeHandled   = "handled"
	OutcomeUnhandled = "unhandled"
	OutcomeFailed    = "failed"
)

// Resolve outcomes.
const (
	OutcomeResolved  = "resolved"
	OutcomeEscalated = "escalated"
)

// Recorder receives dispatch metrics. Implementations must be safe for concurrent use.
type Recorder interface {
	// ObserveRoute records a routed task by category and outcome.
	ObserveRoute(category, outcome string, duration time.Duration)
	// SetRegistrySize records the current number of registered agents.
	SetRegistrySize(n int)
	// ObserveResolve records a finished resolver run.
	ObserveResolve(outcome string, attempts int)
}

// NoOpRecorder discards all metrics.
type NoOpRecorder struct{}

// ObserveRoute implements Recorder.
func (NoOpRecorder) ObserveRoute(string, string, time.Duration) {}

// SetRegistrySize implements Recorder.
func (NoOpRecorder) SetRegistrySize(int) {}

// ObserveResolve implements Recorder.
func (NoOpRecorder) ObserveResolve(string, int) {}

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	routesTotal      *prometheus.CounterVec
	routeDuration    *prometheus.HistogramVec
	registryAgents   prometheus.Gauge
	resolvesTotal    *prometheus.CounterVec
	resolverAttempts prometheus.Histogram
}

// NewPrometheusRecorder creates a recorder whose collectors are registered
// on reg. A nil reg creates unregistered collectors.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		routesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskmesh_routes_total",
				Help: "Total number of routed tasks by category and outcome",
			},
			[]string{"category", "outcome"},
		),
		routeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskmesh_route_duration_seconds",
				Help:    "Duration of routed tasks in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"category"},
		),
		registryAgents: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "taskmesh_registry_agents",
				Help: "Number of agents currently in the registry",
			},
		),
		resolvesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskmesh_resolves_total",
				Help: "Total number of resolver runs by outcome",
			},
			[]string{"outcome"},
		),
		resolverAttempts: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "taskmesh_resolver_attempts",
				Help:    "Number of remediation attempts per resolver run",
				Buckets: prometheus.LinearBuckets(1, 1, 10),
			},
		),
	}
}

// ObserveRoute records a routed task.
func (p *PrometheusRecorder) ObserveRoute(category, outcome string, duration time.Duration) {
	p.routesTotal.WithLabelValues(category, outcome).Inc()
	p.routeDuration.WithLabelValues(category).Observe(duration.Seconds())
}

// SetRegistrySize records the registry size.
func (p *PrometheusRecorder) SetRegistrySize(n int) {
	p.registryAgents.Set(float64(n))
}

// ObserveResolve records a resolver run.
func (p *PrometheusRecorder) ObserveResolve(outcome string, attempts int) {
	p.resolvesTotal.WithLabelValues(outcome).Inc()
	p.resolverAttempts.Observe(float64(attempts))
}

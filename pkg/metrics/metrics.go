// Package metrics registers the core's Prometheus instrumentation:
// CounterVec/HistogramVec/GaugeVec fields on one struct, built against a
// caller-supplied registry rather than the global default.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "contentcore"

// Metrics holds every counter/histogram/gauge the pipeline touches.
type Metrics struct {
	RefreshesTotal   *prometheus.CounterVec
	RefreshDuration  *prometheus.HistogramVec
	GeneratorAttempts *prometheus.CounterVec
	ProviderFailovers *prometheus.CounterVec
	CircuitState     *prometheus.GaugeVec
	CacheWrites      prometheus.Counter
	TriggerMatches   *prometheus.CounterVec
	TriggerDebounced *prometheus.CounterVec
}

// New builds and registers all metrics against registerer. Pass a
// prometheus.NewRegistry() in tests to avoid the global default registry's
// duplicate-registration panics across package-level test runs.
func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RefreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Total content refreshes, by update type and outcome.",
		}, []string{"update_type", "outcome"}),

		RefreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "End-to-end pipeline duration per refresh.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"update_type"}),

		GeneratorAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generator_attempts_total",
			Help:      "Generator invocation attempts, by generator id and result.",
		}, []string{"generator_id", "result"}),

		ProviderFailovers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_failovers_total",
			Help:      "Cross-provider failovers, by originating provider.",
		}, []string{"from_provider"}),

		CircuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_state",
			Help:      "Circuit breaker state (0=on, 1=half_open, 2=off), by circuit id.",
		}, []string{"circuit_id"}),

		CacheWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_writes_total",
			Help:      "Successful cache writes.",
		}),

		TriggerMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trigger_matches_total",
			Help:      "Trigger matches, by trigger name.",
		}, []string{"trigger"}),

		TriggerDebounced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trigger_debounced_total",
			Help:      "Trigger matches suppressed by debounce, by trigger name.",
		}, []string{"trigger"}),
	}

	registerer.MustRegister(
		m.RefreshesTotal,
		m.RefreshDuration,
		m.GeneratorAttempts,
		m.ProviderFailovers,
		m.CircuitState,
		m.CacheWrites,
		m.TriggerMatches,
		m.TriggerDebounced,
	)
	return m
}

// ObserveRefresh records a completed refresh's duration and outcome.
func (m *Metrics) ObserveRefresh(updateType string, outcome string, elapsed time.Duration) {
	m.RefreshesTotal.WithLabelValues(updateType, outcome).Inc()
	m.RefreshDuration.WithLabelValues(updateType).Observe(elapsed.Seconds())
}

// RecordFailover increments the cross-provider failover counter for the
// provider a generator is moving away from.
func (m *Metrics) RecordFailover(fromProvider string) {
	m.ProviderFailovers.WithLabelValues(fromProvider).Inc()
}

// CircuitStateValue maps a circuit state string to the gauge's numeric
// encoding.
func CircuitStateValue(state string) float64 {
	switch state {
	case "off":
		return 2
	case "half_open":
		return 1
	default:
		return 0
	}
}

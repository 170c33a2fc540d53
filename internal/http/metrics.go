package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricsNamespace = "retail"

// MetricsCollection groups the API counters.
type MetricsCollection struct {
	SearchesCompiled *prometheus.CounterVec
	MalformedFilters prometheus.Counter
	AbilityChecks    *prometheus.CounterVec
}

var Metrics = MetricsCollection{
	SearchesCompiled: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "searches_compiled_total",
			Help:      "Search requests compiled, by entity and kind (list, one, export).",
		},
		[]string{"entity", "kind"},
	),
	MalformedFilters: promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "malformed_filters_total",
			Help:      "Search requests rejected for malformed JSON.",
		},
	),
	AbilityChecks: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ability_checks_total",
			Help:      "Authorization checks, by action and decision.",
		},
		[]string{"action", "decision"},
	),
}

func (mc *MetricsCollection) ObserveAbility(action string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	mc.AbilityChecks.WithLabelValues(action, decision).Inc()
}

package observability

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Command outcome labels. "timeout" marks requests that never got a
// correlated reply; the others mirror the wire outcomes.
const (
	OutcomeAck     = "ack"
	OutcomeReject  = "reject"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Launch result labels.
const (
	LaunchFinished = "finished"
	LaunchExcepted = "excepted"
	LaunchCached   = "cached"
)

// Metrics bundles the engine's Prometheus collectors. Each Metrics owns a
// private registry, so independent instances (tests, embedded engines) never
// collide on collector names.
type Metrics struct {
	registry *prometheus.Registry

	commandsTotal  *prometheus.CounterVec
	commandSeconds *prometheus.HistogramVec
	launchesTotal  *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
}

// NewMetrics creates and registers the collector set.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_commands_total",
				Help: "Total number of control commands by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		commandSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arbor_command_roundtrip_seconds",
				Help:    "Control command round-trip duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		launchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_launches_total",
				Help: "Total number of process function launches by result",
			},
			[]string{"result"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_cache_lookups_total",
				Help: "Total number of function cache lookups by result",
			},
			[]string{"result"},
		),
	}
	m.registry.MustRegister(m.commandsTotal, m.commandSeconds, m.launchesTotal, m.cacheLookups)
	return m
}

// ObserveCommand records one control command round trip.
func (m *Metrics) ObserveCommand(kind, outcome string, elapsed time.Duration) {
	kind = strings.ToLower(kind)
	m.commandsTotal.WithLabelValues(kind, outcome).Inc()
	m.commandSeconds.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ObserveLaunch records the result of one process function launch.
func (m *Metrics) ObserveLaunch(result string) {
	m.launchesTotal.WithLabelValues(result).Inc()
}

// ObserveCacheLookup records one function cache lookup.
func (m *Metrics) ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer returns the underlying registry for custom exposition setups.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

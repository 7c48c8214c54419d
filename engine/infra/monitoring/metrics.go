package monitoring

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "credportal"

// Outcome labels for the counters below.
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultConflict = "conflict"
)

// Metrics holds the counters recorded by the intake workflow and the
// attachment reconciler. A nil *Metrics records nothing.
type Metrics struct {
	registry           *prom.Registry
	intakes            *prom.CounterVec
	protocolCollisions prom.Counter
	orphansRemoved     *prom.CounterVec
}

// New registers the counters on a fresh registry.
func New() *Metrics {
	registry := prom.NewRegistry()
	m := &Metrics{
		registry: registry,
		intakes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "intake_total",
			Help:      "Contact intake attempts by outcome.",
		}, []string{"result"}),
		protocolCollisions: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_collisions_total",
			Help:      "Protocol candidates rejected because they were already taken.",
		}),
		orphansRemoved: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "orphans_removed_total",
			Help:      "Orphaned attachment deletions by outcome.",
		}, []string{"result"}),
	}
	registry.MustRegister(m.intakes, m.protocolCollisions, m.orphansRemoved)
	return m
}

func (m *Metrics) Registry() *prom.Registry { return m.registry }

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordIntake(result string) {
	if m == nil {
		return
	}
	m.intakes.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordProtocolCollision() {
	if m == nil {
		return
	}
	m.protocolCollisions.Inc()
}

func (m *Metrics) RecordOrphanRemoval(result string) {
	if m == nil {
		return
	}
	m.orphansRemoved.WithLabelValues(result).Inc()
}

func (m *Metrics) IntakeCounter(result string) prom.Counter {
	return m.intakes.WithLabelValues(result)
}

func (m *Metrics) ProtocolCollisions() prom.Counter { return m.protocolCollisions }

func (m *Metrics) OrphanCounter(result string) prom.Counter {
	return m.orphansRemoved.WithLabelValues(result)
}

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Mutation outcomes recorded in the mutations counter.
const (
	outcomeSuccess  = "success"
	outcomePartial  = "partial"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	mutations *prometheus.CounterVec
	items     prometheus.Gauge
}

// NewMetrics creates the engine collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		// Labels: op (add, update, remove, clear, ...), outcome
		mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toolbox",
			Subsystem: "cart",
			Name:      "mutations_total",
			Help:      "Total cart mutations by operation and outcome",
		}, []string{"op", "outcome"}),

		items: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "toolbox",
			Subsystem: "cart",
			Name:      "items",
			Help:      "Total units in the active cart after the last mutation",
		}),
	}
}

func (m *Metrics) record(op string, r Result) {
	outcome := outcomeSuccess
	switch {
	case r.Partial():
		outcome = outcomePartial
	case !r.Success && r.Error == MsgStorageUnavailable:
		outcome = outcomeError
	case !r.Success:
		outcome = outcomeRejected
	}
	m.mutations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) setItems(n int) {
	m.items.Set(float64(n))
}

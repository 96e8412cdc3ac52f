// Package metrics exposes prometheus instruments for the imprint engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's prometheus instruments.
type Metrics struct {
	Calls       *prometheus.CounterVec
	MintedUnits prometheus.Counter
	TradeVolume prometheus.Counter
}

// New creates and registers the engine instruments.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imprintd",
			Name:      "engine_calls_total",
			Help:      "Engine calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		MintedUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "imprintd",
			Name:      "minted_units_total",
			Help:      "Units minted across all token types.",
		}),
		TradeVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "imprintd",
			Name:      "secondary_volume_total",
			Help:      "Secondary-market volume in smallest currency units.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Calls, m.MintedUnits, m.TradeVolume)
	}
	return m
}

// Observe records one engine call's outcome.
func (m *Metrics) Observe(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Calls.WithLabelValues(op, outcome).Inc()
}

// AddMinted adds to the minted-units counter.
func (m *Metrics) AddMinted(units float64) {
	if m == nil {
		return
	}
	m.MintedUnits.Add(units)
}

// AddVolume adds to the secondary-volume counter.
func (m *Metrics) AddVolume(amount float64) {
	if m == nil {
		return
	}
	m.TradeVolume.Add(amount)
}

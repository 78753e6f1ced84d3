package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for ledger access.
type Metrics struct {
	// Node command latency by command and outcome
	CommandLatency *prometheus.HistogramVec

	// 1 while the node circuit is open
	BreakerOpen prometheus.Gauge

	// Bundle cache lookups by result: "hit", "miss", "error"
	BundleCache *prometheus.CounterVec
}

// New registers the ledger metrics with reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		CommandLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "frost_ledger_command_duration_seconds",
			Help:    "Duration of ledger node commands",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"command", "outcome"}),

		BreakerOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "frost_ledger_breaker_open",
			Help: "Whether the ledger node circuit breaker is open (1) or closed (0)",
		}),

		BundleCache: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "frost_ledger_bundle_cache_total",
			Help: "Bundle cache lookups by result",
		}, []string{"result"}),
	}
}

// ObserveCommand records how long a node command took.
func (m *Metrics) ObserveCommand(command, outcome string, d time.Duration) {
	if m != nil {
		m.CommandLatency.WithLabelValues(command, outcome).Observe(d.Seconds())
	}
}

// SetBreakerOpen tracks the breaker state.
func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}

// IncrementCache records a bundle cache lookup.
func (m *Metrics) IncrementCache(result string) {
	if m != nil {
		m.BundleCache.WithLabelValues(result).Inc()
	}
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the policy store.
type Metrics struct {
	// Operation outcomes by operation and result status
	Operations *prometheus.CounterVec

	// Operation latency by operation
	OperationLatency *prometheus.HistogramVec

	// Ledger bundles attached without an index record
	OrphanedBundles *prometheus.CounterVec

	// Orphans re-indexed by the reconciliation worker
	Reconciled prometheus.Counter

	// Size of published envelopes in ledger records
	PublishedRecords prometheus.Histogram
}

// New registers the policy metrics with reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "frost_policy_operations_total",
			Help: "Policy store operations by operation and result status",
		}, []string{"operation", "status"}),

		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "frost_policy_operation_duration_seconds",
			Help:    "Duration of policy store operations including ledger access",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),

		OrphanedBundles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "frost_policy_orphaned_bundles_total",
			Help: "Ledger bundles attached without a matching index record, by reason",
		}, []string{"reason"}),

		Reconciled: factory.NewCounter(prometheus.CounterOpts{
			Name: "frost_policy_reconciled_bundles_total",
			Help: "Orphaned bundles re-indexed by the reconciliation worker",
		}),

		PublishedRecords: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "frost_policy_published_records",
			Help:    "Number of ledger records per published policy envelope",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		}),
	}
}

func (m *Metrics) IncrementOperation(operation, status string) {
	if m != nil {
		m.Operations.WithLabelValues(operation, status).Inc()
	}
}

func (m *Metrics) ObserveOperationLatency(operation string, d time.Duration) {
	if m != nil {
		m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementOrphaned(reason string) {
	if m != nil {
		m.OrphanedBundles.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncrementReconciled() {
	if m != nil {
		m.Reconciled.Inc()
	}
}

func (m *Metrics) ObservePublishedRecords(n int) {
	if m != nil {
		m.PublishedRecords.Observe(float64(n))
	}
}

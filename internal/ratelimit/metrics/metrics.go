package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RejectedTotal *prometheus.CounterVec
	ErrorsTotal   *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "frost_ratelimit_rejected_total",
			Help: "Requests rejected by the rate limiter",
		}, []string{"transport"}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "frost_ratelimit_errors_total",
			Help: "Rate limit checks that failed and let the request through",
		}, []string{"transport"}),
	}
}

func (m *Metrics) IncrementRejected(transport string) {
	if m == nil {
		return
	}
	m.RejectedTotal.WithLabelValues(transport).Inc()
}

func (m *Metrics) IncrementErrors(transport string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(transport).Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Checks      *prometheus.CounterVec
	Rejections  prometheus.Counter
	StoreErrors prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Checks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consentd_ratelimit_checks_total",
			Help: "Rate limit checks by outcome",
		}, []string{"outcome"}),
		Rejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentd_ratelimit_rejections_total",
			Help: "Requests rejected with 429",
		}),
		StoreErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentd_ratelimit_store_errors_total",
			Help: "Bucket store failures; the request is let through",
		}),
	}
}

func (m *Metrics) ObserveCheck(allowed bool) {
	if m == nil {
		return
	}
	outcome := "allowed"
	if !allowed {
		outcome = "rejected"
		m.Rejections.Inc()
	}
	m.Checks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementStoreErrors() {
	if m == nil {
		return
	}
	m.StoreErrors.Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Checks  *prometheus.CounterVec
	Denials *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Checks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consentd_quota_checks_total",
			Help: "Quota admission checks by plan and outcome",
		}, []string{"plan", "outcome"}),
		Denials: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consentd_quota_denials_total",
			Help: "Consent records refused because the tenant reached its monthly limit",
		}, []string{"plan"}),
	}
}

func (m *Metrics) ObserveCheck(plan string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
		m.Denials.WithLabelValues(plan).Inc()
	}
	m.Checks.WithLabelValues(plan, outcome).Inc()
}

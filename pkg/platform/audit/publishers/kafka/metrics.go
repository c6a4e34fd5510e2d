package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the Kafka audit sink.
type Metrics struct {
	Produced     prometheus.Counter
	Failures     prometheus.Counter
	Dropped      prometheus.Counter
	BreakerState prometheus.Gauge
}

// NewMetrics registers the sink metrics with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		Produced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentd_audit_kafka_produced_total",
			Help: "Audit events acknowledged by the Kafka brokers",
		}),
		Failures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentd_audit_kafka_failures_total",
			Help: "Audit events the brokers rejected or never acknowledged",
		}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentd_audit_kafka_dropped_total",
			Help: "Audit events dropped without a produce attempt because the breaker was open",
		}),
		BreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "consentd_audit_kafka_breaker_open",
			Help: "1 while the produce breaker is open",
		}),
	}
}

func (m *Metrics) incProduced() {
	if m != nil {
		m.Produced.Inc()
	}
}

func (m *Metrics) incFailures() {
	if m != nil {
		m.Failures.Inc()
	}
}

func (m *Metrics) incDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) setBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerState.Set(1)
		return
	}
	m.BreakerState.Set(0)
}

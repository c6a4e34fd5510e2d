package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the consent-record pipeline.
// All methods are no-ops on a nil receiver so tests can omit metrics.
type Metrics struct {
	RecordsWritten     *prometheus.CounterVec
	MatchVerdicts      *prometheus.CounterVec
	StatusAdjusted     *prometheus.CounterVec
	SideEffectFailures *prometheus.CounterVec
	Rejections         *prometheus.CounterVec
	RecordDuration     prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		RecordsWritten: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consentd_consent_records_written_total",
			Help: "Consent records written, by reconciled status and create/update",
		}, []string{"status", "action"}),
		MatchVerdicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consentd_consent_match_verdicts_total",
			Help: "Matcher outcomes by deciding strategy",
		}, []string{"strategy", "action"}),
		StatusAdjusted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consentd_consent_status_adjusted_total",
			Help: "Claimed statuses corrected by the reconciler",
		}, []string{"claimed", "reconciled"}),
		SideEffectFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consentd_consent_side_effect_failures_total",
			Help: "Best-effort steps that failed without failing the request",
		}, []string{"effect"}),
		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consentd_consent_rejections_total",
			Help: "Submissions refused, by error code",
		}, []string{"code"}),
		RecordDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "consentd_consent_record_duration_seconds",
			Help:    "Duration of the consent-record pipeline",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

func (m *Metrics) IncRecordWritten(status, action string) {
	if m == nil {
		return
	}
	m.RecordsWritten.WithLabelValues(status, action).Inc()
}

func (m *Metrics) IncMatchVerdict(strategy, action string) {
	if m == nil {
		return
	}
	m.MatchVerdicts.WithLabelValues(strategy, action).Inc()
}

func (m *Metrics) IncStatusAdjusted(claimed, reconciled string) {
	if m == nil {
		return
	}
	m.StatusAdjusted.WithLabelValues(claimed, reconciled).Inc()
}

func (m *Metrics) IncSideEffectFailure(effect string) {
	if m == nil {
		return
	}
	m.SideEffectFailures.WithLabelValues(effect).Inc()
}

func (m *Metrics) IncRejection(code string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(code).Inc()
}

// ObserveRecord records pipeline duration. Call with time.Now() taken at the start.
func (m *Metrics) ObserveRecord(start time.Time) {
	if m == nil {
		return
	}
	m.RecordDuration.Observe(time.Since(start).Seconds())
}

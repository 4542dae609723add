package metrics

import "github.com/prometheus/client_golang/prometheus"

// ScoringMetrics tracks risk score computation outcomes per subject type.
type ScoringMetrics struct {
	computed *prometheus.CounterVec
	failed   *prometheus.CounterVec
	scores   *prometheus.HistogramVec
}

// NewScoringMetrics registers scoring metrics on the provided registerer.
func NewScoringMetrics(reg prometheus.Registerer) *ScoringMetrics {
	if reg == nil {
		return &ScoringMetrics{}
	}
	computed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "risk_scores_computed_total",
		Help: "Risk scores computed and persisted.",
	}, []string{"subject_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "risk_scores_failed_total",
		Help: "Risk score computations that failed before persisting.",
	}, []string{"subject_type"})
	scores := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "risk_score_value",
		Help:    "Distribution of computed default probabilities.",
		Buckets: prometheus.LinearBuckets(0, 0.05, 21),
	}, []string{"subject_type"})
	reg.MustRegister(computed, failed, scores)
	return &ScoringMetrics{computed: computed, failed: failed, scores: scores}
}

// ObserveScore records one persisted score.
func (m *ScoringMetrics) ObserveScore(subjectType string, value float64) {
	if m == nil || m.computed == nil {
		return
	}
	m.computed.WithLabelValues(normalizeLabel(subjectType)).Inc()
	m.scores.WithLabelValues(normalizeLabel(subjectType)).Observe(value)
}

// IncFailure records one failed computation.
func (m *ScoringMetrics) IncFailure(subjectType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(subjectType)).Inc()
}

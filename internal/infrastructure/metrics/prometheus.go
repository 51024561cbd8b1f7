// Package metrics exposes engine counters and gauges to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "adaptive_engine"

// Metrics holds the engine's collectors.
type Metrics struct {
	InsightCandidates *prometheus.CounterVec
	Recommendations   *prometheus.CounterVec
	Retracted         prometheus.Counter
	Transitions       *prometheus.CounterVec
	CleanupItems      *prometheus.CounterVec
	CleanupFailures   prometheus.Counter
	Confidence        *prometheus.HistogramVec
	JobDuration       *prometheus.HistogramVec
	JobsRunning       *prometheus.GaugeVec
	AcceptanceRate    *prometheus.GaugeVec
	MeanRating        *prometheus.GaugeVec
}

// New creates the collectors without registering them.
func New() *Metrics {
	return &Metrics{
		InsightCandidates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "insight_candidates_total",
				Help:      "Insight candidates by generation outcome",
			},
			[]string{"outcome"},
		),
		Recommendations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recommendations_created_total",
				Help:      "Created recommendations by reason code and priority",
			},
			[]string{"type", "priority"},
		),
		Retracted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recommendations_retracted_total",
				Help:      "Active recommendations retracted by a newer one",
			},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lifecycle_transitions_total",
				Help:      "Lifecycle transitions by subject, transition and whether they applied",
			},
			[]string{"subject", "transition", "applied"},
		),
		CleanupItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cleanup_items_total",
				Help:      "Items expired or deleted by the cleanup sweep",
			},
			[]string{"action"},
		),
		CleanupFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cleanup_failures_total",
				Help:      "Per-item failures skipped by the cleanup sweep",
			},
		),
		Confidence: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "confidence_score",
				Help:      "Confidence of stored insights and recommendations",
				Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
			[]string{"subject"},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Scheduled job duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 30, 120, 600},
			},
			[]string{"job", "status"},
		),
		JobsRunning: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "jobs_running",
				Help:      "Scheduled jobs currently running",
			},
			[]string{"job"},
		),
		AcceptanceRate: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "acceptance_rate",
				Help:      "Accepted share of responded items; absent while undefined",
			},
			[]string{"subject"},
		),
		MeanRating: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "mean_feedback_rating",
				Help:      "Mean recommendation rating per algorithm version",
			},
			[]string{"algorithm_version"},
		),
	}
}

// Register registers every collector with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.InsightCandidates, m.Recommendations, m.Retracted, m.Transitions,
		m.CleanupItems, m.CleanupFailures, m.Confidence, m.JobDuration,
		m.JobsRunning, m.AcceptanceRate, m.MeanRating,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler returns the /metrics handler for a gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORDER
// ══════════════════════════════════════════════════════════════════════════════

// InsightOutcome counts one generation outcome.
func (m *Metrics) InsightOutcome(outcome string, confidence float64) {
	m.InsightCandidates.WithLabelValues(outcome).Inc()
	if outcome == "created" {
		m.Confidence.WithLabelValues("insight").Observe(confidence)
	}
}

// RecommendationCreated counts one stored recommendation.
func (m *Metrics) RecommendationCreated(typ, priority string, confidence float64, retracted int) {
	m.Recommendations.WithLabelValues(typ, priority).Inc()
	m.Confidence.WithLabelValues("recommendation").Observe(confidence)
	m.Retracted.Add(float64(retracted))
}

// Transition counts one lifecycle mutator call.
func (m *Metrics) Transition(subject, transition string, applied bool) {
	m.Transitions.WithLabelValues(subject, transition, strconv.FormatBool(applied)).Inc()
}

// Cleanup records the totals of one sweep.
func (m *Metrics) Cleanup(expiredRecommendations, expiredInsights, deleted, failures int) {
	m.CleanupItems.WithLabelValues("expire_recommendation").Add(float64(expiredRecommendations))
	m.CleanupItems.WithLabelValues("expire_insight").Add(float64(expiredInsights))
	m.CleanupItems.WithLabelValues("delete_insight").Add(float64(deleted))
	m.CleanupFailures.Add(float64(failures))
}

// JobStarted marks a scheduled job as running.
func (m *Metrics) JobStarted(job string) {
	m.JobsRunning.WithLabelValues(job).Inc()
}

// JobFinished observes a scheduled job run.
func (m *Metrics) JobFinished(job string, d time.Duration, err error) {
	m.JobsRunning.WithLabelValues(job).Dec()
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.JobDuration.WithLabelValues(job, status).Observe(d.Seconds())
}

// SetAcceptance publishes an acceptance rate; undefined rates are removed.
func (m *Metrics) SetAcceptance(subject string, value float64, defined bool) {
	if !defined {
		m.AcceptanceRate.DeleteLabelValues(subject)
		return
	}
	m.AcceptanceRate.WithLabelValues(subject).Set(value)
}

// SetMeanRating publishes a version's mean rating; undefined means are removed.
func (m *Metrics) SetMeanRating(version string, value float64, defined bool) {
	if !defined {
		m.MeanRating.DeleteLabelValues(version)
		return
	}
	m.MeanRating.WithLabelValues(version).Set(value)
}

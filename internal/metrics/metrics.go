// Package metrics exposes Prometheus collectors for answering, verification
// and ingestion.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Answer outcomes.
const (
	OutcomeAnswered = "answered"
	OutcomeClarify  = "clarify"
	OutcomeAbsent   = "absent"
	OutcomeError    = "error"
)

// Metrics holds the fredqa collectors. All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	// Answer latency by transform
	AnswerLatency *prometheus.HistogramVec

	// Answer outcomes by outcome and transform
	AnswerOutcome *prometheus.CounterVec

	// Verifier failures by check and severity
	VerifierFailures *prometheus.CounterVec

	// Evaluated cases by result
	CaseResults *prometheus.CounterVec

	// Observations written by series
	IngestedObservations *prometheus.CounterVec
}

// New creates a Metrics instance registered on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,

		AnswerLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fredqa_answer_duration_seconds",
			Help:    "Duration of answering a question by transform",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"transform"}),

		AnswerOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fredqa_answers_total",
			Help: "Total answers by outcome and transform",
		}, []string{"outcome", "transform"}),

		VerifierFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fredqa_verifier_failures_total",
			Help: "Total verifier failures by check and severity",
		}, []string{"check", "severity"}),

		CaseResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fredqa_eval_cases_total",
			Help: "Total evaluated cases by result",
		}, []string{"result"}), // result: "pass", "fail"

		IngestedObservations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fredqa_ingested_observations_total",
			Help: "Total observations written by series",
		}, []string{"series"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer returns the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// ObserveAnswer records one answered question.
func (m *Metrics) ObserveAnswer(transform, outcome string, d time.Duration) {
	if m != nil {
		m.AnswerLatency.WithLabelValues(transform).Observe(d.Seconds())
		m.AnswerOutcome.WithLabelValues(outcome, transform).Inc()
	}
}

// IncrementVerifierFailure records a verifier failure.
func (m *Metrics) IncrementVerifierFailure(check, severity string) {
	if m != nil {
		m.VerifierFailures.WithLabelValues(check, severity).Inc()
	}
}

// IncrementCase records a pass or fail case result.
func (m *Metrics) IncrementCase(passed bool) {
	if m != nil {
		result := "fail"
		if passed {
			result = "pass"
		}
		m.CaseResults.WithLabelValues(result).Inc()
	}
}

// AddIngested records observations written for a series.
func (m *Metrics) AddIngested(series string, n int64) {
	if m != nil && n > 0 {
		m.IngestedObservations.WithLabelValues(series).Add(float64(n))
	}
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for AssessmentsTotal.
const (
	OutcomeRecorded      = "recorded"
	OutcomeScoringFailed = "scoring_failed"
	OutcomePersistFailed = "persist_failed"
)

var (
	AssessmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aqua_risk_assessments_total",
			Help: "Risk assessments processed, by outcome",
		},
		[]string{"outcome"},
	)

	ScoringDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aqua_risk_scoring_duration_seconds",
			Help:    "Time spent in a single model scoring call",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"model"},
	)

	AssessmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "aqua_risk_assessment_duration_seconds",
			Help: "End-to-end assessment time including persistence",
		},
	)

	LastScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aqua_risk_last_score",
			Help: "Most recent rounded probability per model",
		},
		[]string{"model"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aqua_risk_events_published_total",
			Help: "Assessment events handed to the event sink, by result",
		},
		[]string{"result"},
	)

	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aqua_risk_stream_clients",
			Help: "Connected assessment log websocket clients",
		},
	)
)

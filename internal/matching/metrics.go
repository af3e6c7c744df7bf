package matching

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	matchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matchmaker_matches_total",
			Help: "Total number of matches committed",
		},
	)

	unmatchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matchmaker_unmatched_total",
			Help: "Total number of profiles left unmatched after a run",
		},
	)

	potentialMatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matchmaker_potential_matches_total",
			Help: "Total number of potential-match entries persisted",
		},
	)

	aiCallsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matchmaker_ai_calls_total",
			Help: "Total number of generative AI scoring calls",
		},
	)

	aiFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchmaker_ai_fallbacks_total",
			Help: "Total number of AI scoring degradations",
		},
		[]string{"reason"},
	)

	compatibilityScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matchmaker_compatibility_scores",
			Help:    "Distribution of final compatibility scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matchmaker_run_duration_seconds",
			Help:    "Wall-clock duration of full matching runs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)

func recordAIFallback(reason string) {
	aiFallbacksTotal.WithLabelValues(reason).Inc()
}

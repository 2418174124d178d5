// SPDX-License-Identifier: MIT

// Package metrics provides Prometheus metrics for the bot's session
// workflow and the Jenkins protocol phases.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// No per-session or per-build labels: session IDs and build numbers would
// explode cardinality.
var (
	// Counters

	// SessionsOpenedTotal counts successfully admitted sessions.
	SessionsOpenedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bot_sessions_opened_total",
		Help: "Total number of sessions admitted by the global lock.",
	})

	// SessionsRejectedTotal counts refused interactions by reason.
	SessionsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_sessions_rejected_total",
		Help: "Total number of rejected session opens and interactions, by reason.",
	}, []string{"reason"})

	// SessionsClosedTotal counts session terminations by reason.
	SessionsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_sessions_closed_total",
		Help: "Total number of closed sessions, by close reason.",
	}, []string{"reason"})

	// StageTransitionsTotal counts accepted stage transitions by event type.
	StageTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_stage_transitions_total",
		Help: "Total number of accepted session stage transitions, by interaction type.",
	}, []string{"interaction"})

	// JenkinsPhaseFailuresTotal counts protocol phase failures.
	JenkinsPhaseFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_jenkins_phase_failures_total",
		Help: "Total number of Jenkins protocol phase failures, by phase.",
	}, []string{"phase"})

	// ClassifierResultsTotal counts log classification outcomes.
	ClassifierResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_classifier_results_total",
		Help: "Total number of console log classifications, by resulting status.",
	}, []string{"status"})

	// SweeperExpiredTotal counts sessions force-closed by the expiry sweeper.
	SweeperExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bot_sweeper_expired_total",
		Help: "Total number of sessions expired by the background sweeper.",
	})

	// Histograms

	// JenkinsPhaseDuration observes wall time per Jenkins protocol phase.
	JenkinsPhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bot_jenkins_phase_duration_seconds",
		Help:    "Duration of Jenkins protocol phases.",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 180},
	}, []string{"phase"})

	// Gauges

	// SessionActive is 1 while the global session exists.
	SessionActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bot_session_active",
		Help: "Whether the single global session currently exists (0 or 1).",
	})
)

// Package metrics exposes Prometheus counters for engine activity.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andas-app/andas/internal/safety"
)

var (
	// decisionsTotal counts safety decisions by kind and reason.
	// reason is the block reason or adaptation name, empty for allow.
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "andas_safety_decisions_total",
		Help: "Total safety decisions by kind and reason",
	}, []string{"kind", "reason"})

	recommendationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "andas_recommendations_total",
		Help: "Total recommendations by selected exercise",
	}, []string{"exercise"})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "andas_sessions_recorded_total",
		Help: "Total recorded sessions by feedback and outcome",
	}, []string{"feedback", "early_exit"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "andas_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 10),
	}, []string{"route", "status"})
)

// ObserveDecision counts one safety decision.
func ObserveDecision(d safety.Decision) {
	reason := ""
	switch d.Kind {
	case safety.KindBlock:
		reason = string(d.Reason)
	case safety.KindAdapt:
		reason = string(d.Adaptation)
	}
	decisionsTotal.WithLabelValues(string(d.Kind), reason).Inc()
}

// ObserveRecommendation counts one recommendation.
func ObserveRecommendation(exerciseID string) {
	recommendationsTotal.WithLabelValues(exerciseID).Inc()
}

// ObserveSession counts one recorded session. feedback is "" when none was given.
func ObserveSession(feedback string, earlyExit bool) {
	if feedback == "" {
		feedback = "none"
	}
	exit := "false"
	if earlyExit {
		exit = "true"
	}
	sessionsTotal.WithLabelValues(feedback, exit).Inc()
}

// ObserveRequest records how long a request to route took.
func ObserveRequest(route, status string, d time.Duration) {
	requestDuration.WithLabelValues(route, status).Observe(d.Seconds())
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecisionsTotal counts authorization decisions by effect and by the
	// failure kind that caused a Deny. Allow decisions use the reason "OK".
	//
	// Example usage:
	// metrics.DecisionsTotal.WithLabelValues("Deny", "TokenExpired").Inc()
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_decisions_total",
			Help: "Number of authorization decisions made by the gate.",
		},
		[]string{"effect", "reason"},
	)

	// DecisionDuration is a histogram of the time taken to reach a decision,
	// including signature verification.
	DecisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authgate_decision_duration_seconds",
			Help:    "A histogram of latencies to reach an authorization decision.",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1},
		},
		[]string{"effect"},
	)

	// RequestsTotal counts the number of HTTP requests served by the gate.
	//
	// Example usage:
	// metrics.RequestsTotal.WithLabelValues("authorize", "403").Inc()
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_requests_total",
			Help: "Number of HTTP requests served by the gate.",
		},
		[]string{"type", "status"},
	)

	// KeyLoadsTotal counts attempts to load verification key material at
	// startup, by source and status.
	KeyLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_key_loads_total",
			Help: "Number of attempts to load verification key material.",
		},
		[]string{"source", "status"},
	)

	// TrustedKeys is the number of verification keys currently trusted.
	TrustedKeys = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "authgate_trusted_keys",
			Help: "Number of verification keys trusted by the gate.",
		},
	)
)

// Package metrics exposes business counters for the settlement engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	betTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_bet_requests_total",
			Help: "Total place-bet requests by result and game",
		},
		[]string{"result", "game"},
	)

	betDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "settlement_bet_request_duration_ms",
			Help:    "Place-bet request duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result", "game"},
	)

	resolveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_resolve_requests_total",
			Help: "Total resolve requests by result and game",
		},
		[]string{"result", "game"},
	)

	resolveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "settlement_resolve_request_duration_ms",
			Help:    "Resolve request duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result", "game"},
	)
)

// RecordBet records one place-bet call. result is "success" or "fail".
func RecordBet(result, game string, started time.Time) {
	if result != "success" {
		result = "fail"
	}

	betTotal.WithLabelValues(result, game).Inc()
	betDuration.WithLabelValues(result, game).Observe(float64(time.Since(started).Milliseconds()))
}

// RecordResolve records one resolve call. result is "success" or "fail".
func RecordResolve(result, game string, started time.Time) {
	if result != "success" {
		result = "fail"
	}

	resolveTotal.WithLabelValues(result, game).Inc()
	resolveDuration.WithLabelValues(result, game).Observe(float64(time.Since(started).Milliseconds()))
}

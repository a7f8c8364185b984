// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LiveSessions tracks the registry's current live-session count.
	LiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lobbybot",
		Name:      "live_sessions",
		Help:      "Number of live sessions in the registry.",
	})

	// SessionStarts counts start attempts by outcome.
	SessionStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lobbybot",
		Name:      "session_starts_total",
		Help:      "Session start attempts by outcome.",
	}, []string{"outcome"})

	// SessionStops counts stops by termination reason.
	SessionStops = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lobbybot",
		Name:      "session_stops_total",
		Help:      "Session stops by termination reason.",
	}, []string{"reason"})

	// AuthFlows counts device-code flows by outcome.
	AuthFlows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lobbybot",
		Name:      "auth_flows_total",
		Help:      "Device-code auth flows by outcome.",
	}, []string{"outcome"})

	// SweepDuration observes timeout-monitor sweep latency.
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lobbybot",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of timeout monitor sweeps.",
		Buckets:   prometheus.DefBuckets,
	})

	// IdleWarnings counts idle warnings sent.
	IdleWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lobbybot",
		Name:      "idle_warnings_total",
		Help:      "Idle warnings delivered to users.",
	})
)

package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "launchr"

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	launches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "launches_total",
			Help:      "Number of game processes spawned.",
		}, []string{"version"},
	)
	launchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "launch_failures_total",
			Help:      "Launch requests rejected before or during spawn, by error kind.",
		}, []string{"kind"},
	)
	exits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "exits_total",
			Help:      "Game process exits by outcome (clean, crashed, stopped).",
		}, []string{"version", "outcome"},
	)
	sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "session_duration_seconds",
			Help:      "Wall time between spawn and exit.",
			Buckets:   []float64{1, 10, 60, 300, 900, 1800, 3600, 7200, 14400},
		}, []string{"version"},
	)
	runningSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "running_sessions",
			Help:      "Game processes currently alive.",
		},
	)
	stageTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "install",
			Name:      "stage_transitions_total",
			Help:      "Install pipeline stage transitions.",
		}, []string{"from", "to"},
	)
	installs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "install",
			Name:      "installs_total",
			Help:      "Finished installs by outcome (completed, error).",
		}, []string{"outcome"},
	)
	installBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "install",
			Name:      "downloaded_bytes_total",
			Help:      "Bytes downloaded by install jobs.",
		},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		launches, launchFailures, exits, sessionDuration, runningSessions,
		stageTransitions, installs, installBytes,
		sessionCPU, sessionMemory, sessionThreads,
	}
}

// Register registers all metrics with the provided registerer. It may be called
// again with the same or another registerer; collectors already present are skipped.
func Register(r prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// HandlerFor serves metrics from a specific gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Helpers below no-op until Register has succeeded.

func IncLaunch(version string) {
	if regOK.Load() {
		launches.WithLabelValues(version).Inc()
		runningSessions.Inc()
	}
}

func IncLaunchFailure(kind string) {
	if regOK.Load() {
		launchFailures.WithLabelValues(kind).Inc()
	}
}

// ObserveExit records an exit; outcome is one of clean, crashed, stopped.
func ObserveExit(version, outcome string, seconds float64) {
	if regOK.Load() {
		exits.WithLabelValues(version, outcome).Inc()
		sessionDuration.WithLabelValues(version).Observe(seconds)
		runningSessions.Dec()
	}
}

func RecordStageTransition(from, to string) {
	if regOK.Load() {
		stageTransitions.WithLabelValues(from, to).Inc()
	}
}

func IncInstall(outcome string) {
	if regOK.Load() {
		installs.WithLabelValues(outcome).Inc()
	}
}

func AddInstallBytes(n int64) {
	if regOK.Load() && n > 0 {
		installBytes.Add(float64(n))
	}
}

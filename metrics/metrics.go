// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lathe"

var (
	Ticks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "control",
		Name:      "ticks_total",
		Help:      "Control loop ticks.",
	})

	Running = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "control",
		Name:      "running",
		Help:      "1 while the control loop is polling.",
	})

	// Polls is labelled by result: ok, error, stale or skipped.
	Polls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "hal",
		Name:      "polls_total",
		Help:      "Hardware polls by result.",
	}, []string{"result"})

	PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "hal",
		Name:      "poll_duration_seconds",
		Help:      "Hardware poll round trip.",
		Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5},
	})

	// Commands is labelled by result: sent, failed or dropped.
	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "hal",
		Name:      "commands_total",
		Help:      "Actuator commands by result.",
	}, []string{"result"})

	Cycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cycle",
		Name:      "dispatches_total",
		Help:      "Cycle dispatches by kind and result.",
	}, []string{"kind", "result"})

	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Operator API requests by status code.",
	}, []string{"code"})
)

// Handler serves every registered collector.
func Handler() http.Handler {
	return promhttp.Handler()
}

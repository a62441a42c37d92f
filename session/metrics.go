package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricGenerations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livetest",
		Name:      "generations_total",
		Help:      "Generations by outcome (finished, stopped, failed).",
	}, []string{"outcome"})
	metricRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livetest",
		Name:      "runs_total",
		Help:      "Browser runs by final disposition (completed, aborted, skipped).",
	}, []string{"disposition"})
	metricRejectedCommands = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "livetest",
		Name:      "rejected_commands_total",
		Help:      "Commands rejected after a stop request.",
	})
	metricHeldGates = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "livetest",
		Name:      "held_pages",
		Help:      "Finished runs whose page is held open for interaction.",
	})
)

func recordGeneration(outcome string) {
	metricGenerations.WithLabelValues(outcome).Inc()
}

func recordRun(disposition string) {
	metricRuns.WithLabelValues(disposition).Inc()
}

func recordRejectedCommand() {
	metricRejectedCommands.Inc()
}

func recordHeldGates(n int) {
	metricHeldGates.Set(float64(n))
}

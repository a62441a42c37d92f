package controller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livetest",
		Name:      "operator_commands_total",
		Help:      "Operator commands handled by the controller.",
	}, []string{"command"})
	metricChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livetest",
		Name:      "source_changes_total",
		Help:      "Source change events by outcome (started, coalesced, ignored).",
	}, []string{"outcome"})
	metricGenerationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livetest",
		Name:      "generation_requests_total",
		Help:      "Generations requested, by trigger.",
	}, []string{"trigger"})
)

func recordCommand(name string) {
	metricCommands.WithLabelValues(name).Inc()
}

func recordChange(outcome string) {
	metricChanges.WithLabelValues(outcome).Inc()
}

func recordGenerationRequest(sourceChanged bool) {
	trigger := "operator"
	if sourceChanged {
		trigger = "change"
	}
	metricGenerationRequests.WithLabelValues(trigger).Inc()
}

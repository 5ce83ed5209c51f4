package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var decisionProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "marshal_decision_duration_sec",
	Help: "Total duration of decision processing, notifications included",
}, []string{"outcome"})

var decisionProcessedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "marshal_decisions_processed",
	Help: "Number of decisions processed without errors",
}, []string{"outcome"})

var decisionErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "marshal_decision_errors",
	Help: "Number of decisions which failed processing, by stage",
}, []string{"outcome", "stage"})

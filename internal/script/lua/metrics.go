// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package lua

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simscript_script_events_total",
			Help: "Events handled by scripts",
		},
		[]string{"event"},
	)

	handlerErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "simscript_script_errors_total",
			Help: "Event handlers that raised an error",
		},
	)

	handlerDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "simscript_script_handler_duration_seconds",
			Help:    "Time spent inside event handlers",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// RegisterMetrics registers the script runner metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(eventsHandled, handlerErrors, handlerDuration)
}

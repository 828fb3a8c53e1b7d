// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package eventq

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsPosted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simscript_events_posted_total",
			Help: "Total number of events queued for scripts",
		},
		[]string{"event"},
	)

	eventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simscript_events_dropped_total",
			Help: "Total number of events dropped because a script queue was full",
		},
		[]string{"event"},
	)

	eventsUnrouted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simscript_events_unrouted_total",
		Help: "Total number of events posted to scripts that no longer exist",
	})
)

// RegisterMetrics registers event queue metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(eventsPosted, eventsDropped, eventsUnrouted)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package registry

import "github.com/prometheus/client_golang/prometheus"

// Completion outcomes.
const (
	outcomeResolved  = "resolved"
	outcomeSilent    = "silent"
	outcomeExpired   = "expired"
	outcomeCancelled = "cancelled"
)

var (
	requestsRegistered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simscript_requests_registered_total",
			Help: "Total number of deferred requests registered",
		},
		[]string{"operation"},
	)

	requestsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simscript_requests_completed_total",
			Help: "Total number of deferred requests completed, by outcome",
		},
		[]string{"operation", "outcome"},
	)

	requestsOrphaned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simscript_requests_orphaned_total",
		Help: "Replies dropped because their request was already resolved or cancelled",
	})

	pendingRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "simscript_requests_pending",
		Help: "Current number of outstanding deferred requests",
	})
)

// RegisterMetrics registers registry metrics with reg.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(requestsRegistered, requestsCompleted, requestsOrphaned, pendingRequests)
}

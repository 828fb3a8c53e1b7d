// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package dispatch

import "github.com/prometheus/client_golang/prometheus"

// Execution statuses.
const (
	statusOK        = "ok"
	statusError     = "error"
	statusTimeout   = "timeout"
	statusCancelled = "cancelled"
	statusPanic     = "panic"
	statusSkipped   = "skipped"
)

var (
	dispatchOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simscript_dispatch_executions_total",
			Help: "Total number of deferred operation executions, by status",
		},
		[]string{"operation", "status"},
	)

	dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "simscript_dispatch_duration_seconds",
			Help:    "Deferred operation execution time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// RegisterMetrics registers dispatch metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(dispatchOutcomes, dispatchDuration)
}

func recordOutcome(operation, status string) {
	dispatchOutcomes.WithLabelValues(operation, status).Inc()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package throttle

import "github.com/prometheus/client_golang/prometheus"

var (
	throttledCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simscript_throttled_calls_total",
			Help: "Total number of calls that forced the calling script to pause",
		},
		[]string{"category"},
	)

	trackedWindows = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "simscript_throttle_windows",
		Help: "Current number of tracked throttle windows",
	})

	gateRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simscript_gate_rejections_total",
		Help: "Total number of calls refused by a per-script token bucket",
	})
)

// RegisterMetrics registers throttle metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(throttledCalls, trackedWindows, gateRejections)
}

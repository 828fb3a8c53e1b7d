// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package listen

import "github.com/prometheus/client_golang/prometheus"

var (
	openListens = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "simscript_listens_open",
		Help: "Current number of open channel listens",
	})

	listenMatches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simscript_listen_matches_total",
		Help: "Total number of listen events produced by chat",
	})

	sensorSweeps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simscript_sensor_sweeps_total",
			Help: "Total number of sensor sweeps delivered, by result",
		},
		[]string{"result"},
	)
)

// RegisterMetrics registers listen and sensor metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(openListens, listenMatches, sensorSweeps)
}

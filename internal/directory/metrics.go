// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package directory

import "github.com/prometheus/client_golang/prometheus"

var cacheLookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "simscript_directory_cache_lookups_total",
		Help: "Directory cache lookups, by result",
	},
	[]string{"result"},
)

// RegisterMetrics registers directory metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(cacheLookups)
}

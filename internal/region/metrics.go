// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package region

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/holomush/simscript/internal/directory"
	"github.com/holomush/simscript/internal/dispatch"
	"github.com/holomush/simscript/internal/eventq"
	"github.com/holomush/simscript/internal/listen"
	"github.com/holomush/simscript/internal/registry"
	scriptlua "github.com/holomush/simscript/internal/script/lua"
	"github.com/holomush/simscript/internal/throttle"
)

var (
	scriptsRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "simscript_region_scripts",
		Help: "Number of scripts running in the region",
	})
	scriptResets = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simscript_region_script_resets_total",
		Help: "Total number of script resets",
	})
	scriptErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simscript_region_script_errors_total",
		Help: "Total number of script errors reported on the debug channel",
	})
)

// RegisterMetrics registers the region's metrics and those of every table
// it owns.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(scriptsRunning, scriptResets, scriptErrors)
	registry.RegisterMetrics(reg)
	dispatch.RegisterMetrics(reg)
	eventq.RegisterMetrics(reg)
	throttle.RegisterMetrics(reg)
	listen.RegisterMetrics(reg)
	directory.RegisterMetrics(reg)
	scriptlua.RegisterMetrics(reg)
}

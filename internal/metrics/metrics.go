// Package metrics holds the Prometheus collectors shared by inventory and
// dispatch. Collectors live on a package registry so a run can be exported
// to a text file without pulling in the Go runtime collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry receives every clinventory collector.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	PlatformsDiscovered = factory.NewGauge(prometheus.GaugeOpts{
		Name: "clinventory_platforms_discovered",
		Help: "Number of platforms reported by the runtime in the last enumeration",
	})

	DevicesDiscovered = factory.NewGaugeVec(prometheus.GaugeOpts{
		Name: "clinventory_devices_discovered",
		Help: "Number of devices reported per category, summed over platforms",
	}, []string{"category"})

	CapabilityReadErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "clinventory_capability_read_errors_total",
		Help: "Total number of failed device property reads",
	}, []string{"property"})

	DispatchPasses = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "clinventory_dispatch_passes_total",
		Help: "Total number of dispatch passes by outcome (ok, failed, invalid)",
	}, []string{"outcome"})

	StageFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "clinventory_dispatch_stage_failures_total",
		Help: "Total number of dispatch passes that failed, by failing stage",
	}, []string{"stage"})

	ReleaseFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "clinventory_dispatch_release_failures_total",
		Help: "Total number of failed resource releases, by resource kind",
	}, []string{"resource"})

	DispatchDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "clinventory_dispatch_duration_seconds",
		Help:    "End-to-end duration of a dispatch pass",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	})
)

// Outcome labels for DispatchPasses.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeInvalid = "invalid"
)

// WriteFile writes the registry in the Prometheus text format.
func WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}

// Package metrics exposes runtime counters via the OpenTelemetry global meter.
// Instruments are created against the global provider and start exporting as
// soon as telemetry.Setup installs a real MeterProvider.
package metrics

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/dwsmith1983/prebuild"

var meter = otel.Meter(instrumentationName)

var (
	Decisions        = counter("prebuild.decisions", "Coordinator decisions that let the primary job proceed")
	Failures         = counter("prebuild.failures", "Coordinator failures by kind")
	UpstreamWait     = histogram("prebuild.upstream.wait", "s", "Time spent blocked on an upstream build")
	BuildsScheduled  = counter("prebuild.builds.scheduled", "Builds accepted by the queue")
	BuildsDeduped    = counter("prebuild.builds.deduplicated", "Schedule requests answered with an already queued build")
	BuildsFinished   = counter("prebuild.builds.finished", "Builds finished by result")
	SCMPolls         = counter("prebuild.scm.polls", "SCM polls by outcome")
	AlertsDispatched = counter("prebuild.alerts.dispatched", "Alerts delivered to sinks")
	AlertsFailed     = counter("prebuild.alerts.failed", "Alerts that a sink failed to deliver")
)

func counter(name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		panic(err)
	}
	return c
}

func histogram(name, unit, desc string) metric.Float64Histogram {
	h, err := meter.Float64Histogram(name, metric.WithUnit(unit), metric.WithDescription(desc))
	if err != nil {
		panic(err)
	}
	return h
}

// Package telemetry sets up OpenTelemetry tracing and metrics for insightd.
//
// When disabled, New returns an instance whose Tracer and Meter fall back to
// the global no-op providers. Exporter failures degrade the instance instead
// of failing startup. NewTestTelemetry records spans and metrics in memory.
package telemetry

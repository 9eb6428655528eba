// Package otel publishes authcore counters and the login latency histogram
// as OpenTelemetry observable instruments.
//
// [NewExporter] registers an Int64ObservableCounter per counter and an
// Int64ObservableGauge per cumulative histogram bucket. One callback reads
// a metrics snapshot per collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate manager state.
package otel

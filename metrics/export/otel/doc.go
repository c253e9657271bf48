// Package otel binds authgate counters to OpenTelemetry instruments.
//
// [NewExporter] registers one Int64ObservableCounter per gateway counter and
// one Int64ObservableGauge per latency bucket. A single callback reads
// authgate.Engine.MetricsSnapshot on each collection cycle.
//
// The caller owns the MeterProvider.
package otel

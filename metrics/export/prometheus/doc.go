// Package prometheus exposes authgate counters through prometheus/client_golang.
//
// [Collector] implements prometheus.Collector by reading
// authgate.Engine.MetricsSnapshot on every scrape. Counter names are
// authgate_*_total; the single histogram is authgate_verify_latency_seconds.
//
// Nothing is registered globally: callers register the Collector themselves
// or mount [Handler], which uses a private registry.
package prometheus

// Package metrics exposes resolver activity in the Prometheus text format
// (text/plain; version=0.0.4) using only the standard library.
//
// Supported metric types:
//   - Counter: monotonically increasing value (e.g., resolutions)
//   - Gauge: value that can go up or down (e.g., loaded endpoints)
//   - Histogram: distribution of values with fixed buckets (e.g., latencies)
//
// All metrics are safe for concurrent use. Label values are passed to each
// update call:
//
//	c := r.NewCounter("jobs_total", "Jobs run", "queue")
//	c.Inc("default")
//
// Collector wires a registry to the engine: pass it to engine.WithHooks to
// count resolutions and pushbacks, to engine.Instrument to count HTTP
// requests, and serve Collector.Handler at engine.MetricsPath.
//
// # Metrics
//
//   - mockresolver_resolutions_total: labels endpoint, status
//   - mockresolver_resolution_duration_seconds: labels endpoint
//   - mockresolver_pushbacks_total: labels endpoint, outcome (delivered, failed, dropped)
//   - mockresolver_pushback_attempts_total: labels endpoint
//   - mockresolver_pushback_duration_seconds: labels endpoint
//   - mockresolver_http_requests_total: labels method, status
//   - mockresolver_http_request_duration_seconds: labels method
//   - mockresolver_endpoints
//   - mockresolver_uptime_seconds and go_* runtime gauges
package metrics

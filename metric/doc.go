// Package metric provides Prometheus metrics for the querystream driver.
//
// # Overview
//
// The package follows a dual-tracking pattern: hot-path components keep
// always-on atomic statistics, while Prometheus metrics are opt-in through a
// MetricsRegistry passed at construction time. A driver embedded in a larger
// process can hand the registry's underlying prometheus.Registry to its own
// exposition endpoint, or use Handler() directly.
//
// # Core metrics
//
// Metrics covers the driver's observable behavior:
//
//   - frames received, routed, and dropped by response type
//   - queries dispatched by query type (start, continue, stop)
//   - cursors currently active
//   - handler deliveries by outcome and their duration
//   - handler faults and reconnect attempts
//
// # Usage
//
//	registry := metric.NewMetricsRegistry()
//	conn, err := driver.Connect(addr, driver.WithMetrics(registry))
//	...
//	http.Handle("/metrics", metric.Handler(registry))
package metric

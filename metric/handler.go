package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns an HTTP handler exposing the registry's metrics in
// Prometheus exposition format. The driver itself never serves HTTP; the
// embedding process mounts this wherever it exposes metrics.
func Handler(registry *MetricsRegistry) http.Handler {
	return promhttp.HandlerFor(registry.PrometheusRegistry(), promhttp.HandlerOpts{})
}

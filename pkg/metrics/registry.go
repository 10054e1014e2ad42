// Package metrics defines the metrics interfaces the session engine, upload
// coordinator, and archival tier accept, plus the shared Prometheus registry
// the prometheus subpackage's implementations register against.
//
// Every interface here is optional: a nil implementation disables metrics
// collection with zero overhead, so callers can pass nil when metrics are
// not configured rather than branching on an enabled flag themselves.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	enabled  bool
	registry *prometheus.Registry
)

// InitRegistry creates the process-wide Prometheus registry. Must be called
// before any New*Metrics constructor in the prometheus subpackage, or those
// constructors return nil.
func InitRegistry() *prometheus.Registry {
	registry = prometheus.NewRegistry()
	enabled = true
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return enabled
}

// GetRegistry returns the process-wide registry, or nil if metrics were
// never initialized.
func GetRegistry() *prometheus.Registry {
	return registry
}

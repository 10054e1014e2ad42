package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/relayfs/pkg/metrics"
)

// archiveMetrics is the Prometheus implementation of metrics.ArchiveMetrics.
type archiveMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
}

// NewArchiveMetrics creates a new Prometheus-backed metrics.ArchiveMetrics
// instance. Returns nil if metrics are not enabled (InitRegistry not
// called).
func NewArchiveMetrics() metrics.ArchiveMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &archiveMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "relayfs_archive_operations_total",
				Help: "Total number of archive operations by type and outcome",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relayfs_archive_operation_duration_milliseconds",
				Help:    "Duration of archive operations in milliseconds",
				Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000, 30000},
			},
			[]string{"operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "relayfs_archive_bytes_transferred_total",
				Help: "Total bytes transferred via archive operations",
			},
			[]string{"operation"},
		),
	}
}

func (m *archiveMetrics) RecordOperation(operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(float64(duration.Milliseconds()))
}

func (m *archiveMetrics) RecordBytesTransferred(operation string, bytes int) {
	m.bytesTransferred.WithLabelValues(operation).Add(float64(bytes))
}

// Package prometheus provides Prometheus-backed implementations of the
// interfaces defined in pkg/metrics, registered against the registry built
// by metrics.InitRegistry.
package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/relayfs/pkg/metrics"
)

// wsMetrics is the Prometheus implementation of metrics.WSMetrics.
type wsMetrics struct {
	connectionsAccepted prometheus.Counter
	connectionsClosed    prometheus.Counter
	establishTotal       *prometheus.CounterVec
	broadcastTotal       *prometheus.CounterVec
	broadcastRecipients  *prometheus.HistogramVec
	uploadAdmittedBytes  prometheus.Counter
	uploadAdmittedTotal  prometheus.Counter
	uploadSliceBytes     prometheus.Counter
	uploadSliceTotal     prometheus.Counter
	uploadCompleteTotal  prometheus.Counter
	uploadDuration       prometheus.Histogram
	downloadCodesMinted  prometheus.Counter
}

// NewWSMetrics creates a new Prometheus-backed metrics.WSMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called), matching
// the nil-disables-collection convention every metrics consumer relies on.
func NewWSMetrics() metrics.WSMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &wsMetrics{
		connectionsAccepted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "relayfs_ws_connections_accepted_total",
			Help: "Total number of WebSocket connections accepted",
		}),
		connectionsClosed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "relayfs_ws_connections_closed_total",
			Help: "Total number of WebSocket connections closed",
		}),
		establishTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "relayfs_ws_establish_total",
				Help: "Total number of completed Establish/Reconnect handshakes",
			},
			[]string{"user_type", "reconnect"},
		),
		broadcastTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "relayfs_ws_broadcast_total",
				Help: "Total number of fan-out deliveries by dispatch policy",
			},
			[]string{"dispatch"},
		),
		broadcastRecipients: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relayfs_ws_broadcast_recipients",
				Help:    "Number of sessions reached per fan-out delivery",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
			},
			[]string{"dispatch"},
		),
		uploadAdmittedBytes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "relayfs_upload_admitted_bytes_total",
			Help: "Total declared size of admitted uploads in bytes",
		}),
		uploadAdmittedTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "relayfs_upload_admitted_total",
			Help: "Total number of uploads admitted to the upload engine",
		}),
		uploadSliceBytes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "relayfs_upload_slice_bytes_total",
			Help: "Total bytes applied via binary slice frames",
		}),
		uploadSliceTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "relayfs_upload_slice_total",
			Help: "Total number of binary slice frames applied",
		}),
		uploadCompleteTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "relayfs_upload_completed_total",
			Help: "Total number of uploads completed",
		}),
		uploadDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name: "relayfs_upload_duration_seconds",
			Help: "Time from admission to completion for an upload",
			Buckets: []float64{
				0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 3600,
			},
		}),
		downloadCodesMinted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "relayfs_download_codes_minted_total",
			Help: "Total number of download codes minted",
		}),
	}
}

func (m *wsMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *wsMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

func (m *wsMetrics) RecordEstablish(userType string, reconnect bool) {
	m.establishTotal.WithLabelValues(userType, strconv.FormatBool(reconnect)).Inc()
}

func (m *wsMetrics) RecordBroadcast(dispatch string, recipients int) {
	m.broadcastTotal.WithLabelValues(dispatch).Inc()
	m.broadcastRecipients.WithLabelValues(dispatch).Observe(float64(recipients))
}

func (m *wsMetrics) RecordUploadAdmitted(bytes uint64) {
	m.uploadAdmittedTotal.Inc()
	m.uploadAdmittedBytes.Add(float64(bytes))
}

func (m *wsMetrics) RecordUploadSlice(bytes uint64) {
	m.uploadSliceTotal.Inc()
	m.uploadSliceBytes.Add(float64(bytes))
}

func (m *wsMetrics) RecordUploadCompleted(duration time.Duration) {
	m.uploadCompleteTotal.Inc()
	m.uploadDuration.Observe(duration.Seconds())
}

func (m *wsMetrics) RecordDownloadCodeMinted() {
	m.downloadCodesMinted.Inc()
}

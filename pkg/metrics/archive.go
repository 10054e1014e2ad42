package metrics

import "time"

// ArchiveMetrics provides observability for the optional S3 archival tier.
// Pass nil to disable metrics collection with zero overhead.
type ArchiveMetrics interface {
	// RecordOperation records one archive operation (put/get/delete/health),
	// its outcome, and how long it took.
	RecordOperation(operation string, success bool, duration time.Duration)

	// RecordBytesTransferred records bytes moved by a put or get operation.
	RecordBytesTransferred(operation string, bytes int)
}

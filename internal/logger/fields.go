package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging across the session, dispatch,
// and upload subsystems. Use these consistently so log lines can be
// aggregated and queried without per-callsite key drift.
const (
	// Distributed tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Session / connection identity
	KeySessionHash = "session_hash" // UserCtx.Hash()
	KeyUsername    = "username"
	KeyClientIP    = "client_ip"
	KeyUserAgent   = "user_agent"

	// Wire protocol
	KeyMsgClass  = "msg_class"  // WsMessageClass variant name
	KeyDispatch  = "dispatch"   // WsDispatchType variant name
	KeyRecipient = "recipient"  // recipient count for a dispatch

	// Upload engine
	KeyFileHash   = "file_hash"
	KeyFilename   = "filename"
	KeySliceIndex = "slice_index"
	KeySliceSize  = "slice_size"
	KeyWorkerID   = "worker_id"
	KeySize       = "size"
	KeyOffset     = "offset"

	// Storage backend
	KeyStoreType  = "store_type" // filesystem, s3
	KeyBucket     = "bucket"
	KeyRegion     = "region"
	KeyAttempt    = "attempt"
	KeyMaxRetries = "max_retries"

	// Operation metadata
	KeyOperation  = "operation"
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
)

// TraceID returns a slog.Attr for the OpenTelemetry trace ID.
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// SpanID returns a slog.Attr for the OpenTelemetry span ID.
func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

// SessionHash returns a slog.Attr for a session's stable hash token.
func SessionHash(hash string) slog.Attr { return slog.String(KeySessionHash, hash) }

// Username returns a slog.Attr for a username.
func Username(name string) slog.Attr { return slog.String(KeyUsername, name) }

// ClientIP returns a slog.Attr for the client's remote address.
func ClientIP(addr string) slog.Attr { return slog.String(KeyClientIP, addr) }

// UserAgent returns a slog.Attr for the client's declared user agent.
func UserAgent(ua string) slog.Attr { return slog.String(KeyUserAgent, ua) }

// MsgClass returns a slog.Attr for a WsMessageClass variant name.
func MsgClass(class string) slog.Attr { return slog.String(KeyMsgClass, class) }

// Dispatch returns a slog.Attr for a WsDispatchType variant name.
func Dispatch(policy string) slog.Attr { return slog.String(KeyDispatch, policy) }

// Recipients returns a slog.Attr for the number of sessions a dispatch reached.
func Recipients(n int) slog.Attr { return slog.Int(KeyRecipient, n) }

// FileHash returns a slog.Attr for an upload's content fingerprint.
func FileHash(hash string) slog.Attr { return slog.String(KeyFileHash, hash) }

// Filename returns a slog.Attr for a file's name.
func Filename(name string) slog.Attr { return slog.String(KeyFilename, name) }

// SliceIndex returns a slog.Attr for a binary frame's slice index.
func SliceIndex(idx uint32) slog.Attr { return slog.Any(KeySliceIndex, idx) }

// SliceSize returns a slog.Attr for the negotiated slice size.
func SliceSize(size uint64) slog.Attr { return slog.Uint64(KeySliceSize, size) }

// WorkerID returns a slog.Attr for the owning upload worker's index.
func WorkerID(id int) slog.Attr { return slog.Int(KeyWorkerID, id) }

// Size returns a slog.Attr for a byte count.
func Size(s uint64) slog.Attr { return slog.Uint64(KeySize, s) }

// Offset returns a slog.Attr for a byte offset.
func Offset(off uint64) slog.Attr { return slog.Uint64(KeyOffset, off) }

// StoreType returns a slog.Attr for the archival backend in use.
func StoreType(t string) slog.Attr { return slog.String(KeyStoreType, t) }

// Bucket returns a slog.Attr for an S3 bucket name.
func Bucket(name string) slog.Attr { return slog.String(KeyBucket, name) }

// Region returns a slog.Attr for a cloud region.
func Region(r string) slog.Attr { return slog.String(KeyRegion, r) }

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr { return slog.Int(KeyAttempt, n) }

// MaxRetries returns a slog.Attr for the configured retry ceiling.
func MaxRetries(n int) slog.Attr { return slog.Int(KeyMaxRetries, n) }

// DurationMs returns a slog.Attr for an operation's duration in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Operation returns a slog.Attr naming the operation or message kind handled.
func Operation(op string) slog.Attr { return slog.String(KeyOperation, op) }

// Err returns a slog.Attr for an error, or a zero Attr for a nil error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Hex formats a byte slice as lowercase hex for log output.
func Hex(b []byte) string {
	return fmt.Sprintf("%x", b)
}

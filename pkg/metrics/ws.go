package metrics

import "time"

// WSMetrics provides observability for the WebSocket session engine and
// upload coordinator.
//
// Implementations can collect metrics about connection lifecycle, message
// traffic, fan-out, and upload throughput. This interface is optional —
// pass nil to disable metrics collection with zero overhead.
type WSMetrics interface {
	// RecordConnectionAccepted increments the total accepted connections
	// counter, called once per successful WebSocket upgrade.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the total closed connections
	// counter, called once per session teardown.
	RecordConnectionClosed()

	// RecordEstablish records a completed Establish/Reconnect handshake.
	//
	// Parameters:
	//   - userType: the established user's UserType
	//   - reconnect: true if this was a Reconnect rather than a fresh Establish
	RecordEstablish(userType string, reconnect bool)

	// RecordBroadcast records a fan-out delivery resolved by a dispatch
	// policy.
	//
	// Parameters:
	//   - dispatch: the WsDispatchType name (e.g. "Broadcast", "Targets")
	//   - recipients: number of sessions the envelope was delivered to
	RecordBroadcast(dispatch string, recipients int)

	// RecordUploadAdmitted records a file admitted to the upload engine.
	//
	// Parameters:
	//   - bytes: the file's declared size
	RecordUploadAdmitted(bytes uint64)

	// RecordUploadSlice records a single binary slice frame applied to an
	// in-flight upload.
	//
	// Parameters:
	//   - bytes: the slice payload's length
	RecordUploadSlice(bytes uint64)

	// RecordUploadCompleted records a finished upload.
	//
	// Parameters:
	//   - duration: time from Admit to Complete
	RecordUploadCompleted(duration time.Duration)

	// RecordDownloadCodeMinted increments the total download codes minted
	// counter.
	RecordDownloadCodeMinted()
}

package upload

import (
	"os"
	"time"

	"github.com/marmos91/relayfs/pkg/identity"
	"github.com/marmos91/relayfs/pkg/wsproto"
)

// Job holds everything the upload engine needs for one in-flight file: the
// originating request and session, an append-capable file handle positioned
// at storage_root/username/filename, and an idle watchdog nudging a stalled
// client. The server never decides when an upload is complete on its own —
// the client observes Ok for every slice and sends the terminal Finish.
type Job struct {
	Req wsproto.FileRequest
	Ctx identity.UserCtx

	path       string
	file       *os.File
	watchdog   *Watchdog
	admittedAt time.Time
}

// TotalSlices returns ceil(total_size / slice_size), the number of slices
// this job expects to receive.
func (j *Job) TotalSlices() uint64 {
	if j.Req.SliceSize == 0 {
		return 0
	}
	return (j.Req.Size + j.Req.SliceSize - 1) / j.Req.SliceSize
}

// Close stops the idle watchdog and closes the underlying file handle.
func (j *Job) Close() error {
	j.watchdog.Stop()
	return j.file.Close()
}

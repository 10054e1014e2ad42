package upload

import (
	"sync"

	"github.com/marmos91/relayfs/internal/logger"
	"github.com/marmos91/relayfs/pkg/bufpool"
	"github.com/marmos91/relayfs/pkg/identity"
	"github.com/marmos91/relayfs/pkg/wsproto"
)

// Notifier delivers an outbound envelope to the sessions a dispatch policy
// resolves to, relative to the session that owns a job. Implemented by
// pkg/fanout against the live registry; kept as a narrow interface here so
// the upload engine does not depend on session or registry internals.
type Notifier interface {
	Deliver(self identity.UserCtx, env wsproto.Envelope) (int, error)
}

// Worker owns a subset of in-flight jobs, keyed by file hash, and applies
// positional writes to each job's file. Concurrent writes to different jobs
// (or different offsets within one job) never block one another; admission
// and completion take the write lock, writes take only a read lock since
// the map itself — not the file — is what needs protecting.
type Worker struct {
	id     int
	notify Notifier

	mu   sync.RWMutex
	jobs map[string]*Job
}

func newWorker(id int, notify Notifier) *Worker {
	return &Worker{id: id, notify: notify, jobs: make(map[string]*Job)}
}

func (w *Worker) addJob(fileHash string, job *Job) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.jobs[fileHash] = job
}

func (w *Worker) removeJob(fileHash string) (*Job, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	job, ok := w.jobs[fileHash]
	if ok {
		delete(w.jobs, fileHash)
	}
	return job, ok
}

// forEach calls fn for every job currently owned by this worker. fn must
// not call back into addJob/removeJob.
func (w *Worker) forEach(fn func(fileHash string, job *Job)) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for hash, job := range w.jobs {
		fn(hash, job)
	}
}

// write applies one slice to the job registered under fileHash. Unknown
// file hashes are dropped silently, matching the error taxonomy for a
// binary frame that arrives after a job has already completed or never
// existed on this worker.
//
// payload aliases the tail of the inbound WebSocket message (see
// wsproto.DecodeFrame); it is copied into a pooled buffer before the
// positional write so the write never races a connection that reuses its
// read buffer on the next message.
func (w *Worker) write(fileHash string, index uint32, payload []byte) {
	w.mu.RLock()
	job, ok := w.jobs[fileHash]
	w.mu.RUnlock()
	if !ok {
		logger.Debug("dropping slice for unknown job", logger.FileHash(fileHash), logger.SliceIndex(index))
		return
	}

	job.watchdog.Reset()

	buf := bufpool.Get(len(payload))
	copy(buf, payload)

	offset := int64(job.Req.SliceSize) * int64(index)
	n, err := job.file.WriteAt(buf, offset)
	bufpool.Put(buf)

	if err != nil || n != len(payload) {
		logger.Debug("slice write incomplete", logger.FileHash(fileHash), logger.SliceIndex(index), logger.Err(err))
		w.reply(job, index, wsproto.StatusResend, wsproto.NewTargetsDispatch([]identity.ClientRef{identity.NewClientRef(job.Ctx)}))
		return
	}

	w.reply(job, index, wsproto.StatusOk, wsproto.NewDispatch(wsproto.DispatchBroadcastSameUser))
}

func (w *Worker) reply(job *Job, index uint32, status wsproto.FileResponseStatus, policy wsproto.Dispatch) {
	env := wsproto.Envelope{
		Sender: wsproto.NewServerSender(),
		Msg: wsproto.NewFileResponseMessage(wsproto.FileResponse{
			Name:     job.Req.Name,
			FileHash: job.Req.FileHash,
			SliceIdx: uint64(index),
			Status:   status,
		}),
		Policy: policy,
	}
	if _, err := w.notify.Deliver(job.Ctx, env); err != nil {
		logger.Warn("failed to deliver slice response", logger.FileHash(job.Req.FileHash), logger.Err(err))
	}
}

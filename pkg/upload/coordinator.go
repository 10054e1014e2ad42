package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/marmos91/relayfs/internal/logger"
	"github.com/marmos91/relayfs/pkg/identity"
	"github.com/marmos91/relayfs/pkg/metrics"
	"github.com/marmos91/relayfs/pkg/wsproto"
)

// ErrCodeExists is returned when a freshly minted download code collides
// with one already in the store — codes must never collide by construction.
var ErrCodeExists = fmt.Errorf("upload: download code already exists")

// ErrUnknownFile is returned by Deliver/Complete when a file hash has no
// admitted job.
var ErrUnknownFile = fmt.Errorf("upload: no job for this file hash")

// jobWatchdogPeriod is the idle interval (spec §4.6, job-scoped use) after
// which a stalled job's originating session is nudged with PleaseSend.
const jobWatchdogPeriod = 10 * time.Second

// Archiver durably stores a completed upload's bytes, keyed by its content
// fingerprint. Implemented by pkg/archive.Store; kept as a narrow interface
// here so the upload engine does not depend on the S3 SDK directly.
type Archiver interface {
	PutFile(ctx context.Context, fileHash string, data []byte) error
}

// DownloadRequest is the payload hashed to mint a download code.
type DownloadRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Coordinator is the upload engine's internal state: a fixed pool of
// workers, a map routing an in-flight file hash to its worker, and a
// persistent download-code store.
type Coordinator struct {
	storageRoot string
	workers     []*Worker
	notify      Notifier
	codes       *CodeStore
	metrics     metrics.WSMetrics
	archive     Archiver

	mu       sync.RWMutex
	dispatch map[string]int // file_hash -> worker index
}

// SetMetrics installs a metrics sink for upload admission, slice delivery,
// completion, and download-code minting. Pass nil (the default) to disable
// collection.
func (c *Coordinator) SetMetrics(m metrics.WSMetrics) {
	c.metrics = m
}

// SetArchiver installs a durable archival tier that Complete copies every
// finished upload into. Pass nil (the default) to leave completed uploads
// on local storage only.
func (c *Coordinator) SetArchiver(a Archiver) {
	c.archive = a
}

// NewCoordinator builds a coordinator with workerCount fixed workers,
// rooting all uploaded files under storageRoot/<username>/<filename>.
func NewCoordinator(workerCount int, storageRoot string, notify Notifier, codes *CodeStore) *Coordinator {
	c := &Coordinator{
		storageRoot: storageRoot,
		notify:      notify,
		codes:       codes,
		dispatch:    make(map[string]int),
	}
	c.workers = make([]*Worker, workerCount)
	for i := range c.workers {
		c.workers[i] = newWorker(i, notify)
	}
	return c
}

// Admit opens the destination file and assigns the request to a worker,
// chosen by now_ms mod W. Returns false (without touching the dispatch map)
// if the file cannot be opened.
func (c *Coordinator) Admit(req wsproto.FileRequest, ctx identity.UserCtx) bool {
	userDir := filepath.Join(c.storageRoot, req.Username)
	if err := os.MkdirAll(userDir, 0755); err != nil {
		logger.Warn("admission failed: cannot create user directory", logger.Username(req.Username), logger.Err(err))
		return false
	}

	path := filepath.Join(userDir, req.Name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		logger.Warn("admission failed: cannot open destination file", logger.Filename(req.Name), logger.Err(err))
		return false
	}

	now := time.Now()
	workerID := int(now.UnixMilli() % int64(len(c.workers)))
	job := &Job{
		Req:        req,
		Ctx:        ctx,
		path:       path,
		file:       f,
		watchdog:   nil,
		admittedAt: now,
	}
	job.watchdog = NewWatchdog(jobWatchdogPeriod, func() { c.nudge(job) })

	c.mu.Lock()
	if _, exists := c.dispatch[req.FileHash]; exists {
		c.mu.Unlock()
		logger.Error("admission invariant violated: file_hash already dispatched", logger.FileHash(req.FileHash))
		job.Close()
		return false
	}
	c.dispatch[req.FileHash] = workerID
	c.mu.Unlock()

	c.workers[workerID].addJob(req.FileHash, job)
	logger.Debug("admitted upload", logger.FileHash(req.FileHash), logger.WorkerID(workerID), logger.Filename(req.Name))
	if c.metrics != nil {
		c.metrics.RecordUploadAdmitted(req.Size)
	}
	return true
}

func (c *Coordinator) nudge(job *Job) {
	env := wsproto.Envelope{
		Sender: wsproto.NewServerSender(),
		Msg:    wsproto.NewPleaseSendMessage(job.Req.FileHash),
		Policy: wsproto.NewTargetsDispatch([]identity.ClientRef{identity.NewClientRef(job.Ctx)}),
	}
	if _, err := c.notify.Deliver(job.Ctx, env); err != nil {
		logger.Debug("please-send nudge could not be delivered", logger.FileHash(job.Req.FileHash), logger.Err(err))
	}
}

// Deliver parses a binary slice frame and routes it to the worker that owns
// its file hash.
func (c *Coordinator) Deliver(raw []byte) error {
	frame, err := wsproto.DecodeFrame(raw)
	if err != nil {
		return fmt.Errorf("upload: decoding frame: %w", err)
	}

	c.mu.RLock()
	workerID, ok := c.dispatch[frame.FileHash]
	c.mu.RUnlock()
	if !ok {
		logger.Debug("dropping binary frame for unknown file hash", logger.FileHash(frame.FileHash))
		return nil
	}

	c.workers[workerID].write(frame.FileHash, frame.SliceIndex, frame.Payload)
	if c.metrics != nil {
		c.metrics.RecordUploadSlice(uint64(len(frame.Payload)))
	}
	return nil
}

// Complete stops the job's watchdog, closes its file handle, and removes it
// from both the worker and the dispatch map.
func (c *Coordinator) Complete(fileHash string) error {
	c.mu.Lock()
	workerID, ok := c.dispatch[fileHash]
	if ok {
		delete(c.dispatch, fileHash)
	}
	c.mu.Unlock()
	if !ok {
		return ErrUnknownFile
	}

	job, ok := c.workers[workerID].removeJob(fileHash)
	if !ok {
		return ErrUnknownFile
	}

	if err := job.Close(); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.RecordUploadCompleted(time.Since(job.admittedAt))
	}
	if c.archive != nil {
		go c.archiveCompletedJob(fileHash, job.path)
	}
	return nil
}

// archiveCompletedJob copies a finished upload's reassembled bytes into the
// archival tier. Run in its own goroutine so a slow or unreachable bucket
// never delays the completion response a client is waiting on.
func (c *Coordinator) archiveCompletedJob(fileHash, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("archive: failed to read completed upload", logger.FileHash(fileHash), logger.Err(err))
		return
	}
	if err := c.archive.PutFile(context.Background(), fileHash, data); err != nil {
		logger.Warn("archive: failed to store completed upload", logger.FileHash(fileHash), logger.Err(err))
	}
}

// ScrubStale removes every admitted job whose originating session no longer
// resolves via isLive. This is the documented behavioral addition (spec
// design notes, open question iii): a session that disconnects with
// in-flight jobs would otherwise leave its watchdog firing against a dead
// sink forever.
func (c *Coordinator) ScrubStale(isLive func(identity.UserCtx) bool) {
	for _, w := range c.workers {
		var stale []string
		w.forEach(func(hash string, job *Job) {
			if !isLive(job.Ctx) {
				stale = append(stale, hash)
			}
		})
		for _, hash := range stale {
			if err := c.Complete(hash); err != nil {
				logger.Debug("scrub: job already gone", logger.FileHash(hash))
			} else {
				logger.Debug("scrubbed job for disconnected session", logger.FileHash(hash))
			}
		}
	}
}

// GenDownloadCode mints an opaque code from sha256(json(req) || now_ns) and
// persists the mapping. nowNS must be supplied by the caller (e.g.
// time.Now().UnixNano()).
func (c *Coordinator) GenDownloadCode(req DownloadRequest, nowNS int64) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("upload: encoding download request: %w", err)
	}

	sum := sha256.Sum256(append(payload, []byte(fmt.Sprintf("%d", nowNS))...))
	code := hex.EncodeToString(sum[:])

	if err := c.codes.Insert(code, req.Username, req.Name); err != nil {
		return "", err
	}
	if c.metrics != nil {
		c.metrics.RecordDownloadCodeMinted()
	}
	return code, nil
}

// ResolveDownloadCode returns the (username, filename) a code was minted
// for, or ok=false if the code is unknown.
func (c *Coordinator) ResolveDownloadCode(code string) (username, filename string, ok bool) {
	return c.codes.Resolve(code)
}

// UserUsedStorage sums the sizes of every regular file directly under
// storage_root/<username>/.
func (c *Coordinator) UserUsedStorage(username string) (uint64, error) {
	userDir := filepath.Join(c.storageRoot, username)
	entries, err := os.ReadDir(userDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("upload: reading user directory: %w", err)
	}

	var total uint64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		total += uint64(info.Size())
	}
	return total, nil
}

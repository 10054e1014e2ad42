package wsproto

import "encoding/json"

// HeartBeat carries the client's current config round-trip plus the
// server's live dashboard counters, exchanged every ping interval.
type HeartBeat struct {
	Config    json.RawMessage `json:"config"`
	Dashboard DashboardInfo   `json:"dashboard"`
}

// DashboardInfo reports process-wide and per-user occupancy counters.
type DashboardInfo struct {
	OnlineUser      uint64 `json:"online_user"`
	OnlineClient    uint64 `json:"online_client"`
	UserUsedStorage uint64 `json:"user_used_storage"`
	UserMaxStorage  uint64 `json:"user_max_storage"`
}

// FileRequest announces an upload a client wants to start. SliceSize and
// FileHash are fixed for the lifetime of the upload; the hash must match
// the content once fully reassembled.
type FileRequest struct {
	Username      string `json:"username"`
	Name          string `json:"name"`
	Size          uint64 `json:"size"`
	SliceSize     uint64 `json:"slice_size"`
	LastModifiedT uint64 `json:"last_modified_t"`
	FileHash      string `json:"file_hash"`
}

// FileResponseStatus reports the outcome of one slice write.
type FileResponseStatus string

const (
	StatusOk       FileResponseStatus = "Ok"
	StatusFinish   FileResponseStatus = "Finish"
	StatusResend   FileResponseStatus = "Resend"
	StatusFatalErr FileResponseStatus = "Fatalerr"
)

// FileResponse reports the result of writing one slice to disk.
type FileResponse struct {
	Name     string             `json:"name"`
	FileHash string             `json:"file_hash"`
	SliceIdx uint64             `json:"slice_idx"`
	Status   FileResponseStatus `json:"status"`
}

// FileListElem describes a file entry for display purposes (size already
// formatted for humans, consistent with how the upload completion
// notification is shown to other sessions of the same user).
type FileListElem struct {
	Name     string `json:"name"`
	Size     string `json:"size"`
	CreateT  string `json:"create_t"`
	AccessT  string `json:"access_t"`
	ModifyT  string `json:"modify_t"`
}

// FileSendableResponse answers a FileRequest: whether the upload was
// admitted (quota + worker assignment both succeeded) and, if so, the
// FileListElem other sessions of the same user should display.
type FileSendableResponse struct {
	FileElem    *FileListElem `json:"file_elem,omitempty"`
	Req         FileRequest   `json:"req"`
	HashVal     string        `json:"hashval"`
	UserCtxHash string        `json:"user_ctx_hash"`
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/relayfs/internal/logger"
	"github.com/marmos91/relayfs/pkg/upload"
	"github.com/marmos91/relayfs/pkg/userstore"
)

// DownloadHandler mints and resolves download codes. Streaming the file
// bytes themselves is out of scope; Stream is a documented stub.
type DownloadHandler struct {
	users   userstore.UserStore
	uploads *upload.Coordinator
	nowNS   func() int64
}

func NewDownloadHandler(users userstore.UserStore, uploads *upload.Coordinator, nowNS func() int64) *DownloadHandler {
	return &DownloadHandler{users: users, uploads: uploads, nowNS: nowNS}
}

type mintDownloadCodeRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

type mintDownloadCodeResponse struct {
	Code string `json:"code"`
}

// Mint handles POST /api/v1/downloads: validates the caller's token against
// the user store and mints a download code that never expires.
func (h *DownloadHandler) Mint(w http.ResponseWriter, r *http.Request) {
	var req mintDownloadCodeRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == "" || req.Username == "" || req.Token == "" {
		BadRequest(w, "name, username and token are required")
		return
	}

	user, err := h.users.GetByName(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, userstore.ErrUserNotFound) {
			Unauthorized(w, "invalid username or token")
			return
		}
		InternalServerError(w, "failed to look up user")
		return
	}
	if user.Token != req.Token {
		Unauthorized(w, "invalid username or token")
		return
	}

	code, err := h.uploads.GenDownloadCode(upload.DownloadRequest{
		Name:     req.Name,
		Username: req.Username,
		Token:    req.Token,
	}, h.nowNS())
	if err != nil {
		logger.WarnCtx(r.Context(), "failed to mint download code", logger.Username(req.Username), logger.Err(err))
		InternalServerError(w, "failed to mint download code")
		return
	}

	WriteJSONOK(w, mintDownloadCodeResponse{Code: code})
}

// Stream handles GET /api/v1/downloads/{code}: resolving a minted code to a
// byte stream is served by a different tier in this deployment; it is
// documented here rather than silently 404ing so a resolved-but-unserved
// code is distinguishable from an unknown one.
func (h *DownloadHandler) Stream(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		BadRequest(w, "download code is required")
		return
	}

	if _, _, ok := h.uploads.ResolveDownloadCode(code); !ok {
		NotFound(w, "unknown download code")
		return
	}

	NotImplemented(w, "byte streaming is served by the static asset tier, not this listener")
}

package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/marmos91/relayfs/internal/logger"
	"github.com/marmos91/relayfs/pkg/metrics"
	"github.com/marmos91/relayfs/pkg/registry"
	"github.com/marmos91/relayfs/pkg/session"
	"github.com/marmos91/relayfs/pkg/upload"
	"github.com/marmos91/relayfs/pkg/userstore"
	"github.com/marmos91/relayfs/pkg/wsserver/auth"
	"github.com/marmos91/relayfs/pkg/wsserver/middleware"
)

// WSHandler upgrades an HTTP connection to a WebSocket and hands it to a new
// session. A bearer access token, if present, is validated before the
// upgrade and its username threaded into the session so Establish can cross
// check it against the envelope's claimed identity; the header is optional
// since a raw WebSocket client with no prior HTTP login still authenticates
// itself via the Establish handshake's username/token lookup.
type WSHandler struct {
	registry *registry.Registry
	users    userstore.UserStore
	uploads  *upload.Coordinator
	jwt      *auth.Service
	metrics  metrics.WSMetrics

	upgrader websocket.Upgrader
}

func NewWSHandler(reg *registry.Registry, users userstore.UserStore, uploads *upload.Coordinator, jwt *auth.Service) *WSHandler {
	return &WSHandler{
		registry: reg,
		users:    users,
		uploads:  uploads,
		jwt:      jwt,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// SetMetrics installs a metrics sink threaded into every session this
// handler creates. Pass nil (the default) to disable collection.
func (h *WSHandler) SetMetrics(m metrics.WSMetrics) {
	h.metrics = m
}

// Upgrade handles GET /ws.
func (h *WSHandler) Upgrade(w http.ResponseWriter, r *http.Request) {
	var verifiedUsername string
	if token, ok := middleware.ExtractBearerToken(r); ok {
		claims, err := h.jwt.ValidateAccessToken(token)
		if err != nil {
			Unauthorized(w, "invalid or expired bearer token")
			return
		}
		verifiedUsername = claims.Username
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnCtx(r.Context(), "websocket upgrade failed", logger.Err(err))
		return
	}

	s := session.New(conn, h.registry, h.users, h.uploads, r.UserAgent(), r.RemoteAddr, verifiedUsername)
	if h.metrics != nil {
		s.SetMetrics(h.metrics)
	}
	s.Run()
}

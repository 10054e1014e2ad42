// Package session implements the per-connection actor that owns one
// WebSocket: a read pump decoding inbound envelopes and binary slices, a
// write pump that owns the only writer the connection ever sees and drives
// the heartbeat watchdog, and the handlers that turn each inbound message
// kind into registry, fan-out, and upload-engine calls.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marmos91/relayfs/internal/logger"
	"github.com/marmos91/relayfs/pkg/fanout"
	"github.com/marmos91/relayfs/pkg/identity"
	"github.com/marmos91/relayfs/pkg/metrics"
	"github.com/marmos91/relayfs/pkg/registry"
	"github.com/marmos91/relayfs/pkg/upload"
	"github.com/marmos91/relayfs/pkg/userstore"
	"github.com/marmos91/relayfs/pkg/wsproto"
)

const (
	// heartbeatInterval is how often the write pump checks the connection
	// is still alive and, if so, sends a ping control frame.
	heartbeatInterval = 5 * time.Second

	// clientTimeout is the longest gap the write pump tolerates since the
	// last inbound message (data frame or pong) before closing the session.
	clientTimeout = 30 * time.Second

	// sendQueueLen bounds how many outbound frames a session will buffer
	// before Send starts reporting failure.
	sendQueueLen = 64
)

// notifyPresence text, matched to what managers and regular users see when
// a session enters or leaves on another connection.
const (
	managerEnterText = "Enter the site!"
	managerLeaveText = "Leave the site!"
	userEnterText    = "your account login at another place!"
	userLeaveText    = "your account leave at another place!"
)

// Session owns one live WebSocket connection end to end: authentication
// state, the outbound mailbox, and the handlers for every inbound message
// kind. It implements registry.Sink so the fan-out dispatcher can reach it
// without importing this package.
type Session struct {
	conn    *websocket.Conn
	reg     *registry.Registry
	users   userstore.UserStore
	uploads *upload.Coordinator

	userAgent  string
	remoteAddr string

	// verifiedUsername, when non-empty, is the identity the HTTP upgrade
	// boundary already authenticated via bearer token. Establish then
	// trusts this over whatever username the envelope's sender claims,
	// rather than trusting an unauthenticated WebSocket message to name
	// its own identity. Left empty, Establish falls back to the
	// envelope-claimed username, for callers that authenticate some other
	// way before constructing the Session.
	verifiedUsername string

	metrics metrics.WSMetrics

	send chan []byte

	mu            sync.RWMutex
	ctx           identity.UserCtx
	authenticated bool

	lastActivity atomic.Int64 // unix nanoseconds

	closeOnce sync.Once
	closed    chan struct{}
}

// New builds a Session around an already-upgraded WebSocket connection.
// Callers must call Run to start its read and write pumps. verifiedUsername
// may be empty if the caller has no independent authentication of its own
// to offer (see the Session.verifiedUsername field comment).
func New(conn *websocket.Conn, reg *registry.Registry, users userstore.UserStore, uploads *upload.Coordinator, userAgent, remoteAddr, verifiedUsername string) *Session {
	s := &Session{
		conn:             conn,
		reg:              reg,
		users:            users,
		uploads:          uploads,
		userAgent:        userAgent,
		remoteAddr:       remoteAddr,
		verifiedUsername: verifiedUsername,
		send:             make(chan []byte, sendQueueLen),
		closed:           make(chan struct{}),
	}
	s.lastActivity.Store(time.Now().UnixNano())
	return s
}

// SetMetrics installs a metrics sink for connection lifecycle, establish,
// and broadcast events. Pass nil (the default) to disable collection.
func (s *Session) SetMetrics(m metrics.WSMetrics) {
	s.metrics = m
}

// Send enqueues a pre-encoded outbound frame, satisfying registry.Sink.
// Never blocks: a full or closed mailbox reports failure to the caller.
func (s *Session) Send(frame []byte) bool {
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// Run drives the session to completion, blocking until the connection
// closes. The write pump runs on its own goroutine; Run itself is the
// read pump.
func (s *Session) Run() {
	if s.metrics != nil {
		s.metrics.RecordConnectionAccepted()
	}
	go s.writePump()
	s.readPump()
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.conn.Close()

		s.mu.RLock()
		ctx, authenticated := s.ctx, s.authenticated
		s.mu.RUnlock()

		if authenticated {
			if !s.reg.Remove(ctx) {
				logger.Warn("session teardown: registry entry already gone", logger.Username(ctx.Username), logger.SessionHash(ctx.Hash()))
			}
			if s.uploads != nil {
				s.uploads.ScrubStale(func(c identity.UserCtx) bool {
					_, ok := s.reg.Lookup(c.Username, c.Hash())
					return ok
				})
			}
		}

		if s.metrics != nil {
			s.metrics.RecordConnectionClosed()
		}
	})
}

func (s *Session) readPump() {
	defer s.close()

	s.conn.SetPongHandler(func(string) error {
		s.touch()
		return nil
	})
	s.conn.SetPingHandler(func(data string) error {
		s.touch()
		return s.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.touch()

		switch kind {
		case websocket.TextMessage:
			s.handleText(data)
		case websocket.BinaryMessage:
			if err := s.uploads.Deliver(data); err != nil {
				logger.Debug("dropping malformed binary frame", logger.Err(err))
			}
		}
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(heartbeatInterval)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case <-s.closed:
			return

		case frame, ok := <-s.send:
			if !ok {
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			last := time.Unix(0, s.lastActivity.Load())
			if time.Since(last) > clientTimeout {
				logger.Debug("closing idle session", logger.ClientIP(s.remoteAddr))
				return
			}
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

// sendEnvelope marshals and enqueues a direct reply to this session,
// bypassing the registry entirely. Used for every reply that addresses only
// the caller rather than a dispatch policy resolved against other sessions.
func (s *Session) sendEnvelope(env wsproto.Envelope) {
	frame, err := json.Marshal(env)
	if err != nil {
		logger.Warn("failed to encode outbound envelope", logger.MsgClass(string(env.Msg.Kind)), logger.Err(err))
		return
	}
	if !s.Send(frame) {
		logger.Warn("dropped outbound envelope: mailbox full", logger.MsgClass(string(env.Msg.Kind)))
	}
}

func (s *Session) sendErrJSON(message string) {
	s.sendEnvelope(wsproto.Envelope{
		Sender: wsproto.NewServerSender(),
		Msg:    wsproto.NewErrJSONMessage(message),
		Policy: wsproto.NewDispatch(wsproto.DispatchServer),
	})
}

func (s *Session) currentCtx() (identity.UserCtx, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx, s.authenticated
}

func (s *Session) handleText(data []byte) {
	var env wsproto.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.sendErrJSON(fmt.Sprintf("malformed message: %v", err))
		return
	}

	switch env.Msg.Kind {
	case wsproto.KindEstablish:
		s.handleEstablish(env, false)
	case wsproto.KindReconnect:
		s.handleEstablish(env, true)
	case wsproto.KindLeave:
		s.handleLeave()
	case wsproto.KindHeartBeat:
		s.handleHeartBeat(env)
	case wsproto.KindFileRequest:
		s.handleFileRequest(env)
	case wsproto.KindFileResponse:
		s.handleFileResponse(env)
	case wsproto.KindCreateWsWorker:
		s.sendEnvelope(env)
	case wsproto.KindText:
		s.sendEnvelope(env)
	default:
		s.sendErrJSON(fmt.Sprintf("unexpected message kind: %s", env.Msg.Kind))
	}
}

// handleEstablish authenticates the connection against the user store and
// registers it, replying with a targeted Establish (or Reconnect) echo.
// reconnect suppresses the presence notification other sessions otherwise
// receive, matching a client resuming a connection rather than logging in
// fresh.
func (s *Session) handleEstablish(env wsproto.Envelope, reconnect bool) {
	if env.Sender.Client == nil || env.Sender.Client.Username == "" {
		s.sendErrJSON("establish requires a sender identifying the username")
		return
	}
	username := env.Sender.Client.Username

	// When the HTTP upgrade boundary already authenticated a bearer
	// token, trust that identity over whatever the envelope itself
	// claims instead of letting an unauthenticated WebSocket message
	// impersonate another user.
	if s.verifiedUsername != "" && username != s.verifiedUsername {
		logger.Warn("establish failed: envelope username does not match verified token",
			logger.Username(username))
		s.sendErrJSON("establish username does not match authenticated session")
		s.close()
		return
	}

	user, err := s.users.GetByName(context.Background(), username)
	if err != nil {
		logger.Warn("establish failed: unknown user", logger.Username(username), logger.Err(err))
		s.close()
		return
	}

	ctx := identity.UserCtx{
		Username:      username,
		Token:         user.Token,
		UserAgent:     s.userAgent,
		EstablishedAt: time.Now().UnixNano(),
	}

	if err := s.reg.Register(ctx, s); err != nil {
		logger.Warn("establish failed: registry rejected session", logger.Username(username), logger.Err(err))
		s.close()
		return
	}

	s.mu.Lock()
	s.ctx = ctx
	s.authenticated = true
	s.mu.Unlock()

	if err := s.users.TouchLastLogin(context.Background(), username); err != nil {
		logger.Warn("failed to record last login", logger.Username(username), logger.Err(err))
	}

	if !reconnect {
		s.notifyPresence(ctx, user.UserType, true)
	}

	if s.metrics != nil {
		s.metrics.RecordEstablish(string(user.UserType), reconnect)
	}

	reply := wsproto.NewEstablishMessage()
	if reconnect {
		reply = wsproto.NewReconnectMessage()
	}
	s.sendEnvelope(wsproto.Envelope{
		Sender: wsproto.NewServerSender(),
		Msg:    reply,
		Policy: wsproto.NewTargetsDispatch([]identity.ClientRef{identity.NewClientRef(ctx)}),
	})
}

// notifyPresence fans out a login/logout notice to a session's peers: other
// sessions of the same user for regular accounts, or every other session on
// the process for a manager, matching the original broadcast-on-presence
// behavior.
func (s *Session) notifyPresence(ctx identity.UserCtx, userType userstore.UserType, entering bool) {
	ref := identity.NewClientRef(ctx)

	var env wsproto.Envelope
	if userType == userstore.TypeManager {
		text := managerEnterText
		if !entering {
			text = managerLeaveText
		}
		env = wsproto.Envelope{
			Sender: wsproto.NewManagerSender(ref),
			Msg:    wsproto.NewNotifyMessage(text),
			Policy: wsproto.NewDispatch(wsproto.DispatchBroadcastExceptMe),
		}
	} else {
		text := userEnterText
		if !entering {
			text = userLeaveText
		}
		env = wsproto.Envelope{
			Sender: wsproto.NewUserSender(ref),
			Msg:    wsproto.NewNotifyMessage(text),
			Policy: wsproto.NewDispatch(wsproto.DispatchBroadcastSameUserExceptMe),
		}
	}

	n, err := fanout.Deliver(s.reg, ctx, env)
	if err != nil {
		logger.Warn("failed to deliver presence notification", logger.Username(ctx.Username), logger.Err(err))
	}
	if s.metrics != nil {
		s.metrics.RecordBroadcast(string(env.Policy.Kind), n)
	}
}

// handleLeave notifies a user's other sessions that this one is logging out
// and echoes the Leave back to the caller. It never closes the transport:
// a client may keep the socket open after announcing its departure.
func (s *Session) handleLeave() {
	ctx, authenticated := s.currentCtx()
	if !authenticated {
		s.sendErrJSON("leave requires an established session")
		return
	}

	user, err := s.users.GetByName(context.Background(), ctx.Username)
	if err != nil {
		logger.Warn("leave: could not look up user type", logger.Username(ctx.Username), logger.Err(err))
	} else {
		s.notifyPresence(ctx, user.UserType, false)
	}

	s.sendEnvelope(wsproto.Envelope{
		Sender: wsproto.NewServerSender(),
		Msg:    wsproto.NewLeaveMessage(),
		Policy: wsproto.NewTargetsDispatch([]identity.ClientRef{identity.NewClientRef(ctx)}),
	})
}

// handleHeartBeat persists the client's config blob, echoes it back with the
// live dashboard counters, and records activity (already done by readPump).
func (s *Session) handleHeartBeat(env wsproto.Envelope) {
	ctx, authenticated := s.currentCtx()
	if !authenticated || env.Msg.HeartBeat == nil {
		s.sendErrJSON("heartbeat requires an established session")
		return
	}

	if err := s.users.UpdateConfig(context.Background(), ctx.Username, env.Msg.HeartBeat.Config); err != nil {
		logger.Warn("heartbeat: failed to persist config", logger.Username(ctx.Username), logger.Err(err))
	}

	user, err := s.users.GetByName(context.Background(), ctx.Username)
	if err != nil {
		logger.Warn("heartbeat: failed to look up user", logger.Username(ctx.Username), logger.Err(err))
		return
	}

	used, err := s.uploads.UserUsedStorage(ctx.Username)
	if err != nil {
		logger.Warn("heartbeat: failed to compute used storage", logger.Username(ctx.Username), logger.Err(err))
	}

	s.sendEnvelope(wsproto.Envelope{
		Sender: wsproto.NewServerSender(),
		Msg: wsproto.NewHeartBeatMessage(wsproto.HeartBeat{
			Config: env.Msg.HeartBeat.Config,
			Dashboard: wsproto.DashboardInfo{
				OnlineUser:      uint64(s.reg.OnlineUsers()),
				OnlineClient:    uint64(s.reg.OnlineClients()),
				UserUsedStorage: used,
				UserMaxStorage:  user.UserType.MaxStorage(),
			},
		}),
		Policy: wsproto.NewTargetsDispatch([]identity.ClientRef{identity.NewClientRef(ctx)}),
	})
}

// handleFileRequest admits or rejects an upload against the user's storage
// quota, then tells every session of the same user (including this one)
// whether the upload may proceed.
func (s *Session) handleFileRequest(env wsproto.Envelope) {
	ctx, authenticated := s.currentCtx()
	if !authenticated || env.Msg.FileRequest == nil {
		s.sendErrJSON("file request requires an established session")
		return
	}
	req := *env.Msg.FileRequest

	user, err := s.users.GetByName(context.Background(), ctx.Username)
	if err != nil {
		logger.Warn("file request: failed to look up user", logger.Username(ctx.Username), logger.Err(err))
		s.sendErrJSON("could not verify account")
		return
	}

	used, err := s.uploads.UserUsedStorage(ctx.Username)
	if err != nil {
		logger.Warn("file request: failed to compute used storage", logger.Username(ctx.Username), logger.Err(err))
	}

	admitted := req.Size+used <= user.UserType.MaxStorage() && s.uploads.Admit(req, ctx)

	resp := wsproto.FileSendableResponse{
		Req:         req,
		HashVal:     req.FileHash,
		UserCtxHash: ctx.Hash(),
	}
	if admitted {
		elem, err := s.uploads.StatFileElem(req.Username, req.Name)
		if err != nil {
			logger.Error("file request: admitted but could not stat destination", logger.Filename(req.Name), logger.Err(err))
		} else {
			resp.FileElem = elem
		}
	}

	env = wsproto.Envelope{
		Sender: wsproto.NewServerSender(),
		Msg:    wsproto.NewFileSendableMessage(resp),
		Policy: wsproto.NewDispatch(wsproto.DispatchBroadcastSameUser),
	}
	n, err := fanout.Deliver(s.reg, ctx, env)
	if err != nil {
		logger.Warn("file request: failed to deliver FileSendable", logger.FileHash(req.FileHash), logger.Err(err))
	}
	if s.metrics != nil {
		s.metrics.RecordBroadcast(string(env.Policy.Kind), n)
	}
}

// handleFileResponse accepts only the terminal client notification that an
// upload is complete; every other inbound FileResponse is a protocol
// violation a server never expects to receive. On completion it closes the
// job and rebroadcasts the same envelope to every session of the same user.
func (s *Session) handleFileResponse(env wsproto.Envelope) {
	ctx, authenticated := s.currentCtx()
	if !authenticated || env.Msg.FileResponse == nil {
		s.sendErrJSON("file response requires an established session")
		return
	}
	if env.Policy.Kind != wsproto.DispatchServer || env.Msg.FileResponse.Status != wsproto.StatusFinish {
		s.sendErrJSON("unexpected file response from client")
		return
	}

	if err := s.uploads.Complete(env.Msg.FileResponse.FileHash); err != nil {
		logger.Warn("file response: failed to complete job", logger.FileHash(env.Msg.FileResponse.FileHash), logger.Err(err))
	}

	out := wsproto.Envelope{
		Sender: wsproto.NewServerSender(),
		Msg:    env.Msg,
		Policy: wsproto.NewDispatch(wsproto.DispatchBroadcastSameUser),
	}
	n, err := fanout.Deliver(s.reg, ctx, out)
	if err != nil {
		logger.Warn("file response: failed to rebroadcast completion", logger.FileHash(env.Msg.FileResponse.FileHash), logger.Err(err))
	}
	if s.metrics != nil {
		s.metrics.RecordBroadcast(string(out.Policy.Kind), n)
	}
}

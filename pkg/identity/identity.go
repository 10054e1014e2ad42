// Package identity describes the identity carried by a live WebSocket
// session: who is connected, from which client, and since when.
package identity

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// UserCtx identifies one logged-in WebSocket connection. Two connections
// from the same user (different browser tabs, different devices) carry
// distinct UserCtx values because EstablishedAt differs between them.
type UserCtx struct {
	Username      string
	Token         string
	UserAgent     string
	EstablishedAt int64 // unix nanoseconds, set once at Establish/Reconnect
}

// Hash returns a stable fingerprint for this UserCtx, used as the
// session_hash carried in WsClient references and Targets dispatch lists.
// Two UserCtx values with the same username, token, and establishment time
// hash identically; UserAgent is deliberately excluded so reconnects from a
// slightly different client string still resolve to the same hash as long
// as the other three fields match.
func (u UserCtx) Hash() string {
	h := xxhash.New()
	_, _ = h.WriteString(u.Username)
	_, _ = h.WriteString(u.Token)
	_, _ = h.WriteString(strconv.FormatInt(u.EstablishedAt, 10))
	return fmt.Sprintf("%016x", h.Sum64())
}

// Equal reports whether two UserCtx values refer to the same logical
// connection (matches the original PartialEq: username, token,
// establishment time, and user agent must all match).
func (u UserCtx) Equal(other UserCtx) bool {
	return u.Username == other.Username &&
		u.Token == other.Token &&
		u.EstablishedAt == other.EstablishedAt &&
		u.UserAgent == other.UserAgent
}

func (u UserCtx) String() string {
	return fmt.Sprintf("UserCtx{username: %q, agent: %q, established_at: %d}", u.Username, u.UserAgent, u.EstablishedAt)
}

// ClientRef is the externally visible, serializable reference to a UserCtx:
// enough information for a peer to name this session as a dispatch target
// without exposing its token.
type ClientRef struct {
	Username string `json:"username"`
	Hash     string `json:"user_ctx_hash"`
}

// NewClientRef builds the wire-safe reference for a UserCtx.
func NewClientRef(ctx UserCtx) ClientRef {
	return ClientRef{Username: ctx.Username, Hash: ctx.Hash()}
}

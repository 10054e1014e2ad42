// Package registry tracks every live WebSocket session on this process:
// which users are connected, from how many clients, and how to reach each
// one. It is the single source of truth the fan-out dispatcher and the
// heartbeat handler consult when resolving a WsDispatchType against
// concrete recipients.
package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/marmos91/relayfs/pkg/identity"
)

// Sink is the minimal interface a session actor exposes to the registry so
// dispatch can reach it without the registry importing the session package.
// Send must never block the caller; a session whose mailbox is full should
// report failure rather than stall the dispatcher.
type Sink interface {
	// Send enqueues a pre-encoded outbound frame for delivery. Returns
	// false if the session cannot accept it (mailbox full or closed).
	Send(frame []byte) bool
}

// Entry pairs a connected session's identity with its delivery sink.
type Entry struct {
	Ctx  identity.UserCtx
	Sink Sink
}

// Registry is the in-memory table of every connected session, keyed first
// by username and then by session hash, so that BroadcastSameUser can
// iterate one user's connections without scanning the whole table.
//
// All map access is guarded by mu. Callers that need to iterate (fan-out)
// must take a Snapshot first and release the lock before invoking Sink.Send,
// mirroring the snapshot-then-iterate discipline used for dispatch in the
// original single-process broadcast loop.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]map[string]Entry // username -> session_hash -> Entry

	onlineClients atomic.Int64
}

// New creates an empty session registry.
func New() *Registry {
	return &Registry{sessions: make(map[string]map[string]Entry)}
}

// Register adds a session under its UserCtx's username and hash. Returns an
// error if a session with the same hash is already registered for that
// user — this should never happen by construction since Establish and
// Reconnect always mint a fresh EstablishedAt, but the check guards against
// a caller accidentally registering the same UserCtx twice.
func (r *Registry) Register(ctx identity.UserCtx, sink Sink) error {
	if ctx.Username == "" {
		return fmt.Errorf("registry: cannot register session with empty username")
	}
	if sink == nil {
		return fmt.Errorf("registry: cannot register session with nil sink")
	}

	hash := ctx.Hash()

	r.mu.Lock()
	defer r.mu.Unlock()

	byHash, ok := r.sessions[ctx.Username]
	if !ok {
		byHash = make(map[string]Entry)
		r.sessions[ctx.Username] = byHash
	}
	if _, exists := byHash[hash]; exists {
		return fmt.Errorf("registry: session %s already registered for user %q", hash, ctx.Username)
	}

	byHash[hash] = Entry{Ctx: ctx, Sink: sink}
	r.onlineClients.Add(1)
	return nil
}

// Remove unregisters a session. Returns false if no matching session was
// found (already removed, or never registered).
func (r *Registry) Remove(ctx identity.UserCtx) bool {
	hash := ctx.Hash()

	r.mu.Lock()
	defer r.mu.Unlock()

	byHash, ok := r.sessions[ctx.Username]
	if !ok {
		return false
	}
	if _, exists := byHash[hash]; !exists {
		return false
	}

	delete(byHash, hash)
	if len(byHash) == 0 {
		delete(r.sessions, ctx.Username)
	}
	r.onlineClients.Add(-1)
	return true
}

// Snapshot returns every registered session at the moment of the call.
// Safe to iterate after the registry's lock has been released.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, r.onlineClients.Load())
	for _, byHash := range r.sessions {
		for _, entry := range byHash {
			out = append(out, entry)
		}
	}
	return out
}

// SnapshotForUser returns every session registered under one username.
func (r *Registry) SnapshotForUser(username string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byHash, ok := r.sessions[username]
	if !ok {
		return nil
	}

	out := make([]Entry, 0, len(byHash))
	for _, entry := range byHash {
		out = append(out, entry)
	}
	return out
}

// Lookup returns a single session by its hash, scoped to a username.
func (r *Registry) Lookup(username, hash string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byHash, ok := r.sessions[username]
	if !ok {
		return Entry{}, false
	}
	entry, ok := byHash[hash]
	return entry, ok
}

// OnlineUsers returns the number of distinct usernames with at least one
// live session.
func (r *Registry) OnlineUsers() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.sessions))
}

// OnlineClients returns the total number of live sessions across all users.
func (r *Registry) OnlineClients() int64 {
	return r.onlineClients.Load()
}

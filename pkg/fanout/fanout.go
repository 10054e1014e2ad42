// Package fanout resolves a wsproto.Dispatch policy against the live
// session registry and delivers an encoded envelope to the resulting set
// of sessions.
package fanout

import (
	"encoding/json"
	"fmt"

	"github.com/marmos91/relayfs/internal/logger"
	"github.com/marmos91/relayfs/pkg/identity"
	"github.com/marmos91/relayfs/pkg/registry"
	"github.com/marmos91/relayfs/pkg/wsproto"
)

// Resolve returns the set of registry entries a Dispatch policy selects,
// relative to the session that originated the envelope (self). It never
// mutates the registry and takes only the snapshot it needs, honoring the
// snapshot-then-iterate discipline: callers may safely range over the
// result after the registry's internal lock has been released.
//
// DispatchServer resolves to nil — Server-policy envelopes are handled
// locally by the originating session and never fanned out.
func Resolve(reg *registry.Registry, self identity.UserCtx, policy wsproto.Dispatch) []registry.Entry {
	switch policy.Kind {
	case wsproto.DispatchBroadcast:
		return reg.Snapshot()

	case wsproto.DispatchBroadcastExceptMe:
		return filter(reg.Snapshot(), func(e registry.Entry) bool { return !e.Ctx.Equal(self) })

	case wsproto.DispatchBroadcastSameUser:
		return reg.SnapshotForUser(self.Username)

	case wsproto.DispatchBroadcastSameUserExceptMe:
		return filter(reg.SnapshotForUser(self.Username), func(e registry.Entry) bool { return !e.Ctx.Equal(self) })

	case wsproto.DispatchServer:
		return nil

	case wsproto.DispatchTargets:
		out := make([]registry.Entry, 0, len(policy.Targets))
		for _, target := range policy.Targets {
			if entry, ok := reg.Lookup(target.Username, target.Hash); ok {
				out = append(out, entry)
			}
		}
		return out

	default:
		return nil
	}
}

func filter(entries []registry.Entry, keep func(registry.Entry) bool) []registry.Entry {
	out := entries[:0]
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// Deliver resolves env.Policy against the registry and sends the encoded
// envelope to every selected session, rewriting the policy on each
// outbound copy to Targets(that one recipient) — matching how the
// original dispatch loop re-addressed each re-sent message so a client
// never sees a Broadcast policy on the wire, only who it was addressed to.
// Deliver returns the number of sessions that accepted the frame.
func Deliver(reg *registry.Registry, self identity.UserCtx, env wsproto.Envelope) (int, error) {
	recipients := Resolve(reg, self, env.Policy)
	delivered := 0

	for _, entry := range recipients {
		addressed := env
		addressed.Policy = wsproto.NewTargetsDispatch([]identity.ClientRef{identity.NewClientRef(entry.Ctx)})

		frame, err := json.Marshal(addressed)
		if err != nil {
			return delivered, fmt.Errorf("fanout: encoding envelope for %s: %w", entry.Ctx.Username, err)
		}

		if entry.Sink.Send(frame) {
			delivered++
		} else {
			logger.Warn("dropped envelope: recipient mailbox full or closed",
				logger.Username(entry.Ctx.Username), logger.SessionHash(entry.Ctx.Hash()), logger.MsgClass(string(env.Msg.Kind)))
		}
	}

	logger.Debug("dispatched envelope", logger.Dispatch(string(env.Policy.Kind)), logger.MsgClass(string(env.Msg.Kind)), logger.Recipients(delivered))

	return delivered, nil
}

// Notifier adapts a live Registry to pkg/upload's Notifier interface, so
// the upload engine can push slice-progress and Finish acknowledgements to
// whatever sessions a job's dispatch policy resolves to without importing
// pkg/registry or pkg/session itself.
type Notifier struct {
	reg *registry.Registry
}

// NewNotifier builds a Notifier bound to reg.
func NewNotifier(reg *registry.Registry) *Notifier {
	return &Notifier{reg: reg}
}

// Deliver implements pkg/upload.Notifier.
func (n *Notifier) Deliver(self identity.UserCtx, env wsproto.Envelope) (int, error) {
	return Deliver(n.reg, self, env)
}

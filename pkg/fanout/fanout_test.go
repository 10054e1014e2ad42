package fanout

import (
	"testing"

	"github.com/marmos91/relayfs/pkg/identity"
	"github.com/marmos91/relayfs/pkg/registry"
	"github.com/marmos91/relayfs/pkg/wsproto"
)

type fakeSink struct {
	received [][]byte
}

func (f *fakeSink) Send(frame []byte) bool {
	f.received = append(f.received, frame)
	return true
}

type fullSink struct{}

func (fullSink) Send(frame []byte) bool { return false }

func setup(t *testing.T) (*registry.Registry, map[string]*fakeSink) {
	t.Helper()
	r := registry.New()
	sinks := make(map[string]*fakeSink)

	register := func(ctx identity.UserCtx) {
		s := &fakeSink{}
		sinks[ctx.Hash()] = s
		if err := r.Register(ctx, s); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	register(identity.UserCtx{Username: "alice", Token: "t", EstablishedAt: 1}) // aliceA
	register(identity.UserCtx{Username: "alice", Token: "t", EstablishedAt: 2}) // aliceB
	register(identity.UserCtx{Username: "bob", Token: "t", EstablishedAt: 3})   // bob

	return r, sinks
}

func TestResolve_BroadcastSameUserExceptMe(t *testing.T) {
	r, _ := setup(t)
	self := identity.UserCtx{Username: "alice", Token: "t", EstablishedAt: 1}

	entries := Resolve(r, self, wsproto.NewDispatch(wsproto.DispatchBroadcastSameUserExceptMe))
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 recipient, got %d", len(entries))
	}
	if entries[0].Ctx.EstablishedAt != 2 {
		t.Fatalf("expected alice's other session, got %+v", entries[0].Ctx)
	}
}

func TestResolve_BroadcastExceptMe(t *testing.T) {
	r, _ := setup(t)
	self := identity.UserCtx{Username: "bob", Token: "t", EstablishedAt: 3}

	entries := Resolve(r, self, wsproto.NewDispatch(wsproto.DispatchBroadcastExceptMe))
	if len(entries) != 2 {
		t.Fatalf("expected 2 recipients (both alice sessions), got %d", len(entries))
	}
}

func TestResolve_Server_ResolvesToNoRecipients(t *testing.T) {
	r, _ := setup(t)
	self := identity.UserCtx{Username: "bob", Token: "t", EstablishedAt: 3}

	entries := Resolve(r, self, wsproto.NewDispatch(wsproto.DispatchServer))
	if len(entries) != 0 {
		t.Fatalf("Server policy must not resolve to any delivery recipients, got %d", len(entries))
	}
}

func TestDeliver_FanOutToSameUserSessions(t *testing.T) {
	r, sinks := setup(t)
	self := identity.UserCtx{Username: "alice", Token: "t", EstablishedAt: 1}

	env := wsproto.Envelope{
		Sender: wsproto.NewServerSender(),
		Msg:    wsproto.NewFileSendableMessage(wsproto.FileSendableResponse{HashVal: "h", UserCtxHash: self.Hash()}),
		Policy: wsproto.NewDispatch(wsproto.DispatchBroadcastSameUser),
	}

	delivered, err := Deliver(r, self, env)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if delivered != 2 {
		t.Fatalf("expected delivery to both of alice's sessions, got %d", delivered)
	}

	for hash, sink := range sinks {
		other := identity.UserCtx{Username: "bob", Token: "t", EstablishedAt: 3}
		if hash == other.Hash() {
			if len(sink.received) != 0 {
				t.Fatalf("bob must not receive alice's same-user broadcast")
			}
			continue
		}
		if len(sink.received) != 1 {
			t.Fatalf("expected alice's sessions to each receive exactly one frame, got %d", len(sink.received))
		}
	}
}

func TestDeliver_SkipsFullMailboxWithoutError(t *testing.T) {
	r := registry.New()
	self := identity.UserCtx{Username: "alice", Token: "t", EstablishedAt: 1}
	if err := r.Register(self, fullSink{}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	env := wsproto.Envelope{
		Sender: wsproto.NewServerSender(),
		Msg:    wsproto.NewTextMessage("hi"),
		Policy: wsproto.NewDispatch(wsproto.DispatchBroadcast),
	}

	delivered, err := Deliver(r, self, env)
	if err != nil {
		t.Fatalf("Deliver should not error on a full mailbox: %v", err)
	}
	if delivered != 0 {
		t.Fatalf("expected 0 delivered for a full mailbox, got %d", delivered)
	}
}

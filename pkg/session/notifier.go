package session

import (
	"github.com/marmos91/relayfs/pkg/fanout"
	"github.com/marmos91/relayfs/pkg/identity"
	"github.com/marmos91/relayfs/pkg/registry"
	"github.com/marmos91/relayfs/pkg/wsproto"
)

// RegistryNotifier adapts a live session registry to upload.Notifier, so
// the upload coordinator can deliver slice replies and PleaseSend nudges
// without importing this package or pkg/fanout directly.
type RegistryNotifier struct {
	Registry *registry.Registry
}

// NewRegistryNotifier builds a Notifier bound to reg.
func NewRegistryNotifier(reg *registry.Registry) RegistryNotifier {
	return RegistryNotifier{Registry: reg}
}

// Deliver resolves env.Policy against the registry relative to self and
// sends it to every session selected.
func (n RegistryNotifier) Deliver(self identity.UserCtx, env wsproto.Envelope) (int, error) {
	return fanout.Deliver(n.Registry, self, env)
}

// Package wsproto defines the wire protocol carried over the single
// persistent WebSocket connection: a JSON envelope for control and
// notification traffic, and a fixed binary frame for upload slice
// payloads. The JSON shape mirrors an externally tagged Rust enum — each
// variant serializes as either a bare string (for unit variants) or a
// single-key object mapping the variant name to its payload — so Go's
// default struct-tag marshaling cannot express it; MessageClass, Dispatch,
// and Sender all carry hand-written MarshalJSON/UnmarshalJSON for this
// reason.
package wsproto

import (
	"encoding/json"
	"fmt"

	"github.com/marmos91/relayfs/pkg/identity"
)

// Envelope is the outermost message exchanged over the control channel.
type Envelope struct {
	Sender Sender       `json:"sender"`
	Msg    MessageClass `json:"msg"`
	Policy Dispatch     `json:"policy"`
}

// SenderKind names who originated an Envelope.
type SenderKind string

const (
	SenderKindServer  SenderKind = "Server"
	SenderKindUser    SenderKind = "User"
	SenderKindManager SenderKind = "Manager"
)

// Sender identifies the originator of an Envelope. Server carries no
// payload; User and Manager carry the originating session's ClientRef.
type Sender struct {
	Kind   SenderKind
	Client *identity.ClientRef
}

// NewServerSender builds the Server-origin Sender.
func NewServerSender() Sender { return Sender{Kind: SenderKindServer} }

// NewUserSender builds a User-origin Sender.
func NewUserSender(ref identity.ClientRef) Sender {
	return Sender{Kind: SenderKindUser, Client: &ref}
}

// NewManagerSender builds a Manager-origin Sender.
func NewManagerSender(ref identity.ClientRef) Sender {
	return Sender{Kind: SenderKindManager, Client: &ref}
}

// MarshalJSON renders Server as the bare string "Server", and User/Manager
// as {"User": {...}} / {"Manager": {...}}.
func (s Sender) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case SenderKindServer, "":
		return json.Marshal(string(SenderKindServer))
	case SenderKindUser, SenderKindManager:
		if s.Client == nil {
			return nil, fmt.Errorf("wsproto: Sender kind %s requires a Client", s.Kind)
		}
		return json.Marshal(map[string]identity.ClientRef{string(s.Kind): *s.Client})
	default:
		return nil, fmt.Errorf("wsproto: unknown Sender kind %q", s.Kind)
	}
}

// UnmarshalJSON parses either the bare-string or single-key-object form.
func (s *Sender) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		s.Kind = SenderKind(asString)
		s.Client = nil
		return nil
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(data, &asObject); err != nil {
		return fmt.Errorf("wsproto: Sender is neither a string nor a single-key object: %w", err)
	}
	if len(asObject) != 1 {
		return fmt.Errorf("wsproto: Sender object must have exactly one key, got %d", len(asObject))
	}

	for key, raw := range asObject {
		var ref identity.ClientRef
		if err := json.Unmarshal(raw, &ref); err != nil {
			return fmt.Errorf("wsproto: decoding Sender payload for %q: %w", key, err)
		}
		s.Kind = SenderKind(key)
		s.Client = &ref
	}
	return nil
}

// DispatchKind names how an Envelope should be fanned out to sessions.
type DispatchKind string

const (
	DispatchBroadcast                DispatchKind = "Broadcast"
	DispatchBroadcastExceptMe        DispatchKind = "BroadcastExceptMe"
	DispatchBroadcastSameUser        DispatchKind = "BroadcastSameUser"
	DispatchBroadcastSameUserExceptMe DispatchKind = "BroadcastSameUserExceptMe"
	DispatchServer                   DispatchKind = "Server"
	DispatchTargets                  DispatchKind = "Targets"
)

// Dispatch selects which live sessions should receive an Envelope.
type Dispatch struct {
	Kind    DispatchKind
	Targets []identity.ClientRef // populated only when Kind == DispatchTargets
}

// NewDispatch builds a Dispatch for any unit-variant kind.
func NewDispatch(kind DispatchKind) Dispatch { return Dispatch{Kind: kind} }

// NewTargetsDispatch builds a Dispatch naming explicit recipients.
func NewTargetsDispatch(targets []identity.ClientRef) Dispatch {
	return Dispatch{Kind: DispatchTargets, Targets: targets}
}

// MarshalJSON renders unit-variant kinds as a bare string and Targets as
// {"Targets": [...]}.
func (d Dispatch) MarshalJSON() ([]byte, error) {
	if d.Kind == DispatchTargets {
		return json.Marshal(map[string][]identity.ClientRef{string(DispatchTargets): d.Targets})
	}
	return json.Marshal(string(d.Kind))
}

// UnmarshalJSON parses either form.
func (d *Dispatch) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		d.Kind = DispatchKind(asString)
		d.Targets = nil
		return nil
	}

	var asObject map[string][]identity.ClientRef
	if err := json.Unmarshal(data, &asObject); err != nil {
		return fmt.Errorf("wsproto: Dispatch is neither a string nor a Targets object: %w", err)
	}
	targets, ok := asObject[string(DispatchTargets)]
	if !ok || len(asObject) != 1 {
		return fmt.Errorf("wsproto: Dispatch object must be a single \"Targets\" key")
	}
	d.Kind = DispatchTargets
	d.Targets = targets
	return nil
}

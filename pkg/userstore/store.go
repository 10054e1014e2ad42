package userstore

import (
	"context"
	"encoding/json"
)

// UserStore is the external collaborator contract the session actor and
// the HTTP auth boundary consult for credentials, quota tier, and the
// heartbeat-persisted config blob.
type UserStore interface {
	GetByName(ctx context.Context, username string) (*User, error)
	Insert(ctx context.Context, u *User) error
	UpdateConfig(ctx context.Context, username string, config json.RawMessage) error
	TouchLastLogin(ctx context.Context, username string) error
}

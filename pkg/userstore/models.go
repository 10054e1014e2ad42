// Package userstore holds the durable record of a registered user: login
// credentials, the heartbeat-persisted client config blob, and the storage
// quota table the upload coordinator consults at admission time.
package userstore

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/marmos91/relayfs/internal/bytesize"
)

// UserType ranks a user for storage-quota purposes. It carries no other
// privilege except Manager, which the session actor treats specially when
// sending presence notifications (see pkg/session).
type UserType string

const (
	TypeVisitor UserType = "Visitor"
	TypeUser    UserType = "User"
	TypeMember  UserType = "Member"
	TypeManager UserType = "Manager"
	TypeMaster  UserType = "Master"
)

// IsValid reports whether t is one of the five recognized tiers.
func (t UserType) IsValid() bool {
	switch t {
	case TypeVisitor, TypeUser, TypeMember, TypeManager, TypeMaster:
		return true
	default:
		return false
	}
}

// MaxStorage returns the fixed byte ceiling for t. Unknown types get 0,
// same as Visitor.
func (t UserType) MaxStorage() uint64 {
	switch t {
	case TypeUser:
		return uint64(bytesize.GiB)
	case TypeMember:
		return uint64(10 * bytesize.GiB)
	case TypeManager:
		return uint64(100 * bytesize.GiB)
	case TypeMaster:
		return uint64(1000 * bytesize.GiB)
	default:
		return 0
	}
}

// User is the persisted row behind the user store contract.
type User struct {
	ID           string `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`

	// Token is the opaque bearer credential Establish/Reconnect check
	// against, rotated whenever the password changes.
	Token string `gorm:"not null"`

	UserType UserType `gorm:"not null;default:User"`

	// Config is the last UserConfig blob persisted by HeartBeat, returned
	// verbatim on the next HeartBeat reply.
	Config json.RawMessage `gorm:"type:jsonb"`

	CreatedAt   time.Time
	LastLoginAt time.Time
}

// TableName pins the table name regardless of Go naming conventions.
func (User) TableName() string {
	return "users"
}

var (
	ErrUserNotFound      = errors.New("userstore: user not found")
	ErrDuplicateUser     = errors.New("userstore: username already exists")
	ErrInvalidCredentials = errors.New("userstore: invalid credentials")
)

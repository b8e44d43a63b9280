package domain

import (
	"errors"
	"time"
)

// User is the core account entity. Email and Username are globally unique and
// compared case-sensitively; callers must not normalize them before lookups.
type User struct {
	ID              string
	Email           string
	Username        string
	PasswordHash    string // empty for OAuth-only accounts
	Role            Role
	OAuthProvider   string // empty for local-only accounts
	OAuthProviderID string // set together with OAuthProvider
	AvatarURL       string
	FullName        string
	IsActive        bool
	RefreshToken    string // current refresh token; at most one live per user
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ErrInvalidRole is returned when a role value is not one of the known roles.
var ErrInvalidRole = errors.New("unknown role")

// Role is a closed enumeration forming a total order: user < moderator < admin.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Rank maps a role to its position in the order. Unknown roles rank as 0 so an
// unrecognized value can never grant elevated access.
func (r Role) Rank() int {
	switch r {
	case RoleAdmin:
		return 2
	case RoleModerator:
		return 1
	default:
		return 0
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// HasRole reports whether the user's role ranks at or above required.
func (u *User) HasRole(required Role) bool {
	return u.Role.Rank() >= required.Rank()
}

// Authenticatable reports whether the user can sign in at all: either a local
// password hash or an OAuth provider linkage must be present.
func (u *User) Authenticatable() bool {
	return u.PasswordHash != "" || (u.OAuthProvider != "" && u.OAuthProviderID != "")
}

// Validate validates the user for persistence. Returns an error describing the
// first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.Username == "" {
		return errors.New("username is required")
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if !u.Role.Valid() {
		return ErrInvalidRole
	}
	if (u.OAuthProvider == "") != (u.OAuthProviderID == "") {
		return errors.New("oauth provider and provider id must be set together")
	}
	if !u.Authenticatable() {
		return errors.New("user must have a password hash or an oauth linkage")
	}
	return nil
}

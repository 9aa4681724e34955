// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

const (
	MaxUserIDLen   = 36
	MaxUsernameLen = 36
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
	ErrUsernameInvalid = errors.New("username contains reserved characters")
	ErrRoleUnknown     = errors.New("unknown role")
)

type UserID string

// Role is what the user is doing on the trip.
type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RolePassenger, RoleDriver:
		return r, nil
	}
	return "", ErrRoleUnknown
}

type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role,omitempty"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(username string) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	id := UserID(uuid.NewString())
	return &User{ID: id, Username: username}, nil
}

// ValidateUsername rejects names that would break the channel address
// or the "sender: text" framing of chat lines.
func ValidateUsername(username string) error {
	if len(strings.TrimSpace(username)) == 0 {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	if strings.ContainsAny(username, ":/,") {
		return ErrUsernameInvalid
	}
	return nil
}

func (u *User) SetUsername(username string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	u.Username = username
	return nil
}

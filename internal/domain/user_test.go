package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	u, err := NewUser("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Len(t, string(u.ID), MaxUserIDLen)

	_, err = NewUser("   ")
	assert.ErrorIs(t, err, ErrUsernameEmpty)

	_, err = NewUser(strings.Repeat("x", MaxUsernameLen+1))
	assert.ErrorIs(t, err, ErrUsernameTooLong)

	_, err = NewUser("al:ice")
	assert.ErrorIs(t, err, ErrUsernameInvalid)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("Driver")
	require.NoError(t, err)
	assert.Equal(t, RoleDriver, r)

	_, err = ParseRole("conductor")
	assert.ErrorIs(t, err, ErrRoleUnknown)
}

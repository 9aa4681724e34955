package domain

// Member represents user's participation meta for a room.
// No transport or lifecycle logic here.
type Member struct {
	User *User
	Role Role
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(user *User) *Member {
	return &Member{User: user, Role: user.Role}
}

func (m *Member) IsDriver() bool { return m.Role == RoleDriver }

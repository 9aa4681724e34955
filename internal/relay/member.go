package relay

import "github.com/dkeye/DriveChat/internal/domain"

type SessionID string

// Close codes sent to clients the relay disconnects.
const (
	CodeRoomFull     = 4001
	CodeSlowConsumer = 4002
)

// Conn is the transport side of a member. The adapter owns it; the
// relay only queues frames and asks it to close.
type Conn interface {
	TrySend(frame []byte) error
	Kick(code int, reason string)
}

// Member binds a domain member to its connection.
type Member struct {
	SID  SessionID
	Meta *domain.Member
	conn Conn
}

func (m *Member) Username() string { return m.Meta.User.Username }

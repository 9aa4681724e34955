package core

import (
	"context"

	"github.com/dkeye/DriveChat/internal/domain"
)

// ChannelState follows a single channel from dial to teardown.
// A channel never goes back to an earlier state.
type ChannelState int

const (
	StateConnecting ChannelState = iota
	StateOpen
	StateClosed
)

func (s ChannelState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

type ChannelEventKind int

const (
	EventOpen ChannelEventKind = iota
	EventFrame
	EventClosed
)

// ChannelEvent is reported by a Channel through its handler.
// Reason is the server's human-readable close reason, if any.
type ChannelEvent struct {
	Kind   ChannelEventKind
	Text   string
	Reason string
	Err    error
}

type ChannelHandler func(ChannelEvent)

// Channel is a live duplex text channel scoped to (room, username).
// Owned by whoever dialed it; the owner must Close() it.
type Channel interface {
	Send(text string) error
	Close()
	State() ChannelState
}

// Dialer opens channels. Dial never blocks: the returned channel starts
// in StateConnecting and reports EventOpen or EventClosed later.
// Nothing is reported after EventClosed. role tells the server whether
// the user takes the driver seat.
type Dialer interface {
	Dial(room domain.RoomID, username string, role domain.Role, handler ChannelHandler) Channel
}

// Listing is the directory's view of the rooms, ordered as returned.
type Listing struct {
	Rooms     []domain.RoomID       `json:"rooms"`
	Occupancy map[domain.RoomID]int `json:"occupancy"`
	Capacity  map[domain.RoomID]int `json:"capacity"`
}

type CreateRoomRequest struct {
	Name        domain.RoomID `json:"room_name"`
	Capacity    int           `json:"capacity"`
	CreatorType domain.Role   `json:"creator_type"`
	DisplayName string        `json:"display_name"`
}

// Directory is the backend room registry as seen by the client.
// FindRandomRoom reports found=false with a nil error when no room is
// available; that is an outcome, not a failure.
type Directory interface {
	ListRooms(ctx context.Context) (Listing, error)
	CreateRoom(ctx context.Context, req CreateRoomRequest) (capacity int, err error)
	FindRandomRoom(ctx context.Context, t domain.TransportType, role domain.Role) (room domain.Room, found bool, err error)
}

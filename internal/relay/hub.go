// Package relay is a small development backend speaking the DriveChat
// wire format: rooms addressed by name, plain text frames, roster and
// room-change lines prefixed the way clients expect them.
package relay

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/DriveChat/internal/clock"
	"github.com/dkeye/DriveChat/internal/core"
	"github.com/dkeye/DriveChat/internal/domain"
)

const (
	msgJoinedSelf = "System: You have joined the chat room."
	msgTooFast    = "System: You are sending messages too fast."
	reasonFull    = "Room is full"
	reasonSlow    = "Too slow"
)

type Options struct {
	RestStopCapacity int

	// DriverSeatHold is how long a driver seat handed out by create or
	// random match waits for the driver to connect.
	DriverSeatHold time.Duration
	// EmptyRoomTTL is how long a created room may stay unjoined.
	EmptyRoomTTL   time.Duration

	ChatRateLimit    int
	ChatRateInterval time.Duration
	Clock            clock.Clock
	Policy           Policy
}

// Hub ties rooms, sessions and delivery together.
type Hub struct {
	Rooms    *RoomManager
	Registry *Registry
	Policy   Policy
	Limiter  *RateLimiter
}

func NewHub(opts Options) *Hub {
	if opts.Policy == nil {
		opts.Policy = KickPolicy{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	return &Hub{
		Rooms:    NewRoomManager(opts),
		Registry: NewRegistry(),
		Policy:   opts.Policy,
		Limiter:  NewRateLimiter(opts.Clock, opts.ChatRateLimit, opts.ChatRateInterval),
	}
}

// Join seats username in room id. A driver takes the room's driver
// seat if it is free. A full room closes conn with CodeRoomFull and
// returns ErrRoomFull.
func (h *Hub) Join(id domain.RoomID, username string, role domain.Role, conn Conn) (SessionID, error) {
	user, err := domain.NewUser(username)
	if err != nil {
		return "", err
	}
	if role == "" {
		role = domain.RolePassenger
	}
	user.Role = role
	if err := domain.ValidateRoomName(id); err != nil {
		return "", err
	}
	m := &Member{
		SID:  SessionID(uuid.NewString()),
		Meta: domain.NewMember(user),
		conn: conn,
	}

	var room *Room
	for {
		room = h.Rooms.GetOrCreate(id)
		err = room.add(m)
		if !errors.Is(err, errRoomClosed) {
			break
		}
		h.Rooms.drop(room)
	}
	if err != nil {
		log.Info().Str("module", "relay").Str("room", string(id)).Str("user", username).Msg("join refused, room full")
		conn.Kick(CodeRoomFull, reasonFull)
		return "", err
	}
	h.Registry.Bind(room, m)

	h.broadcast(room, m.SID, fmt.Sprintf("System: %s joined the chat room.", username))
	h.deliver(room, m, []byte(msgJoinedSelf))
	h.broadcast(room, "", room.Roster())
	log.Info().Str("module", "relay").Str("room", string(id)).Str("sid", string(m.SID)).Str("user", username).Msg("joined")
	return m.SID, nil
}

// Chat relays text from sid to everyone in its room, sender included.
func (h *Hub) Chat(sid SessionID, text string) {
	room, m, ok := h.Registry.Lookup(sid)
	if !ok {
		return
	}
	if !h.Limiter.Allow(sid) {
		log.Debug().Str("module", "relay").Str("sid", string(sid)).Msg("chat rate limited")
		h.deliver(room, m, []byte(msgTooFast))
		return
	}
	h.broadcast(room, "", m.Username()+": "+text)
}

// Leave removes sid from its room, announces it and deletes the room
// once it is empty. Unknown sessions are ignored.
func (h *Hub) Leave(sid SessionID) {
	room, m, ok := h.Registry.Unbind(sid)
	if !ok {
		return
	}
	h.Limiter.Forget(sid)
	removed, closed := room.remove(sid)
	if !removed {
		return
	}
	if closed {
		h.Rooms.drop(room)
		return
	}
	h.broadcast(room, "", fmt.Sprintf("System: %s left the chat room.", m.Username()))
	h.broadcast(room, "", room.Roster())
}

// Move tells every member of from to reconnect to to. It returns how
// many members were told.
func (h *Hub) Move(from, to domain.RoomID) (int, error) {
	if err := domain.ValidateRoomName(to); err != nil {
		return 0, err
	}
	room, ok := h.Rooms.Get(from)
	if !ok {
		return 0, ErrRoomNotFound
	}
	n := h.broadcast(room, "", "System: ROOM_CHANGE:"+string(to))
	log.Info().Str("module", "relay").Str("from", string(from)).Str("to", string(to)).Int("members", n).Msg("room change sent")
	return n, nil
}

func (h *Hub) CreateRoom(req core.CreateRoomRequest) (domain.Room, error) {
	return h.Rooms.Create(req)
}

func (h *Hub) RandomRoom(t domain.TransportType, role domain.Role) (domain.Room, bool) {
	return h.Rooms.Random(t, role)
}

func (h *Hub) Listing() core.Listing {
	return h.Rooms.List()
}

func (h *Hub) broadcast(room *Room, skip SessionID, line string) int {
	sent, dropped := room.Broadcast(skip, []byte(line))
	h.onDropped(room, dropped)
	return sent
}

func (h *Hub) deliver(room *Room, m *Member, frame []byte) {
	if err := m.conn.TrySend(frame); err != nil {
		h.onDropped(room, []*Member{m})
	}
}

func (h *Hub) onDropped(room *Room, dropped []*Member) {
	for _, slow := range dropped {
		switch h.Policy.OnBackpressure(room, slow) {
		case KickMember:
			log.Warn().Str("module", "relay").Str("sid", string(slow.SID)).Msg("kicking slow member")
			slow.conn.Kick(CodeSlowConsumer, reasonSlow)
		case DropFrame, NoAction:
		}
	}
}

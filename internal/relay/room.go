package relay

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/DriveChat/internal/clock"
	"github.com/dkeye/DriveChat/internal/domain"
)

var (
	ErrRoomFull   = errors.New("room is full")
	errRoomClosed = errors.New("room closed")
)

// Room is a threadsafe in-memory room. Members are kept in join order,
// which is the order of the roster line.
//
// The driver seat belongs to one session at a time. A seat handed out
// by create or random match before the driver connected is only held
// until seatHeld.
type Room struct {
	info       domain.Room
	persistent bool
	clock      clock.Clock
	createdAt  time.Time

	mu       sync.RWMutex
	members  []*Member
	driver   SessionID
	seatHeld time.Time
	closed   bool
}

func newRoom(info domain.Room, persistent bool, c clock.Clock) *Room {
	return &Room{info: info, persistent: persistent, clock: c, createdAt: c.Now()}
}

func (r *Room) Info() domain.Room { return r.info }

func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// HasDriver reports a seated driver or a seat still held for one.
func (r *Room) HasDriver() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasDriverLocked()
}

func (r *Room) hasDriverLocked() bool {
	return r.driver != "" || r.clock.Now().Before(r.seatHeld)
}

// open reports whether r can take another member of role.
func (r *Room) open(role domain.Role) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed || len(r.members) >= r.info.Capacity {
		return false
	}
	return role != domain.RoleDriver || !r.hasDriverLocked()
}

// holdDriverSeat reserves the free driver seat for d.
func (r *Room) holdDriverSeat(d time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.hasDriverLocked() {
		return false
	}
	r.seatHeld = r.clock.Now().Add(d)
	return true
}

// expireIfIdle closes a room that nobody joined within ttl of its
// creation. The rest stop never expires.
func (r *Room) expireIfIdle(ttl time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.persistent || r.closed || len(r.members) > 0 {
		return false
	}
	if r.clock.Now().Sub(r.createdAt) < ttl {
		return false
	}
	r.closed = true
	return true
}

func (r *Room) add(m *Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errRoomClosed
	}
	if len(r.members) >= r.info.Capacity {
		return ErrRoomFull
	}
	r.members = append(r.members, m)
	if m.Meta.IsDriver() && r.driver == "" {
		r.driver = m.SID
		r.seatHeld = time.Time{}
	}
	log.Info().Str("module", "relay.room").Str("room", string(r.info.ID)).Str("sid", string(m.SID)).Str("user", m.Username()).Str("role", string(m.Meta.Role)).Msg("member added")
	return nil
}

// remove reports whether sid was a member and whether the room is now
// closed for good.
func (r *Room) remove(sid SessionID) (removed, closed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.members {
		if m.SID != sid {
			continue
		}
		r.members = append(r.members[:i], r.members[i+1:]...)
		if r.driver == sid {
			r.driver = ""
		}
		removed = true
		log.Info().Str("module", "relay.room").Str("room", string(r.info.ID)).Str("sid", string(sid)).Msg("member removed")
		break
	}
	if removed && len(r.members) == 0 && !r.persistent {
		r.closed = true
	}
	return removed, r.closed
}

// Roster is the "Active users: a, b" line.
func (r *Room) Roster() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.members))
	for _, m := range r.members {
		names = append(names, m.Username())
	}
	return "Active users: " + strings.Join(names, ", ")
}

// Broadcast queues frame for every member except skip and returns the
// members whose queue was full.
func (r *Room) Broadcast(skip SessionID, frame []byte) (sent int, dropped []*Member) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.members {
		if m.SID == skip {
			continue
		}
		if err := m.conn.TrySend(frame); err != nil {
			dropped = append(dropped, m)
			continue
		}
		sent++
	}
	log.Debug().Str("module", "relay.room").Str("room", string(r.info.ID)).Int("sent_to", sent).Int("dropped", len(dropped)).Msg("broadcast result")
	return sent, dropped
}

package relay

import (
	"errors"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/DriveChat/internal/clock"
	"github.com/dkeye/DriveChat/internal/core"
	"github.com/dkeye/DriveChat/internal/domain"
)

var (
	ErrRoomExists   = errors.New("room already exists")
	ErrRoomNotFound = errors.New("room not found")
	ErrBadCapacity  = errors.New("capacity must be positive")
)

const (
	DefaultRestStopCapacity = 50
	DefaultDriverSeatHold   = 30 * time.Second
	DefaultEmptyRoomTTL     = 5 * time.Minute
)

// RoomManager owns the set of live rooms. The rest stop always exists;
// every other room goes away with its last member, or after
// emptyRoomTTL if nobody ever joined it.
type RoomManager struct {
	clock        clock.Clock
	seatHold     time.Duration
	emptyRoomTTL time.Duration

	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
	// order is creation order; listings follow it.
	order []domain.RoomID
}

func NewRoomManager(opts Options) *RoomManager {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.RestStopCapacity <= 0 {
		opts.RestStopCapacity = DefaultRestStopCapacity
	}
	if opts.DriverSeatHold <= 0 {
		opts.DriverSeatHold = DefaultDriverSeatHold
	}
	if opts.EmptyRoomTTL <= 0 {
		opts.EmptyRoomTTL = DefaultEmptyRoomTTL
	}
	rm := &RoomManager{
		clock:        opts.Clock,
		seatHold:     opts.DriverSeatHold,
		emptyRoomTTL: opts.EmptyRoomTTL,
		rooms:        make(map[domain.RoomID]*Room),
	}
	rm.insertLocked(newRoom(domain.Room{ID: domain.RestStopRoom, Capacity: opts.RestStopCapacity}, true, rm.clock))
	return rm
}

// CapacityFor is the capacity a room gets when nobody asked for one.
func CapacityFor(id domain.RoomID) int {
	if t, ok := domain.TransportOf(id); ok {
		return t.Capacity()
	}
	return domain.DefaultCapacity
}

func (rm *RoomManager) Create(req core.CreateRoomRequest) (domain.Room, error) {
	if err := domain.ValidateRoomName(req.Name); err != nil {
		return domain.Room{}, err
	}
	capacity := req.Capacity
	switch {
	case capacity < 0:
		return domain.Room{}, ErrBadCapacity
	case capacity == 0:
		capacity = CapacityFor(req.Name)
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.sweepLocked()
	if _, ok := rm.rooms[req.Name]; ok {
		return domain.Room{}, ErrRoomExists
	}
	room := newRoom(domain.Room{ID: req.Name, Capacity: capacity}, false, rm.clock)
	if req.CreatorType == domain.RoleDriver {
		room.holdDriverSeat(rm.seatHold)
	}
	rm.insertLocked(room)
	log.Info().Str("module", "relay.rooms").Str("room", string(req.Name)).Int("capacity", capacity).Str("creator", string(req.CreatorType)).Msg("room created")
	return room.Info(), nil
}

func (rm *RoomManager) Get(id domain.RoomID) (*Room, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	r, ok := rm.rooms[id]
	return r, ok
}

// GetOrCreate returns the live room id, creating it with the capacity
// of its transport prefix.
func (rm *RoomManager) GetOrCreate(id domain.RoomID) *Room {
	if r, ok := rm.Get(id); ok {
		return r
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if r, ok := rm.rooms[id]; ok {
		return r
	}
	r := newRoom(domain.Room{ID: id, Capacity: CapacityFor(id)}, false, rm.clock)
	rm.insertLocked(r)
	log.Info().Str("module", "relay.rooms").Str("room", string(id)).Int("capacity", r.info.Capacity).Msg("room created on join")
	return r
}

func (rm *RoomManager) insertLocked(r *Room) {
	rm.rooms[r.info.ID] = r
	rm.order = append(rm.order, r.info.ID)
}

// drop forgets a closed room unless it was already replaced.
func (rm *RoomManager) drop(r *Room) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.deleteLocked(r)
}

func (rm *RoomManager) deleteLocked(r *Room) {
	id := r.info.ID
	if rm.rooms[id] != r {
		return
	}
	delete(rm.rooms, id)
	if i := slices.Index(rm.order, id); i >= 0 {
		rm.order = slices.Delete(rm.order, i, i+1)
	}
	log.Info().Str("module", "relay.rooms").Str("room", string(id)).Msg("room deleted")
}

// sweepLocked deletes rooms that were created but never joined.
func (rm *RoomManager) sweepLocked() {
	for _, id := range slices.Clone(rm.order) {
		r := rm.rooms[id]
		if r.expireIfIdle(rm.emptyRoomTTL) {
			log.Info().Str("module", "relay.rooms").Str("room", string(id)).Msg("empty room expired")
			rm.deleteLocked(r)
		}
	}
}

// List returns the rooms in creation order.
func (rm *RoomManager) List() core.Listing {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.sweepLocked()
	out := core.Listing{
		Rooms:     make([]domain.RoomID, 0, len(rm.order)),
		Occupancy: make(map[domain.RoomID]int, len(rm.order)),
		Capacity:  make(map[domain.RoomID]int, len(rm.order)),
	}
	for _, id := range rm.order {
		r := rm.rooms[id]
		out.Rooms = append(out.Rooms, id)
		out.Occupancy[id] = r.MemberCount()
		out.Capacity[id] = r.info.Capacity
	}
	return out
}

// Random picks a room of transport t that role can still enter. A
// driver's pick holds the room's driver seat until the driver joins.
func (rm *RoomManager) Random(t domain.TransportType, role domain.Role) (domain.Room, bool) {
	rm.mu.Lock()
	rm.sweepLocked()
	candidates := make([]*Room, 0, len(rm.order))
	for _, id := range rm.order {
		r := rm.rooms[id]
		if rt, ok := domain.TransportOf(id); !ok || rt != t || r.persistent {
			continue
		}
		if r.open(role) {
			candidates = append(candidates, r)
		}
	}
	rm.mu.Unlock()

	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	for _, r := range candidates {
		if role == domain.RoleDriver && !r.holdDriverSeat(rm.seatHold) {
			continue
		}
		return r.Info(), true
	}
	return domain.Room{}, false
}

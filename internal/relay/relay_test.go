package relay

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/DriveChat/internal/clock"
	"github.com/dkeye/DriveChat/internal/core"
	"github.com/dkeye/DriveChat/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []string
	full   bool
	code   int
	reason string
}

func (c *fakeConn) TrySend(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return errors.New("queue full")
	}
	c.frames = append(c.frames, string(frame))
	return nil
}

func (c *fakeConn) Kick(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.code, c.reason = code, reason
}

func (c *fakeConn) got() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.frames...)
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

func newTestHub() *Hub {
	return NewHub(Options{RestStopCapacity: 3})
}

func TestJoinAnnouncesAndSendsRoster(t *testing.T) {
	h := newTestHub()
	alice, bob := &fakeConn{}, &fakeConn{}

	_, err := h.Join("car_abc123", "alice", domain.RolePassenger, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"System: You have joined the chat room.", "Active users: alice"}, alice.got())

	alice.reset()
	_, err = h.Join("car_abc123", "bob", domain.RolePassenger, bob)
	require.NoError(t, err)
	assert.Equal(t, []string{"System: bob joined the chat room.", "Active users: alice, bob"}, alice.got())
	assert.Equal(t, []string{"System: You have joined the chat room.", "Active users: alice, bob"}, bob.got())
}

func TestJoinImplicitCapacityFromPrefix(t *testing.T) {
	h := newTestHub()
	_, err := h.Join("bike_zz", "alice", domain.RolePassenger, &fakeConn{})
	require.NoError(t, err)
	_, err = h.Join("bike_zz", "bob", domain.RolePassenger, &fakeConn{})
	require.NoError(t, err)

	third := &fakeConn{}
	_, err = h.Join("bike_zz", "carol", domain.RolePassenger, third)
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Equal(t, CodeRoomFull, third.code)
	assert.Equal(t, "Room is full", third.reason)
	assert.Empty(t, third.got())

	listing := h.Listing()
	assert.Equal(t, 2, listing.Occupancy["bike_zz"])
	assert.Equal(t, 2, listing.Capacity["bike_zz"])
}

func TestJoinRejectsBadNames(t *testing.T) {
	h := newTestHub()
	_, err := h.Join("car_x", "a:b", domain.RolePassenger, &fakeConn{})
	assert.ErrorIs(t, err, domain.ErrUsernameInvalid)
	_, err = h.Join("", "alice", domain.RolePassenger, &fakeConn{})
	assert.ErrorIs(t, err, domain.ErrRoomNameEmpty)
}

func TestChatReachesEveryoneIncludingSender(t *testing.T) {
	h := newTestHub()
	alice, bob := &fakeConn{}, &fakeConn{}
	sid, err := h.Join("car_abc123", "alice", domain.RolePassenger, alice)
	require.NoError(t, err)
	_, err = h.Join("car_abc123", "bob", domain.RolePassenger, bob)
	require.NoError(t, err)
	alice.reset()
	bob.reset()

	h.Chat(sid, "hello there")
	assert.Equal(t, []string{"alice: hello there"}, alice.got())
	assert.Equal(t, []string{"alice: hello there"}, bob.got())
}

func TestLeaveAnnouncesAndDeletesEmptyRoom(t *testing.T) {
	h := newTestHub()
	alice, bob := &fakeConn{}, &fakeConn{}
	aliceSID, err := h.Join("car_abc123", "alice", domain.RolePassenger, alice)
	require.NoError(t, err)
	bobSID, err := h.Join("car_abc123", "bob", domain.RolePassenger, bob)
	require.NoError(t, err)
	alice.reset()

	h.Leave(bobSID)
	assert.Equal(t, []string{"System: bob left the chat room.", "Active users: alice"}, alice.got())

	h.Leave(aliceSID)
	h.Leave(aliceSID)
	_, ok := h.Rooms.Get("car_abc123")
	assert.False(t, ok)
	assert.Equal(t, 0, h.Registry.Len())

	_, ok = h.Rooms.Get(domain.RestStopRoom)
	assert.True(t, ok, "rest stop outlives its members")
}

func TestRestStopKeepsConfiguredCapacity(t *testing.T) {
	h := newTestHub()
	sid, err := h.Join(domain.RestStopRoom, "alice", domain.RolePassenger, &fakeConn{})
	require.NoError(t, err)
	h.Leave(sid)

	listing := h.Listing()
	assert.Contains(t, listing.Rooms, domain.RestStopRoom)
	assert.Equal(t, 3, listing.Capacity[domain.RestStopRoom])
}

func TestCreateRoom(t *testing.T) {
	h := newTestHub()
	room, err := h.CreateRoom(core.CreateRoomRequest{Name: "car_abc123", Capacity: 4, CreatorType: domain.RoleDriver})
	require.NoError(t, err)
	assert.Equal(t, domain.Room{ID: "car_abc123", Capacity: 4}, room)

	_, err = h.CreateRoom(core.CreateRoomRequest{Name: "car_abc123", Capacity: 4})
	assert.ErrorIs(t, err, ErrRoomExists)

	room, err = h.CreateRoom(core.CreateRoomRequest{Name: "bus_q"})
	require.NoError(t, err)
	assert.Equal(t, 15, room.Capacity)

	_, err = h.CreateRoom(core.CreateRoomRequest{Name: "bus_r", Capacity: -1})
	assert.ErrorIs(t, err, ErrBadCapacity)
	_, err = h.CreateRoom(core.CreateRoomRequest{Name: " "})
	assert.ErrorIs(t, err, domain.ErrRoomNameEmpty)
}

func TestRandomRoomMatching(t *testing.T) {
	h := newTestHub()
	_, ok := h.RandomRoom(domain.TransportCar, domain.RolePassenger)
	assert.False(t, ok, "no rooms yet")

	_, err := h.CreateRoom(core.CreateRoomRequest{Name: "car_driven", CreatorType: domain.RoleDriver})
	require.NoError(t, err)
	_, err = h.CreateRoom(core.CreateRoomRequest{Name: "bus_other"})
	require.NoError(t, err)

	room, ok := h.RandomRoom(domain.TransportCar, domain.RolePassenger)
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("car_driven"), room.ID)

	_, ok = h.RandomRoom(domain.TransportCar, domain.RoleDriver)
	assert.False(t, ok, "drivers only get rooms without a driver")

	_, err = h.CreateRoom(core.CreateRoomRequest{Name: "car_free"})
	require.NoError(t, err)
	room, ok = h.RandomRoom(domain.TransportCar, domain.RoleDriver)
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("car_free"), room.ID)
	_, ok = h.RandomRoom(domain.TransportCar, domain.RoleDriver)
	assert.False(t, ok, "the driver seat was reserved")
}

func TestDriverLeavingFreesSeat(t *testing.T) {
	h := newTestHub()
	_, err := h.CreateRoom(core.CreateRoomRequest{Name: "car_x", CreatorType: domain.RoleDriver})
	require.NoError(t, err)
	dan, err := h.Join("car_x", "dan", domain.RoleDriver, &fakeConn{})
	require.NoError(t, err)
	_, err = h.Join("car_x", "pat", domain.RolePassenger, &fakeConn{})
	require.NoError(t, err)

	_, ok := h.RandomRoom(domain.TransportCar, domain.RoleDriver)
	assert.False(t, ok)

	h.Leave(dan)
	room, ok := h.RandomRoom(domain.TransportCar, domain.RoleDriver)
	require.True(t, ok, "the seat went with the driver")
	assert.Equal(t, domain.RoomID("car_x"), room.ID)
}

func TestDriverJoiningTakesSeat(t *testing.T) {
	h := newTestHub()
	_, err := h.Join("car_x", "dan", domain.RoleDriver, &fakeConn{})
	require.NoError(t, err)
	_, err = h.Join("car_x", "eve", domain.RoleDriver, &fakeConn{})
	require.NoError(t, err, "a second driver still rides along")

	room, ok := h.Rooms.Get("car_x")
	require.True(t, ok)
	assert.True(t, room.HasDriver())
	_, ok = h.RandomRoom(domain.TransportCar, domain.RoleDriver)
	assert.False(t, ok)

	_, ok = h.RandomRoom(domain.TransportCar, domain.RolePassenger)
	assert.True(t, ok)
}

func TestUnclaimedDriverSeatExpires(t *testing.T) {
	fc := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	h := NewHub(Options{Clock: fc, DriverSeatHold: 30 * time.Second})
	_, err := h.CreateRoom(core.CreateRoomRequest{Name: "car_x", CreatorType: domain.RoleDriver})
	require.NoError(t, err)
	_, err = h.Join("car_x", "pat", domain.RolePassenger, &fakeConn{})
	require.NoError(t, err)

	_, ok := h.RandomRoom(domain.TransportCar, domain.RoleDriver)
	assert.False(t, ok, "seat held for the creator")

	fc.Advance(31 * time.Second)
	_, ok = h.RandomRoom(domain.TransportCar, domain.RoleDriver)
	assert.True(t, ok, "creator never connected")
	_, ok = h.RandomRoom(domain.TransportCar, domain.RoleDriver)
	assert.False(t, ok, "held again for the matched driver")
}

func TestUnjoinedRoomExpires(t *testing.T) {
	fc := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	h := NewHub(Options{Clock: fc, EmptyRoomTTL: time.Minute})
	_, err := h.CreateRoom(core.CreateRoomRequest{Name: "bus_idle"})
	require.NoError(t, err)
	_, err = h.CreateRoom(core.CreateRoomRequest{Name: "bus_busy"})
	require.NoError(t, err)
	_, err = h.Join("bus_busy", "alice", domain.RolePassenger, &fakeConn{})
	require.NoError(t, err)

	fc.Advance(59 * time.Second)
	assert.Contains(t, h.Listing().Rooms, domain.RoomID("bus_idle"))

	fc.Advance(time.Second)
	listing := h.Listing()
	assert.Equal(t, []domain.RoomID{domain.RestStopRoom, "bus_busy"}, listing.Rooms)

	_, err = h.CreateRoom(core.CreateRoomRequest{Name: "bus_idle"})
	assert.NoError(t, err, "name is free again")
}

func TestListingKeepsCreationOrder(t *testing.T) {
	h := newTestHub()
	for _, name := range []domain.RoomID{"car_b", "bus_a", "bike_c"} {
		_, err := h.CreateRoom(core.CreateRoomRequest{Name: name})
		require.NoError(t, err)
	}
	sid, err := h.Join("car_b", "alice", domain.RolePassenger, &fakeConn{})
	require.NoError(t, err)
	h.Leave(sid)
	_, err = h.Join("car_d", "bob", domain.RolePassenger, &fakeConn{})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		assert.Equal(t, []domain.RoomID{domain.RestStopRoom, "bus_a", "bike_c", "car_d"}, h.Listing().Rooms)
	}
}

func TestRandomRoomSkipsFullRooms(t *testing.T) {
	h := newTestHub()
	_, err := h.Join("bike_a", "alice", domain.RolePassenger, &fakeConn{})
	require.NoError(t, err)
	_, err = h.Join("bike_a", "bob", domain.RolePassenger, &fakeConn{})
	require.NoError(t, err)

	_, ok := h.RandomRoom(domain.TransportBike, domain.RolePassenger)
	assert.False(t, ok)
}

func TestMoveBroadcastsRoomChange(t *testing.T) {
	h := newTestHub()
	alice := &fakeConn{}
	_, err := h.Join("car_abc123", "alice", domain.RolePassenger, alice)
	require.NoError(t, err)
	alice.reset()

	n, err := h.Move("car_abc123", "bus_next")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"System: ROOM_CHANGE:bus_next"}, alice.got())

	_, err = h.Move("nope", "bus_next")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, err = h.Move("car_abc123", "")
	assert.ErrorIs(t, err, domain.ErrRoomNameEmpty)
}

func TestSlowMemberIsKicked(t *testing.T) {
	h := newTestHub()
	alice, bob := &fakeConn{}, &fakeConn{}
	sid, err := h.Join("car_abc123", "alice", domain.RolePassenger, alice)
	require.NoError(t, err)
	_, err = h.Join("car_abc123", "bob", domain.RolePassenger, bob)
	require.NoError(t, err)

	bob.mu.Lock()
	bob.full = true
	bob.mu.Unlock()
	h.Chat(sid, "hi")

	assert.Equal(t, CodeSlowConsumer, bob.code)
	assert.Zero(t, alice.code)
}

func TestChatRateLimit(t *testing.T) {
	fc := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	h := NewHub(Options{ChatRateLimit: 2, ChatRateInterval: time.Second, Clock: fc})
	alice := &fakeConn{}
	sid, err := h.Join("car_abc123", "alice", domain.RolePassenger, alice)
	require.NoError(t, err)
	alice.reset()

	h.Chat(sid, "1")
	h.Chat(sid, "2")
	h.Chat(sid, "3")
	assert.Equal(t, []string{"alice: 1", "alice: 2", "System: You are sending messages too fast."}, alice.got())

	fc.Advance(1100 * time.Millisecond)
	alice.reset()
	h.Chat(sid, "4")
	assert.Equal(t, []string{"alice: 4"}, alice.got())
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(nil, 0, time.Second)
	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow("s"))
	}
}

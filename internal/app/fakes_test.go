package app

import (
	"context"
	"sync"

	"github.com/dkeye/DriveChat/internal/adapters/ws"
	"github.com/dkeye/DriveChat/internal/core"
	"github.com/dkeye/DriveChat/internal/domain"
)

type fakeChannel struct {
	room     domain.RoomID
	username string
	role     domain.Role
	handler  core.ChannelHandler
	state    core.ChannelState
	sent     []string
	closes   int
}

func (c *fakeChannel) Send(text string) error {
	if c.state != core.StateOpen {
		return ws.ErrNotOpen
	}
	c.sent = append(c.sent, text)
	return nil
}

func (c *fakeChannel) Close() {
	c.closes++
	c.state = core.StateClosed
}

func (c *fakeChannel) State() core.ChannelState { return c.state }

// open simulates the server accepting the connection.
func (c *fakeChannel) open() {
	c.state = core.StateOpen
	c.handler(core.ChannelEvent{Kind: core.EventOpen})
}

func (c *fakeChannel) frame(text string) {
	c.handler(core.ChannelEvent{Kind: core.EventFrame, Text: text})
}

type fakeDialer struct {
	dials []*fakeChannel
}

func (d *fakeDialer) Dial(room domain.RoomID, username string, role domain.Role, handler core.ChannelHandler) core.Channel {
	ch := &fakeChannel{room: room, username: username, role: role, handler: handler, state: core.StateConnecting}
	d.dials = append(d.dials, ch)
	return ch
}

func (d *fakeDialer) last() *fakeChannel { return d.dials[len(d.dials)-1] }

// queue collects posted events; drain feeds them back like an event loop.
type queue struct {
	mu     sync.Mutex
	events []Event
}

func (q *queue) post(ev Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, ev)
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

func (q *queue) drain(s *Session) int {
	applied := 0
	for {
		q.mu.Lock()
		if len(q.events) == 0 {
			q.mu.Unlock()
			return applied
		}
		ev := q.events[0]
		q.events = q.events[1:]
		q.mu.Unlock()
		if s.Handle(ev) {
			applied++
		}
	}
}

type fakeDirectory struct {
	mu sync.Mutex

	listing    core.Listing
	listErr    error
	created    []core.CreateRoomRequest
	createCap  int
	createErr  error
	randomRoom domain.Room
	randomOK   bool
	randomErr  error
	randomArgs []string
}

func (d *fakeDirectory) ListRooms(context.Context) (core.Listing, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listing, d.listErr
}

func (d *fakeDirectory) CreateRoom(_ context.Context, req core.CreateRoomRequest) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created = append(d.created, req)
	return d.createCap, d.createErr
}

func (d *fakeDirectory) FindRandomRoom(_ context.Context, t domain.TransportType, r domain.Role) (domain.Room, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.randomArgs = append(d.randomArgs, string(t)+"/"+string(r))
	return d.randomRoom, d.randomOK, d.randomErr
}

// runCreate drives a whole create round trip on the test goroutine.
func runCreate(f *JoinFlow, dir core.Directory) (Outcome, error) {
	a, err := f.BeginCreate()
	if err != nil {
		return Outcome{}, err
	}
	capacity, err := dir.CreateRoom(context.Background(), a.Request)
	return f.ResolveCreate(a, capacity, err), nil
}

// runRandom drives a whole random-room round trip on the test goroutine.
func runRandom(f *JoinFlow, dir core.Directory) (Outcome, error) {
	a, err := f.BeginRandom()
	if err != nil {
		return Outcome{}, err
	}
	room, found, err := dir.FindRandomRoom(context.Background(), a.Transport, a.Role)
	return f.ResolveRandom(a, room, found, err), nil
}

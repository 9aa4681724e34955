package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/DriveChat/internal/clock"
	"github.com/dkeye/DriveChat/internal/core"
	"github.com/dkeye/DriveChat/internal/domain"
)

type SessionState int

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateJoined
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	default:
		return "disconnected"
	}
}

var (
	ErrNoDialer = errors.New("session needs a dialer")
	ErrNoPost   = errors.New("session needs a post function")
)

const capacityLookupTimeout = 10 * time.Second

type eventKind int

const (
	evChannel eventKind = iota
	evTick
	evExpired
	evCapacity
)

// Event is something that happened off the event loop (channel frame,
// countdown tick, directory answer). It is posted through
// SessionConfig.Post and must be fed back into Session.Handle from the
// event loop. Events from an earlier room are dropped there.
type Event struct {
	gen       uint64
	kind      eventKind
	channel   core.ChannelEvent
	remaining time.Duration
	room      domain.RoomID
	capacity  int
}

type SessionConfig struct {
	Username string
	Role     domain.Role
	Dialer   core.Dialer
	// Directory is optional; it answers capacity for rooms entered
	// through a room change.
	Directory core.Directory
	Clock     clock.Clock
	// RestStopAfter of zero disables the rest stop countdown.
	RestStopAfter time.Duration
	Post          func(Event)
}

// Session owns the live channel of one user. All methods must be
// called from a single event loop.
type Session struct {
	cfg SessionConfig

	state  SessionState
	gen    uint64
	room   domain.Room
	roster []string
	log    []core.Entry
	notice string

	ch        core.Channel
	countdown *core.Countdown
	remaining time.Duration
	returnTo  *domain.Room
}

func NewSession(cfg SessionConfig) (*Session, error) {
	if err := domain.ValidateUsername(cfg.Username); err != nil {
		return nil, err
	}
	if cfg.Dialer == nil {
		return nil, ErrNoDialer
	}
	if cfg.Post == nil {
		return nil, ErrNoPost
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	return &Session{cfg: cfg}, nil
}

func (s *Session) Username() string         { return s.cfg.Username }
func (s *Session) State() SessionState      { return s.state }
func (s *Session) Room() domain.Room        { return s.room }
func (s *Session) Notice() string           { return s.notice }
func (s *Session) Remaining() time.Duration { return s.remaining }
func (s *Session) InRestStop() bool         { return s.room.ID == domain.RestStopRoom }

func (s *Session) Roster() []string {
	return append([]string(nil), s.roster...)
}

func (s *Session) Log() []core.Entry {
	return append([]core.Entry(nil), s.log...)
}

// ReturnRoom is the room the user can go back to from the rest stop.
func (s *Session) ReturnRoom() (domain.RoomID, bool) {
	if s.returnTo == nil {
		return "", false
	}
	return s.returnTo.ID, true
}

// Join enters room from the join flow. Any previous channel is torn
// down first.
func (s *Session) Join(room domain.RoomID, capacity int) {
	s.returnTo = nil
	s.connect(room, capacity)
}

func (s *Session) connect(room domain.RoomID, capacity int) {
	s.teardown()
	s.gen++
	gen := s.gen

	s.state = StateConnecting
	s.room = domain.Room{ID: room, Capacity: capacity}
	s.roster = nil
	s.log = nil
	s.notice = ""
	s.remaining = 0

	log.Info().Str("module", "app.session").Str("room", string(room)).Str("user", s.cfg.Username).Msg("connecting")
	s.ch = s.cfg.Dialer.Dial(room, s.cfg.Username, s.cfg.Role, func(ev core.ChannelEvent) {
		s.cfg.Post(Event{gen: gen, kind: evChannel, channel: ev})
	})
	if capacity <= 0 {
		s.lookupCapacity(gen, room)
	}
}

func (s *Session) teardown() {
	s.countdown.Cancel()
	s.countdown = nil
	if s.ch != nil {
		s.ch.Close()
		s.ch = nil
	}
}

// Close ends the session from any state. Late events are ignored.
func (s *Session) Close() {
	s.teardown()
	s.gen++
	s.state = StateDisconnected
	s.returnTo = nil
	s.remaining = 0
}

// Send transmits draft as-is and reports whether it went out. Nothing
// happens for an empty draft or without an open channel.
func (s *Session) Send(draft string) bool {
	if draft == "" || s.state != StateJoined || s.ch == nil {
		return false
	}
	if err := s.ch.Send(draft); err != nil {
		log.Warn().Err(err).Str("module", "app.session").Str("room", string(s.room.ID)).Msg("send failed")
		return false
	}
	return true
}

// ReturnFromRestStop goes back to the room the countdown took the user
// out of.
func (s *Session) ReturnFromRestStop() bool {
	if s.state != StateJoined || !s.InRestStop() || s.returnTo == nil {
		return false
	}
	target := *s.returnTo
	s.returnTo = nil
	log.Info().Str("module", "app.session").Str("room", string(target.ID)).Msg("leaving rest stop")
	s.connect(target.ID, target.Capacity)
	return true
}

// Handle applies a posted event and reports whether state changed.
func (s *Session) Handle(ev Event) bool {
	if ev.gen != s.gen {
		log.Debug().Str("module", "app.session").Uint64("gen", ev.gen).Uint64("current", s.gen).Msg("stale event dropped")
		return false
	}
	switch ev.kind {
	case evChannel:
		return s.handleChannel(ev.channel)
	case evTick:
		if s.countdown == nil {
			return false
		}
		s.remaining = ev.remaining
		return true
	case evExpired:
		return s.expire()
	case evCapacity:
		if ev.room != s.room.ID {
			return false
		}
		s.room.Capacity = ev.capacity
		return true
	}
	return false
}

func (s *Session) handleChannel(ev core.ChannelEvent) bool {
	switch ev.Kind {
	case core.EventOpen:
		if s.state != StateConnecting {
			return false
		}
		s.state = StateJoined
		s.startCountdown()
		log.Info().Str("module", "app.session").Str("room", string(s.room.ID)).Msg("joined")
		return true

	case core.EventFrame:
		if s.state != StateJoined {
			return false
		}
		in := core.Classify(ev.Text)
		switch in.Kind {
		case core.KindRoster:
			s.roster = in.Roster
		case core.KindRoomChange:
			s.changeRoom(in.Room)
		default:
			s.log = append(s.log, core.ParseEntry(in.Line))
		}
		return true

	case core.EventClosed:
		s.countdown.Cancel()
		s.countdown = nil
		s.ch = nil
		s.state = StateDisconnected
		s.remaining = 0
		s.notice = ev.Reason
		if s.notice == "" && ev.Err != nil {
			s.notice = "Connection lost."
		}
		log.Info().Str("module", "app.session").Str("room", string(s.room.ID)).Str("reason", ev.Reason).Msg("channel closed")
		return true
	}
	return false
}

// changeRoom follows a directive from the backend. Going into the rest
// stop remembers where the user came from; anything else forgets it.
func (s *Session) changeRoom(to domain.RoomID) {
	from := s.room
	log.Info().Str("module", "app.session").Str("from", string(from.ID)).Str("to", string(to)).Msg("room change directive")
	s.connect(to, 0)
	if to == domain.RestStopRoom && from.ID != domain.RestStopRoom {
		s.returnTo = &from
	} else {
		s.returnTo = nil
	}
}

func (s *Session) startCountdown() {
	if s.cfg.RestStopAfter <= 0 || s.InRestStop() {
		return
	}
	gen := s.gen
	s.remaining = s.cfg.RestStopAfter
	s.countdown = core.StartCountdown(s.cfg.Clock, s.cfg.RestStopAfter, time.Second,
		func(r time.Duration) { s.cfg.Post(Event{gen: gen, kind: evTick, remaining: r}) },
		func() { s.cfg.Post(Event{gen: gen, kind: evExpired}) },
	)
}

func (s *Session) expire() bool {
	if s.countdown == nil || s.state != StateJoined || s.InRestStop() {
		return false
	}
	s.countdown.Cancel()
	s.countdown = nil
	from := s.room
	log.Info().Str("module", "app.session").Str("from", string(from.ID)).Msg("countdown expired, moving to rest stop")
	s.connect(domain.RestStopRoom, 0)
	s.returnTo = &from
	return true
}

func (s *Session) lookupCapacity(gen uint64, room domain.RoomID) {
	dir := s.cfg.Directory
	if dir == nil {
		return
	}
	post := s.cfg.Post
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), capacityLookupTimeout)
		defer cancel()
		listing, err := dir.ListRooms(ctx)
		if err != nil {
			log.Warn().Err(err).Str("module", "app.session").Str("room", string(room)).Msg("capacity lookup failed")
			return
		}
		if capacity, ok := listing.Capacity[room]; ok {
			post(Event{gen: gen, kind: evCapacity, room: room, capacity: capacity})
		}
	}()
}

package app

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/DriveChat/internal/core"
	"github.com/dkeye/DriveChat/internal/domain"
)

type JoinStep int

const (
	StepSelectingRole JoinStep = iota
	StepSelectingTransport
	StepNamingRoom
	StepCreating
	StepJoining
	StepJoined
)

func (s JoinStep) String() string {
	return [...]string{"selecting-role", "selecting-transport", "naming-room", "creating", "joining", "joined"}[s]
}

var (
	ErrRoleRequired      = errors.New("select passenger or driver first")
	ErrTransportRequired = errors.New("select a transport type first")
	ErrBusy              = errors.New("a request is already in flight")
)

const (
	msgNoRoomPassenger = "No rooms available for the selected type. Try another transport type."
	msgNoRoomDriver    = "No rooms available. Create a new room to start chatting."
	msgCreateFailed    = "Error creating room. Please try again."
	msgJoinFailed      = "Error joining room. Please try again."
)

type OutcomeKind int

const (
	// OutcomeStale is a directory answer nobody is waiting for anymore.
	OutcomeStale OutcomeKind = iota
	OutcomeJoined
	// OutcomeNoRoom is shown inline; it is not an error.
	OutcomeNoRoom
	// OutcomeRejected carries the directory's own message.
	OutcomeRejected
	// OutcomeFailed means the directory could not be reached.
	OutcomeFailed
)

type Outcome struct {
	Kind    OutcomeKind
	Room    domain.Room
	Message string
	// RouteToCreate is set when a driver found no room and the flow
	// switched to room creation.
	RouteToCreate bool
}

type CreateAttempt struct {
	token   uint64
	Request core.CreateRoomRequest
}

type RandomAttempt struct {
	token     uint64
	Transport domain.TransportType
	Role      domain.Role
}

// JoinFlow collects username, role, transport type and room name and
// turns them into a room to join. Directory calls are split into
// Begin/Resolve so the caller's event loop owns all state.
type JoinFlow struct {
	username   string
	role       domain.Role
	transport  domain.TransportType
	customName string
	generated  domain.RoomID
	createMode bool

	busy    JoinStep
	joined  bool
	attempt uint64
	notice  string
}

func NewJoinFlow() *JoinFlow {
	return &JoinFlow{}
}

func (f *JoinFlow) Username() string                { return f.username }
func (f *JoinFlow) Role() domain.Role               { return f.role }
func (f *JoinFlow) Transport() domain.TransportType { return f.transport }
func (f *JoinFlow) CreateMode() bool                { return f.createMode }
func (f *JoinFlow) Notice() string                  { return f.notice }
func (f *JoinFlow) CustomName() string              { return f.customName }

func (f *JoinFlow) Step() JoinStep {
	switch {
	case f.joined:
		return StepJoined
	case f.busy != 0:
		return f.busy
	case f.role == "":
		return StepSelectingRole
	case f.transport == "" || !f.createMode:
		return StepSelectingTransport
	default:
		return StepNamingRoom
	}
}

func (f *JoinFlow) inFlight() bool { return f.busy != 0 || f.joined }

func (f *JoinFlow) SetUsername(name string) {
	f.username = name
}

// SelectRole defaults drivers into room creation.
func (f *JoinFlow) SelectRole(r domain.Role) {
	if f.inFlight() {
		return
	}
	f.role = r
	f.createMode = r == domain.RoleDriver
	f.notice = ""
}

// SelectTransport regenerates the default room name unless the user
// typed their own.
func (f *JoinFlow) SelectTransport(t domain.TransportType) {
	if f.inFlight() {
		return
	}
	f.transport = t
	f.notice = ""
	if f.customName == "" {
		f.generated = domain.GenerateRoomName(t)
	}
}

func (f *JoinFlow) SetRoomName(name string) {
	if f.inFlight() {
		return
	}
	f.customName = name
	if name == "" && f.transport != "" {
		f.generated = domain.GenerateRoomName(f.transport)
	}
}

// RoomName is what a create would request right now.
func (f *JoinFlow) RoomName() domain.RoomID {
	if f.customName != "" {
		return domain.RoomID(f.customName)
	}
	return f.generated
}

func (f *JoinFlow) EnterCreateMode() {
	if f.inFlight() {
		return
	}
	f.createMode = true
	f.notice = ""
}

// Cancel leaves create mode and forgets the type and typed name.
func (f *JoinFlow) Cancel() {
	if f.inFlight() {
		return
	}
	f.createMode = false
	f.transport = ""
	f.customName = ""
	f.generated = ""
}

// Abandon forgets the request in flight, if any; its answer will be
// resolved as stale.
func (f *JoinFlow) Abandon() {
	f.attempt++
	f.busy = 0
}

func (f *JoinFlow) validate() error {
	if f.inFlight() {
		return ErrBusy
	}
	if err := domain.ValidateUsername(f.username); err != nil {
		return err
	}
	if f.role == "" {
		return ErrRoleRequired
	}
	if f.transport == "" {
		return ErrTransportRequired
	}
	return nil
}

func (f *JoinFlow) CanCreate() bool     { return f.validate() == nil && f.RoomName() != "" }
func (f *JoinFlow) CanJoinRandom() bool { return f.validate() == nil }

func (f *JoinFlow) BeginCreate() (CreateAttempt, error) {
	if err := f.validate(); err != nil {
		return CreateAttempt{}, err
	}
	f.attempt++
	f.busy = StepCreating
	f.notice = ""
	return CreateAttempt{
		token: f.attempt,
		Request: core.CreateRoomRequest{
			Name:        f.RoomName(),
			Capacity:    f.transport.Capacity(),
			CreatorType: f.role,
			DisplayName: f.username,
		},
	}, nil
}

func (f *JoinFlow) ResolveCreate(a CreateAttempt, capacity int, err error) Outcome {
	if a.token != f.attempt || f.busy != StepCreating {
		return Outcome{Kind: OutcomeStale}
	}
	f.busy = 0
	if err != nil {
		return failure(err, msgCreateFailed, "create room")
	}
	if capacity <= 0 {
		capacity = a.Request.Capacity
	}
	f.joined = true
	return Outcome{Kind: OutcomeJoined, Room: domain.Room{ID: a.Request.Name, Capacity: capacity}}
}

func (f *JoinFlow) BeginRandom() (RandomAttempt, error) {
	if err := f.validate(); err != nil {
		return RandomAttempt{}, err
	}
	f.attempt++
	f.busy = StepJoining
	f.notice = ""
	return RandomAttempt{token: f.attempt, Transport: f.transport, Role: f.role}, nil
}

func (f *JoinFlow) ResolveRandom(a RandomAttempt, room domain.Room, found bool, err error) Outcome {
	if a.token != f.attempt || f.busy != StepJoining {
		return Outcome{Kind: OutcomeStale}
	}
	f.busy = 0
	if err != nil {
		return failure(err, msgJoinFailed, "random room")
	}
	if !found {
		if f.role == domain.RoleDriver {
			f.createMode = true
			f.notice = msgNoRoomDriver
			return Outcome{Kind: OutcomeNoRoom, Message: f.notice, RouteToCreate: true}
		}
		f.notice = msgNoRoomPassenger
		return Outcome{Kind: OutcomeNoRoom, Message: f.notice}
	}
	f.joined = true
	return Outcome{Kind: OutcomeJoined, Room: room}
}

func failure(err error, generic, op string) Outcome {
	var rejected *core.RejectedError
	if errors.As(err, &rejected) {
		log.Info().Str("module", "app.joinflow").Str("op", op).Str("detail", rejected.Detail).Msg("rejected by directory")
		return Outcome{Kind: OutcomeRejected, Message: rejected.Detail}
	}
	log.Error().Err(err).Str("module", "app.joinflow").Str("op", op).Msg("directory call failed")
	return Outcome{Kind: OutcomeFailed, Message: generic}
}

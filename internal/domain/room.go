package domain

import (
	"errors"
	"strings"

	nanoid "github.com/jaevor/go-nanoid"
)

type RoomID string

// Room is a capacity-bounded chat channel. Occupancy is never stored
// here; it is derived from the roster the backend reports.
type Room struct {
	ID       RoomID `json:"room"`
	Capacity int    `json:"capacity"`
}

// TransportType ties a room to a kind of vehicle and fixes its capacity.
type TransportType string

const (
	TransportBike     TransportType = "bike"
	TransportCar      TransportType = "car"
	TransportLocation TransportType = "location"
	TransportBus      TransportType = "bus"
)

// DefaultCapacity applies to rooms whose transport type is unknown.
const DefaultCapacity = 4

// RestStopRoom is the waypoint every user is moved into when the
// in-room countdown expires.
const RestStopRoom RoomID = "rest_stop"

const MaxRoomNameLen = 64

var (
	ErrTransportUnknown = errors.New("unknown transport type")
	ErrRoomNameEmpty    = errors.New("room name empty")
	ErrRoomNameTooLong  = errors.New("room name too long")
	ErrRoomNameInvalid  = errors.New("room name contains reserved characters")
)

// ValidateRoomName rejects names that cannot be a channel path segment.
func ValidateRoomName(id RoomID) error {
	if strings.TrimSpace(string(id)) == "" {
		return ErrRoomNameEmpty
	}
	if len(id) > MaxRoomNameLen {
		return ErrRoomNameTooLong
	}
	if strings.ContainsAny(string(id), "/?#:") {
		return ErrRoomNameInvalid
	}
	return nil
}

// TransportTypes lists the types in the order the join screen offers them.
var TransportTypes = []TransportType{TransportBike, TransportCar, TransportLocation, TransportBus}

func ParseTransportType(s string) (TransportType, error) {
	t := TransportType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range TransportTypes {
		if t == known {
			return t, nil
		}
	}
	return "", ErrTransportUnknown
}

func (t TransportType) Capacity() int {
	switch t {
	case TransportBike:
		return 2
	case TransportCar:
		return 4
	case TransportLocation:
		return 10
	case TransportBus:
		return 15
	default:
		return DefaultCapacity
	}
}

// TransportOf reports the transport type encoded in a room id prefix.
func TransportOf(id RoomID) (TransportType, bool) {
	prefix, _, ok := strings.Cut(string(id), "_")
	if !ok {
		return "", false
	}
	t, err := ParseTransportType(prefix)
	if err != nil || string(t) != prefix {
		return "", false
	}
	return t, true
}

const (
	roomSuffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	roomSuffixLen      = 6
)

var roomSuffix = mustSuffixGenerator()

func mustSuffixGenerator() func() string {
	gen, err := nanoid.CustomASCII(roomSuffixAlphabet, roomSuffixLen)
	if err != nil {
		panic(err)
	}
	return gen
}

// GenerateRoomName returns a default room name like "car_k3x9q0".
func GenerateRoomName(t TransportType) RoomID {
	return RoomID(string(t) + "_" + roomSuffix())
}

// DisplayName strips the transport prefix from a room id for the header.
func DisplayName(id RoomID) string {
	if id == RestStopRoom {
		return "Rest Stop"
	}
	if t, ok := TransportOf(id); ok {
		if rest := strings.TrimPrefix(string(id), string(t)+"_"); rest != "" {
			return rest
		}
	}
	return string(id)
}

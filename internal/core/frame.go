package core

import (
	"strings"

	"github.com/dkeye/DriveChat/internal/domain"
)

const (
	rosterPrefix     = "Active users"
	systemPrefix     = "System:"
	roomChangePrefix = "System: ROOM_CHANGE:"
)

type InboundKind int

const (
	KindLine InboundKind = iota
	KindRoster
	KindRoomChange
)

// Inbound is one classified frame from the session channel.
type Inbound struct {
	Kind   InboundKind
	Roster []string
	Room   domain.RoomID
	Line   string
}

// Classify applies the ordered prefix rules to a raw inbound frame.
// The order matters: a roster line is never a log line, and a room
// change directive is never logged.
func Classify(frame string) Inbound {
	switch {
	case strings.HasPrefix(frame, rosterPrefix):
		return Inbound{Kind: KindRoster, Roster: parseRoster(frame)}
	case strings.HasPrefix(frame, roomChangePrefix):
		parts := strings.SplitN(frame, ":", 3)
		room := strings.TrimSpace(parts[2])
		if room == "" {
			return Inbound{Kind: KindLine, Line: frame}
		}
		return Inbound{Kind: KindRoomChange, Room: domain.RoomID(room)}
	default:
		return Inbound{Kind: KindLine, Line: frame}
	}
}

func parseRoster(frame string) []string {
	_, users, ok := strings.Cut(frame, ": ")
	if !ok {
		return []string{}
	}
	roster := make([]string, 0, strings.Count(users, ", ")+1)
	for _, u := range strings.Split(users, ", ") {
		if u = strings.TrimSpace(u); u != "" {
			roster = append(roster, u)
		}
	}
	return roster
}

type EntryKind int

const (
	EntryChat EntryKind = iota
	EntrySystem
	EntryNotice
)

// Entry is a log line split for display. System and notice entries
// never carry a sender.
type Entry struct {
	Kind    EntryKind
	Sender  string
	Content string
	Raw     string
}

func ParseEntry(line string) Entry {
	if rest, ok := strings.CutPrefix(line, systemPrefix); ok {
		return Entry{Kind: EntrySystem, Content: strings.TrimSpace(rest), Raw: line}
	}
	sender, content, ok := strings.Cut(line, ":")
	if !ok || sender == "" || strings.TrimSpace(sender) != sender {
		return Entry{Kind: EntryNotice, Content: line, Raw: line}
	}
	return Entry{
		Kind:    EntryChat,
		Sender:  sender,
		Content: strings.TrimPrefix(content, " "),
		Raw:     line,
	}
}

// IsOwn reports whether the entry was written by username.
func (e Entry) IsOwn(username string) bool {
	return e.Kind == EntryChat && e.Sender == username
}

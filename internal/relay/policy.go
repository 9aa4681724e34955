package relay

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a member whose send queue is full.
type Policy interface {
	OnBackpressure(room *Room, m *Member) BackpressureAction
}

// KickPolicy disconnects slow members; the relay has no slow lane.
type KickPolicy struct{}

func (KickPolicy) OnBackpressure(*Room, *Member) BackpressureAction {
	return KickMember
}

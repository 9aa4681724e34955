package relay

import (
	"sync"

	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Room   *Room
	Member *Member
}

// Registry maps live sessions to the room they sit in.
type Registry struct {
	mu       sync.RWMutex
	sessions map[SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[SessionID]*sessionEntry)}
}

func (r *Registry) Bind(room *Room, m *Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[m.SID] = &sessionEntry{Room: room, Member: m}
	log.Info().Str("module", "relay.registry").Str("sid", string(m.SID)).Str("room", string(room.info.ID)).Msg("bound session")
}

func (r *Registry) Lookup(sid SessionID) (*Room, *Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil, nil, false
	}
	return e.Room, e.Member, true
}

// Unbind removes sid and returns what it was bound to.
func (r *Registry) Unbind(sid SessionID) (*Room, *Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil, nil, false
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "relay.registry").Str("sid", string(sid)).Msg("unbind session")
	return e.Room, e.Member, true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

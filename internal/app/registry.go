package app

import (
	"errors"
	"sort"
	"sync"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrConnNotFound = errors.New("connection not found")

type connEntry struct {
	conn  core.Conn
	rooms map[domain.RoomName]struct{}
}

// Registry keeps both directions of the membership relation under one lock,
// so a connection is in a room's member set iff the room is in its own set.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.ConnID]*connEntry
	rooms map[domain.RoomName]map[domain.ConnID]core.Conn
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[domain.ConnID]*connEntry),
		rooms: make(map[domain.RoomName]map[domain.ConnID]core.Conn),
	}
}

// Bind registers an admitted connection together with its initial rooms.
func (r *Registry) Bind(conn core.Conn, rooms ...domain.RoomName) {
	sid := conn.ID()
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[sid]
	if !ok {
		e = &connEntry{conn: conn, rooms: make(map[domain.RoomName]struct{})}
		r.conns[sid] = e
	}
	r.joinLocked(sid, e, rooms)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Int("rooms", len(e.rooms)).Msg("bound connection")
}

// Unbind removes the connection from every room and forgets it.
// It reports whether the connection was bound.
func (r *Registry) Unbind(sid domain.ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[sid]
	if !ok {
		return false
	}
	r.leaveLocked(sid, e, nil)
	delete(r.conns, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind connection")
	return true
}

func (r *Registry) Find(sid domain.ConnID) (core.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[sid]; ok {
		return e.conn, true
	}
	return nil, false
}

// Join is idempotent: rooms the connection already belongs to are skipped.
func (r *Registry) Join(sid domain.ConnID, rooms ...domain.RoomName) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[sid]
	if !ok {
		return ErrConnNotFound
	}
	r.joinLocked(sid, e, rooms)
	return nil
}

func (r *Registry) Leave(sid domain.ConnID, rooms ...domain.RoomName) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[sid]
	if !ok {
		return ErrConnNotFound
	}
	if len(rooms) > 0 {
		r.leaveLocked(sid, e, rooms)
	}
	return nil
}

func (r *Registry) LeaveAll(sid domain.ConnID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[sid]
	if !ok {
		return ErrConnNotFound
	}
	r.leaveLocked(sid, e, nil)
	return nil
}

// MembersOf returns a snapshot of the room ordered by connection id.
func (r *Registry) MembersOf(room domain.RoomName) []core.Conn {
	r.mu.RLock()
	members := r.rooms[room]
	out := make([]core.Conn, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sortConns(out)
	return out
}

func (r *Registry) RoomsOf(sid domain.ConnID) ([]domain.RoomName, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[sid]
	if !ok {
		return nil, false
	}
	out := make([]domain.RoomName, 0, len(e.rooms))
	for room := range e.rooms {
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Conns returns every bound connection.
func (r *Registry) Conns() []core.Conn {
	r.mu.RLock()
	out := make([]core.Conn, 0, len(r.conns))
	for _, e := range r.conns {
		out = append(out, e.conn)
	}
	r.mu.RUnlock()
	sortConns(out)
	return out
}

func (r *Registry) joinLocked(sid domain.ConnID, e *connEntry, rooms []domain.RoomName) {
	for _, room := range rooms {
		if room == "" {
			continue
		}
		if _, ok := e.rooms[room]; ok {
			continue
		}
		e.rooms[room] = struct{}{}
		members, ok := r.rooms[room]
		if !ok {
			members = make(map[domain.ConnID]core.Conn)
			r.rooms[room] = members
		}
		members[sid] = e.conn
		log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Msg("joined room")
	}
}

// leaveLocked drops the given rooms, or all of them when rooms is nil.
func (r *Registry) leaveLocked(sid domain.ConnID, e *connEntry, rooms []domain.RoomName) {
	if rooms == nil {
		rooms = make([]domain.RoomName, 0, len(e.rooms))
		for room := range e.rooms {
			rooms = append(rooms, room)
		}
	}
	for _, room := range rooms {
		if _, ok := e.rooms[room]; !ok {
			continue
		}
		delete(e.rooms, room)
		if members, ok := r.rooms[room]; ok {
			delete(members, sid)
			if len(members) == 0 {
				delete(r.rooms, room)
			}
		}
		log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Msg("left room")
	}
}

func sortConns(cs []core.Conn) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].ID() < cs[j].ID() })
}

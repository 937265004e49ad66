package core

import "github.com/puzpuzpuz/xsync/v3"

// Membership tracks which room each online username occupies.
// A username is in at most one room at a time. Locks are always taken
// user first, then room.
type Membership struct {
	where *xsync.MapOf[string, string]
	rooms *xsync.MapOf[string, stringSet]
}

// NewMembership creates an empty tracker.
func NewMembership() *Membership {
	return &Membership{
		where: xsync.NewMapOf[string, string](),
		rooms: xsync.NewMapOf[string, stringSet](),
	}
}

// Join moves username into room. previous is the room it occupied before,
// empty when none; it equals room on a repeated join. count is the new size
// of room.
func (m *Membership) Join(room, username string) (previous string, count int) {
	m.where.Compute(username, func(old string, loaded bool) (string, bool) {
		if loaded {
			previous = old
			if old != room {
				m.remove(old, username)
			}
		}
		m.rooms.Compute(room, func(set stringSet, _ bool) (stringSet, bool) {
			if _, ok := set[username]; !ok {
				set = set.with(username)
			}
			count = len(set)
			return set, false
		})
		return room, false
	})
	return previous, count
}

// Leave removes username from room. It is a no-op, returning false, when
// the user currently occupies a different room or none.
func (m *Membership) Leave(room, username string) (left bool) {
	m.where.Compute(username, func(old string, loaded bool) (string, bool) {
		if !loaded || old != room {
			return old, !loaded
		}
		m.remove(room, username)
		left = true
		return "", true
	})
	return left
}

// LeaveAll removes username from whatever room it occupies and returns that room.
func (m *Membership) LeaveAll(username string) (room string) {
	m.where.Compute(username, func(old string, loaded bool) (string, bool) {
		if loaded {
			room = old
			m.remove(old, username)
		}
		return "", true
	})
	return room
}

func (m *Membership) remove(room, username string) {
	m.rooms.Compute(room, func(set stringSet, loaded bool) (stringSet, bool) {
		if !loaded {
			return nil, true
		}
		next := set.without(username)
		if len(next) == 0 {
			return nil, true
		}
		return next, false
	})
}

// CountFor returns the live member count of room, 0 when unknown.
func (m *Membership) CountFor(room string) int {
	set, _ := m.rooms.Load(room)
	return len(set)
}

// MembersOf returns the live members of room, sorted.
func (m *Membership) MembersOf(room string) []string {
	set, _ := m.rooms.Load(room)
	return set.sorted()
}

// RoomOf returns the room username occupies.
func (m *Membership) RoomOf(username string) (string, bool) {
	return m.where.Load(username)
}

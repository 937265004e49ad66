package core

import (
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

// stringSet is an immutable set; writers build a new one and swap it in.
type stringSet map[string]struct{}

func (s stringSet) with(v string) stringSet {
	next := make(stringSet, len(s)+1)
	for k := range s {
		next[k] = struct{}{}
	}
	next[v] = struct{}{}
	return next
}

func (s stringSet) without(v string) stringSet {
	next := make(stringSet, len(s))
	for k := range s {
		if k != v {
			next[k] = struct{}{}
		}
	}
	return next
}

func (s stringSet) sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Presence tracks which connections belong to which username.
// A user is online while at least one connection is bound to it.
type Presence struct {
	byConn *xsync.MapOf[string, string]
	byUser *xsync.MapOf[string, stringSet]
}

// NewPresence creates an empty registry.
func NewPresence() *Presence {
	return &Presence{
		byConn: xsync.NewMapOf[string, string](),
		byUser: xsync.NewMapOf[string, stringSet](),
	}
}

// Bind adds connID to the connections of username. It reports whether this
// is the user's first connection. Binding a connection already bound to a
// different user moves it.
func (p *Presence) Bind(connID, username string) (first bool) {
	if prev, loaded := p.byConn.LoadAndStore(connID, username); loaded && prev != username {
		p.detach(prev, connID)
	}

	p.byUser.Compute(username, func(old stringSet, loaded bool) (stringSet, bool) {
		first = len(old) == 0
		if _, ok := old[connID]; ok {
			return old, false
		}
		return old.with(connID), false
	})
	return first
}

// Resolve returns the username bound to connID.
func (p *Presence) Resolve(connID string) (string, bool) {
	return p.byConn.Load(connID)
}

// Unbind forgets connID. offline is true when it was the user's last connection.
func (p *Presence) Unbind(connID string) (username string, offline bool) {
	username, ok := p.byConn.LoadAndDelete(connID)
	if !ok {
		return "", false
	}
	return username, p.detach(username, connID)
}

func (p *Presence) detach(username, connID string) (offline bool) {
	p.byUser.Compute(username, func(old stringSet, loaded bool) (stringSet, bool) {
		next := old.without(connID)
		if len(next) == 0 {
			offline = true
			return nil, true
		}
		return next, false
	})
	return offline
}

// ConnectionsFor returns the connection ids of username, sorted.
func (p *Presence) ConnectionsFor(username string) []string {
	set, ok := p.byUser.Load(username)
	if !ok {
		return nil
	}
	return set.sorted()
}

// Online reports whether username has any live connection.
func (p *Presence) Online(username string) bool {
	set, ok := p.byUser.Load(username)
	return ok && len(set) > 0
}

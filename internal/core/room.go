package core

import "sync"

// Room groups the connections subscribed to a room's broadcasts.
// Occupancy is tracked per username by Membership; Room is the per-connection
// fan-out list.
type Room struct {
	Name string

	// send orders append-then-broadcast of messages within the room.
	send sync.Mutex

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewRoom constructs a room with no clients.
func NewRoom(name string) *Room {
	return &Room{
		Name:    name,
		clients: make(map[string]*Client),
	}
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[c.ID]; exists {
		return false
	}
	r.clients[c.ID] = c
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[c.ID]; !exists {
		return false
	}
	delete(r.clients, c.ID)
	return true
}

// Broadcast sends an event to all clients in the room except the one with
// id skip. It returns the ids of clients whose buffers were full.
func (r *Room) Broadcast(event *Event, skip string) (dropped []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, client := range r.clients {
		if id == skip {
			continue
		}
		if !client.deliver(event) {
			dropped = append(dropped, id)
		}
	}
	return dropped
}

package core

import "sync"

const (
	commandBuffer = 16
	eventBuffer   = 64
)

// Client is a single connection as seen by the core layer.
// Commands are consumed by the hub; Events are consumed by the transport.
// Events is never closed: the hub may still hold references after disconnect.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	mu   sync.RWMutex
	name string
	room string
}

// NewClient constructs an unidentified client with initialized channels.
func NewClient(id string) *Client {
	return &Client{
		ID:       id,
		Commands: make(chan *Command, commandBuffer),
		Events:   make(chan *Event, eventBuffer),
	}
}

// Name returns the bound username, empty until identified.
func (c *Client) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// Room returns the room the connection is currently in, if any.
func (c *Client) Room() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.room
}

func (c *Client) setName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
}

// swapRoom sets the current room and returns the previous one.
func (c *Client) swapRoom(room string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.room
	c.room = room
	return prev
}

// deliver queues an event without blocking. It reports false when the
// client is too slow and the event was dropped.
func (c *Client) deliver(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}

package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a unique key is already taken.
	ErrAlreadyExists = errors.New("already exists")
)

// User represents a registered account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Room represents a chat room.
type Room struct {
	ID           int64
	Name         string
	Topic        string
	CreatedBy    string
	Participants []string // everyone who ever joined, in join order
	CreatedAt    time.Time
	LastActivity time.Time
}

// File describes an attachment stored in the blob store.
type File struct {
	URL     string
	Name    string
	Type    string
	Size    int64
	Deleted bool
}

// Message represents a persisted chat message.
type Message struct {
	ID         int64
	RoomID     int64
	RoomName   string
	Sender     string
	Content    string
	File       *File
	ReadBy     []string
	DeletedFor []string
	CreatedAt  time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	// Returns ErrAlreadyExists if the username is taken.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// RoomStore handles room persistence.
type RoomStore interface {
	// CreateRoom inserts the room and its initial participants.
	// Returns ErrAlreadyExists if the name is taken.
	CreateRoom(ctx context.Context, room *Room) error

	// GetRoomByName retrieves a room by its normalized name.
	GetRoomByName(ctx context.Context, name string) (*Room, error)

	// ListRooms lists all rooms, most recently active first.
	ListRooms(ctx context.Context) ([]*Room, error)

	// TouchRoom sets last activity of the room.
	TouchRoom(ctx context.Context, name string, at time.Time) error

	// AddParticipant records username as a participant. No-op if present.
	AddParticipant(ctx context.Context, name, username string) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and its initial readers.
	// The room is resolved by msg.RoomName; ID and RoomID are filled in.
	// A file URL already attached to another message yields ErrAlreadyExists.
	SaveMessage(ctx context.Context, msg *Message) error

	// GetMessage retrieves a message with its readers and hidden-for list.
	GetMessage(ctx context.Context, id int64) (*Message, error)

	// ListMessages returns up to limit messages of a room, newest first.
	// If beforeID is provided, returns messages older than that ID.
	// Messages viewer deleted for themselves are skipped; an empty viewer
	// sees everything.
	ListMessages(ctx context.Context, roomName string, limit int, beforeID *int64, viewer string) ([]*Message, error)

	// AddReader appends username to the message readers if absent.
	// Reports whether the list grew.
	AddReader(ctx context.Context, id int64, username string) (bool, error)

	// HideMessage appends username to the message deleted-for list if absent.
	HideMessage(ctx context.Context, id int64, username string) (bool, error)

	// DeleteMessage removes the message permanently.
	DeleteMessage(ctx context.Context, id int64) error

	// MarkFileDeleted flags the message attachment as deleted.
	MarkFileDeleted(ctx context.Context, id int64) error
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}

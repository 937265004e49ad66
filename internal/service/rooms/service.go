package rooms

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vovakirdan/roomchat/internal/store"
)

// Name constraints after normalization.
const (
	MinNameLength  = 3
	MaxNameLength  = 30
	MaxTopicLength = 200
)

// Common errors for room operations.
var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
	ErrInvalidName  = errors.New("room name must be 3-30 characters")
	ErrInvalidTopic = errors.New("room topic is too long")
)

var whitespace = regexp.MustCompile(`\s+`)

// Normalize lower-cases the name and replaces whitespace runs with a hyphen.
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(name string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// Seed describes a room created at startup if missing.
type Seed struct {
	Name  string `mapstructure:"name" yaml:"name"`
	Topic string `mapstructure:"topic" yaml:"topic"`
}

// DefaultSeeds are the rooms available on a fresh install.
func DefaultSeeds() []Seed {
	return []Seed{
		{Name: "general", Topic: "General Chat"},
		{Name: "arsenal", Topic: "Arsenal FC Discussions"},
		{Name: "man-u", Topic: "Manchester United FC"},
		{Name: "liverpool", Topic: "Liverpool FC Fan Club"},
		{Name: "bedsa", Topic: "BEDSA Community"},
	}
}

// Service is the durable room directory.
type Service struct {
	store store.RoomStore
	now   func() time.Time
}

// New creates a new room directory.
func New(st store.RoomStore) *Service {
	return &Service{
		store: st,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create validates and stores a new room with creator as first participant.
func (s *Service) Create(ctx context.Context, name, topic, creator string) (*store.Room, error) {
	name = Normalize(name)
	if n := utf8.RuneCountInString(name); n < MinNameLength || n > MaxNameLength {
		return nil, ErrInvalidName
	}

	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = "Chat about " + name
	}
	if utf8.RuneCountInString(topic) > MaxTopicLength {
		return nil, ErrInvalidTopic
	}

	now := s.now()
	room := &store.Room{
		Name:         name,
		Topic:        topic,
		CreatedBy:    creator,
		CreatedAt:    now,
		LastActivity: now,
	}
	if creator != "" {
		room.Participants = []string{creator}
	}

	if err := s.store.CreateRoom(ctx, room); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrRoomExists
		}
		return nil, fmt.Errorf("create room: %w", err)
	}

	return room, nil
}

// Find looks a room up by name. The name is normalized first.
func (s *Service) Find(ctx context.Context, name string) (*store.Room, error) {
	room, err := s.store.GetRoomByName(ctx, Normalize(name))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("find room: %w", err)
	}
	return room, nil
}

// List returns all rooms, most recently active first.
func (s *Service) List(ctx context.Context) ([]*store.Room, error) {
	rooms, err := s.store.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// Touch records activity in the room now.
func (s *Service) Touch(ctx context.Context, name string) error {
	if err := s.store.TouchRoom(ctx, name, s.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrRoomNotFound
		}
		return fmt.Errorf("touch room: %w", err)
	}
	return nil
}

// AddParticipant records that username has joined the room at least once.
func (s *Service) AddParticipant(ctx context.Context, name, username string) error {
	if err := s.store.AddParticipant(ctx, name, username); err != nil {
		return fmt.Errorf("add participant: %w", err)
	}
	return nil
}

// Seed creates every seed room that does not exist yet and returns how many were created.
func (s *Service) Seed(ctx context.Context, seeds []Seed) (int, error) {
	created := 0
	for _, seed := range seeds {
		_, err := s.Create(ctx, seed.Name, seed.Topic, "")
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrRoomExists):
		default:
			return created, fmt.Errorf("seed room %q: %w", seed.Name, err)
		}
	}
	return created, nil
}

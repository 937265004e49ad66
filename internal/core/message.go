package core

import (
	"time"

	"github.com/vovakirdan/roomchat/internal/store"
)

// File is an attachment descriptor as produced by the blob store.
type File struct {
	URL     string
	Name    string
	Type    string
	Size    int64
	Deleted bool
}

// Message is the domain model for a chat message.
type Message struct {
	ID        int64
	Room      string
	From      string
	Text      string
	File      *File
	ReadBy    []string
	CreatedAt time.Time
}

// RoomSummary is one entry of the room list.
type RoomSummary struct {
	Name         string
	Topic        string
	Count        int
	LastActivity time.Time
}

func fileFromStore(f *store.File) *File {
	if f == nil {
		return nil
	}
	return &File{URL: f.URL, Name: f.Name, Type: f.Type, Size: f.Size, Deleted: f.Deleted}
}

func messageFromStore(m *store.Message) Message {
	readBy := make([]string, len(m.ReadBy))
	copy(readBy, m.ReadBy)
	return Message{
		ID:        m.ID,
		Room:      m.RoomName,
		From:      m.Sender,
		Text:      m.Content,
		File:      fileFromStore(m.File),
		ReadBy:    readBy,
		CreatedAt: m.CreatedAt,
	}
}

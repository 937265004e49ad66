package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/service/messages"
	"github.com/vovakirdan/roomchat/internal/service/rooms"
	"github.com/vovakirdan/roomchat/internal/store"
)

// RoomHandlers provides read-only HTTP access to rooms and their history.
type RoomHandlers struct {
	hub      *core.Hub
	rooms    *rooms.Service
	messages *messages.Service
	log      *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(hub *core.Hub, roomService *rooms.Service, messageService *messages.Service, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		hub:      hub,
		rooms:    roomService,
		messages: messageService,
		log:      logger,
	}
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	Name         string `json:"name"`
	Topic        string `json:"topic"`
	Count        int    `json:"count"`
	LastActivity string `json:"last_activity,omitempty"`
}

// FileResponse is an attachment descriptor.
type FileResponse struct {
	URL     string `json:"url"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Size    int64  `json:"size"`
	Deleted bool   `json:"deleted,omitempty"`
}

// MessageResponse represents a stored message in API responses.
type MessageResponse struct {
	ID        int64         `json:"id"`
	Room      string        `json:"room"`
	User      string        `json:"user"`
	Text      string        `json:"text"`
	File      *FileResponse `json:"file,omitempty"`
	ReadBy    []string      `json:"read_by"`
	CreatedAt string        `json:"created_at"`
}

// MessagesResponse is one page of history, oldest first.
type MessagesResponse struct {
	Room     string            `json:"room"`
	Messages []MessageResponse `json:"messages"`
}

// ListRooms lists rooms with live occupancy.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	summaries, err := h.hub.RoomSummaries(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]RoomResponse, 0, len(summaries))
	for _, s := range summaries {
		room := RoomResponse{Name: s.Name, Topic: s.Topic, Count: s.Count}
		if !s.LastActivity.IsZero() {
			room.LastActivity = s.LastActivity.Format(time.RFC3339)
		}
		response = append(response, room)
	}

	c.JSON(http.StatusOK, response)
}

// ListMessages returns a page of room history for the authenticated user.
// GET /api/rooms/:name/messages?limit=&before=
func (h *RoomHandlers) ListMessages(c *gin.Context) {
	username := c.GetString(ContextKeyUsername)
	if username == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	var before *int64
	if raw := c.Query("before"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "before must be a message id"})
			return
		}
		before = &id
	}

	room, err := h.rooms.Find(c.Request.Context(), c.Param("name"))
	if err != nil {
		if errors.Is(err, rooms.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Str("room", c.Param("name")).Msg("failed to find room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	page, err := h.messages.Page(c.Request.Context(), room.Name, limit, before, username)
	if err != nil {
		h.log.Error().Err(err).Str("room", room.Name).Msg("failed to load history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := MessagesResponse{Room: room.Name, Messages: make([]MessageResponse, 0, len(page))}
	for _, msg := range page {
		response.Messages = append(response.Messages, messageResponse(msg))
	}
	c.JSON(http.StatusOK, response)
}

func messageResponse(msg *store.Message) MessageResponse {
	out := MessageResponse{
		ID:        msg.ID,
		Room:      msg.RoomName,
		User:      msg.Sender,
		Text:      msg.Content,
		ReadBy:    msg.ReadBy,
		CreatedAt: msg.CreatedAt.Format(time.RFC3339),
	}
	if out.ReadBy == nil {
		out.ReadBy = []string{}
	}
	if msg.File != nil {
		out.File = fileResponse(msg.File)
	}
	return out
}

func fileResponse(f *store.File) *FileResponse {
	return &FileResponse{URL: f.URL, Name: f.Name, Type: f.Type, Size: f.Size, Deleted: f.Deleted}
}

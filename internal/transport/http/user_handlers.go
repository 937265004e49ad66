package http

import (
	"errors"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/service/rooms"
)

// UserHandlers answers who is where.
type UserHandlers struct {
	hub   *core.Hub
	rooms *rooms.Service
	log   *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(hub *core.Hub, roomService *rooms.Service, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		hub:   hub,
		rooms: roomService,
		log:   logger,
	}
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	Username string `json:"username"`
	Online   bool   `json:"online"`
	InRoom   bool   `json:"in_room"`
}

// RoomMembersResponse lists everyone who ever joined the room.
type RoomMembersResponse struct {
	Room  string         `json:"room"`
	Count int            `json:"count"`
	Users []UserResponse `json:"users"`
}

// RoomMembers lists the participants of a room with their presence.
// GET /api/rooms/:name/members
func (h *UserHandlers) RoomMembers(c *gin.Context) {
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

	present := h.hub.Membership().MembersOf(room.Name)
	users := make([]UserResponse, 0, len(room.Participants))
	for _, name := range room.Participants {
		users = append(users, UserResponse{
			Username: name,
			Online:   h.hub.Presence().Online(name),
			InRoom:   slices.Contains(present, name),
		})
	}

	c.JSON(http.StatusOK, RoomMembersResponse{Room: room.Name, Count: len(present), Users: users})
}

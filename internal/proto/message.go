package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeHello        = "hello"
	InboundTypeListRooms    = "list_rooms"
	InboundTypeJoin         = "join"
	InboundTypeCreateRoom   = "create_room"
	InboundTypeLeave        = "leave"
	InboundTypeMsg          = "msg"
	InboundTypeTyping       = "typing"
	InboundTypeStopTyping   = "stop_typing"
	InboundTypeMarkRead     = "mark_read"
	InboundTypeDeleteMsg    = "delete_msg"
	InboundTypeDeleteFile   = "delete_file"
	InboundTypeDownloadFile = "download_file"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// HelloData is sent by the client to introduce itself.
type HelloData struct {
	User     string `json:"user"`
	Token    string `json:"token,omitempty"`
	Protocol int    `json:"protocol,omitempty"`
}

// JoinData names the room to join or leave.
type JoinData struct {
	Room string `json:"room"`
}

// CreateRoomData requests a new room.
type CreateRoomData struct {
	Room  string `json:"room"`
	Topic string `json:"topic,omitempty"`
}

// FileData is an attachment descriptor, as returned by the upload endpoint.
type FileData struct {
	URL     string `json:"url"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Size    int64  `json:"size"`
	Deleted bool   `json:"deleted,omitempty"`
}

// MsgData is a chat message from the client. It goes to the current room.
type MsgData struct {
	Text string    `json:"text"`
	File *FileData `json:"file,omitempty"`
}

// TypingData optionally names the room; the current room is used otherwise.
type TypingData struct {
	Room string `json:"room,omitempty"`
}

// MessageRefData points at a stored message.
type MessageRefData struct {
	MessageID int64 `json:"message_id"`
}

// DeleteMsgData asks to delete a message.
type DeleteMsgData struct {
	MessageID   int64 `json:"message_id"`
	ForEveryone bool  `json:"for_everyone"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventMessage is a chat message delivered to a room.
type EventMessage struct {
	ID     int64     `json:"id"`
	Room   string    `json:"room"`
	User   string    `json:"user"`
	Text   string    `json:"text"`
	TS     int64     `json:"ts"`
	File   *FileData `json:"file,omitempty"`
	ReadBy []string  `json:"read_by"`
}

// RoomInfo is one row of the room list.
type RoomInfo struct {
	Name         string `json:"name"`
	Topic        string `json:"topic"`
	Count        int    `json:"count"`
	LastActivity int64  `json:"last_activity"`
}

// EventRoomList carries every room with its live occupancy.
type EventRoomList struct {
	Rooms []RoomInfo `json:"rooms"`
}

// EventRoomJoined confirms a join to the requester.
type EventRoomJoined struct {
	Room  string `json:"room"`
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// EventHistory replays recent messages of a room, oldest first.
type EventHistory struct {
	Room     string         `json:"room"`
	Messages []EventMessage `json:"messages"`
}

// EventUserJoined notifies that a user joined a room.
type EventUserJoined struct {
	Room  string `json:"room"`
	User  string `json:"user"`
	Count int    `json:"count"`
}

// EventUserLeft notifies that a user left a room.
type EventUserLeft struct {
	Room  string `json:"room"`
	User  string `json:"user"`
	Count int    `json:"count"`
}

// EventRoomLeft confirms a leave to the requester.
type EventRoomLeft struct {
	Room string `json:"room"`
}

// EventTyping covers both typing and stop_typing.
type EventTyping struct {
	Room string `json:"room"`
	User string `json:"user"`
}

// EventMessageRead reports the readers of a message to its sender.
type EventMessageRead struct {
	MessageID int64    `json:"message_id"`
	ReadBy    []string `json:"read_by"`
}

// EventMessageRef covers message_deleted, message_hidden and file_deleted.
type EventMessageRef struct {
	Room      string `json:"room,omitempty"`
	MessageID int64  `json:"message_id"`
}

// EventFileReady hands the attachment descriptor to the requester.
type EventFileReady struct {
	MessageID int64     `json:"message_id"`
	File      *FileData `json:"file"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

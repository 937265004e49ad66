package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventRoomList delivers all rooms with live member counts.
	EventRoomList EventKind = iota
	// EventRoomJoined confirms a join or create to the requester.
	EventRoomJoined
	// EventHistory delivers message history to a client upon joining a room.
	EventHistory
	// EventUserJoined notifies room members about a new member.
	EventUserJoined
	// EventUserLeft notifies room members that a user left.
	EventUserLeft
	// EventRoomLeft confirms a leave to the requester.
	EventRoomLeft
	// EventRoomMessage notifies clients about a chat message in a room.
	EventRoomMessage
	// EventTyping tells room members that someone is typing.
	EventTyping
	// EventStopTyping tells room members that someone stopped typing.
	EventStopTyping
	// EventMessageRead tells a sender who has read their message.
	EventMessageRead
	// EventMessageDeleted tells room members a message was removed for everyone.
	EventMessageDeleted
	// EventMessageHidden confirms a delete-for-me to the requester.
	EventMessageHidden
	// EventFileDeleted tells room members an attachment was removed.
	EventFileDeleted
	// EventFileReady hands the attachment descriptor to the requester.
	EventFileReady
	// EventError notifies clients about a domain error.
	EventError
)

var eventNames = map[EventKind]string{
	EventRoomList:       "room_list",
	EventRoomJoined:     "room_joined",
	EventHistory:        "history",
	EventUserJoined:     "user_joined",
	EventUserLeft:       "user_left",
	EventRoomLeft:       "room_left",
	EventRoomMessage:    "message",
	EventTyping:         "typing",
	EventStopTyping:     "stop_typing",
	EventMessageRead:    "message_read",
	EventMessageDeleted: "message_deleted",
	EventMessageHidden:  "message_hidden",
	EventFileDeleted:    "file_deleted",
	EventFileReady:      "file_ready",
	EventError:          "error",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is sent to clients to describe what happened in the system.
// Events are shared between recipients and must not be mutated after send.
type Event struct {
	Kind      EventKind
	Room      string
	Topic     string
	User      string
	Count     int
	Message   Message
	Messages  []Message     // EventHistory
	Rooms     []RoomSummary // EventRoomList
	MessageID int64
	ReadBy    []string
	File      *File
	Error     *CoreError
}

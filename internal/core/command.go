package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandSetIdentity binds a username to the connection.
	CommandSetIdentity CommandKind = iota
	// CommandListRooms asks for the room list with live counts.
	CommandListRooms
	// CommandJoinRoom moves the client into a room.
	CommandJoinRoom
	// CommandCreateRoom creates a room and joins it.
	CommandCreateRoom
	// CommandLeaveRoom takes the client out of its current room.
	CommandLeaveRoom
	// CommandSendRoomMessage delivers a chat message to the current room.
	CommandSendRoomMessage
	// CommandTyping signals that the user is typing.
	CommandTyping
	// CommandStopTyping signals that the user stopped typing.
	CommandStopTyping
	// CommandMarkRead records a read receipt.
	CommandMarkRead
	// CommandDeleteMessage hides a message for the user or removes it for everyone.
	CommandDeleteMessage
	// CommandDeleteFile removes the attachment of a message.
	CommandDeleteFile
	// CommandDownloadFile asks for the attachment descriptor of a message.
	CommandDownloadFile
)

var commandNames = map[CommandKind]string{
	CommandSetIdentity:     "set_identity",
	CommandListRooms:       "list_rooms",
	CommandJoinRoom:        "join",
	CommandCreateRoom:      "create_room",
	CommandLeaveRoom:       "leave",
	CommandSendRoomMessage: "msg",
	CommandTyping:          "typing",
	CommandStopTyping:      "stop_typing",
	CommandMarkRead:        "mark_read",
	CommandDeleteMessage:   "delete_msg",
	CommandDeleteFile:      "delete_file",
	CommandDownloadFile:    "download_file",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return "unknown"
}

// Command represents an action requested by a client.
type Command struct {
	Kind        CommandKind
	User        string
	Room        string
	Topic       string
	Message     Message
	MessageID   int64
	ForEveryone bool
}

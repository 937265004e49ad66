package http

import (
	"encoding/json"

	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/proto"
)

// decode unmarshals data into v. A missing payload leaves v zeroed.
func decode(data json.RawMessage, v any) *proto.Error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed data for this message type"}
	}
	return nil
}

func badRequest(msg string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Msg: msg}
}

// inboundToCommand maps everything except hello, which needs token checks
// and is handled by the WebSocket handler itself.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeListRooms:
		return &core.Command{Kind: core.CommandListRooms}, nil

	case proto.InboundTypeJoin:
		var join proto.JoinData
		if perr := decode(inbound.Data, &join); perr != nil {
			return nil, perr
		}
		if join.Room == "" {
			return nil, badRequest("room is required")
		}
		return &core.Command{Kind: core.CommandJoinRoom, Room: join.Room}, nil

	case proto.InboundTypeCreateRoom:
		var create proto.CreateRoomData
		if perr := decode(inbound.Data, &create); perr != nil {
			return nil, perr
		}
		if create.Room == "" {
			return nil, badRequest("room is required")
		}
		return &core.Command{Kind: core.CommandCreateRoom, Room: create.Room, Topic: create.Topic}, nil

	case proto.InboundTypeLeave:
		var leave proto.JoinData
		if perr := decode(inbound.Data, &leave); perr != nil {
			return nil, perr
		}
		return &core.Command{Kind: core.CommandLeaveRoom, Room: leave.Room}, nil

	case proto.InboundTypeMsg:
		var msg proto.MsgData
		if perr := decode(inbound.Data, &msg); perr != nil {
			return nil, perr
		}
		return &core.Command{
			Kind: core.CommandSendRoomMessage,
			Message: core.Message{
				Text: msg.Text,
				File: fileToCore(msg.File),
			},
		}, nil

	case proto.InboundTypeTyping, proto.InboundTypeStopTyping:
		var typing proto.TypingData
		if perr := decode(inbound.Data, &typing); perr != nil {
			return nil, perr
		}
		kind := core.CommandTyping
		if inbound.Type == proto.InboundTypeStopTyping {
			kind = core.CommandStopTyping
		}
		return &core.Command{Kind: kind, Room: typing.Room}, nil

	case proto.InboundTypeMarkRead, proto.InboundTypeDeleteFile, proto.InboundTypeDownloadFile:
		var ref proto.MessageRefData
		if perr := decode(inbound.Data, &ref); perr != nil {
			return nil, perr
		}
		if ref.MessageID <= 0 {
			return nil, badRequest("message_id is required")
		}
		kind := core.CommandMarkRead
		switch inbound.Type {
		case proto.InboundTypeDeleteFile:
			kind = core.CommandDeleteFile
		case proto.InboundTypeDownloadFile:
			kind = core.CommandDownloadFile
		}
		return &core.Command{Kind: kind, MessageID: ref.MessageID}, nil

	case proto.InboundTypeDeleteMsg:
		var del proto.DeleteMsgData
		if perr := decode(inbound.Data, &del); perr != nil {
			return nil, perr
		}
		if del.MessageID <= 0 {
			return nil, badRequest("message_id is required")
		}
		return &core.Command{
			Kind:        core.CommandDeleteMessage,
			MessageID:   del.MessageID,
			ForEveryone: del.ForEveryone,
		}, nil

	default:
		return nil, badRequest("unknown message type")
	}
}

func fileToCore(f *proto.FileData) *core.File {
	if f == nil || f.URL == "" {
		return nil
	}
	return &core.File{URL: f.URL, Name: f.Name, Type: f.Type, Size: f.Size}
}

func fileFromCore(f *core.File) *proto.FileData {
	if f == nil {
		return nil
	}
	return &proto.FileData{URL: f.URL, Name: f.Name, Type: f.Type, Size: f.Size, Deleted: f.Deleted}
}

func messageFromCore(m core.Message) proto.EventMessage {
	readBy := m.ReadBy
	if readBy == nil {
		readBy = []string{}
	}
	return proto.EventMessage{
		ID:     m.ID,
		Room:   m.Room,
		User:   m.From,
		Text:   m.Text,
		TS:     m.CreatedAt.Unix(),
		File:   fileFromCore(m.File),
		ReadBy: readBy,
	}
}

func roomsFromCore(summaries []core.RoomSummary) []proto.RoomInfo {
	out := make([]proto.RoomInfo, 0, len(summaries))
	for _, s := range summaries {
		info := proto.RoomInfo{Name: s.Name, Topic: s.Topic, Count: s.Count}
		if !s.LastActivity.IsZero() {
			info.LastActivity = s.LastActivity.Unix()
		}
		out = append(out, info)
	}
	return out
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	out := proto.Outbound{Type: proto.OutboundTypeEvent, Event: event.Kind.String()}

	switch event.Kind {
	case core.EventRoomMessage:
		out.Data = messageFromCore(event.Message)
	case core.EventRoomList:
		out.Data = proto.EventRoomList{Rooms: roomsFromCore(event.Rooms)}
	case core.EventRoomJoined:
		out.Data = proto.EventRoomJoined{Room: event.Room, Topic: event.Topic, Count: event.Count}
	case core.EventHistory:
		messages := make([]proto.EventMessage, 0, len(event.Messages))
		for _, msg := range event.Messages {
			messages = append(messages, messageFromCore(msg))
		}
		out.Data = proto.EventHistory{Room: event.Room, Messages: messages}
	case core.EventUserJoined:
		out.Data = proto.EventUserJoined{Room: event.Room, User: event.User, Count: event.Count}
	case core.EventUserLeft:
		out.Data = proto.EventUserLeft{Room: event.Room, User: event.User, Count: event.Count}
	case core.EventRoomLeft:
		out.Data = proto.EventRoomLeft{Room: event.Room}
	case core.EventTyping, core.EventStopTyping:
		out.Data = proto.EventTyping{Room: event.Room, User: event.User}
	case core.EventMessageRead:
		out.Data = proto.EventMessageRead{MessageID: event.MessageID, ReadBy: event.ReadBy}
	case core.EventMessageDeleted, core.EventMessageHidden, core.EventFileDeleted:
		out.Data = proto.EventMessageRef{Room: event.Room, MessageID: event.MessageID}
	case core.EventFileReady:
		out.Data = proto.EventFileReady{MessageID: event.MessageID, File: fileFromCore(event.File)}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	}
	return out
}

func errorOutbound(perr *proto.Error) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeError, Error: perr}
}

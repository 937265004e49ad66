package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/service/messages"
	"github.com/vovakirdan/roomchat/internal/service/rooms"
	"github.com/vovakirdan/roomchat/internal/store"
)

// MaxUsernameLength bounds the name accepted by set-identity, in runes.
const MaxUsernameLength = 32

const commandTimeout = 10 * time.Second

// ErrHubClosed is returned when registering with a hub that has stopped.
var ErrHubClosed = errors.New("hub is closed")

// RoomDirectory is the durable room catalogue the hub consults.
type RoomDirectory interface {
	Create(ctx context.Context, name, topic, creator string) (*store.Room, error)
	Find(ctx context.Context, name string) (*store.Room, error)
	List(ctx context.Context) ([]*store.Room, error)
	Touch(ctx context.Context, name string) error
	AddParticipant(ctx context.Context, name, username string) error
}

// MessageLog is the message semantics the hub relies on.
type MessageLog interface {
	Append(ctx context.Context, room, sender, content string, file *store.File) (*store.Message, error)
	History(ctx context.Context, room string, limit int, viewer string) ([]*store.Message, error)
	MarkRead(ctx context.Context, id int64, user string) (*store.Message, bool, error)
	DeleteForSelf(ctx context.Context, id int64, user string) (*store.Message, error)
	DeleteForEveryone(ctx context.Context, id int64, requester string) (*store.Message, error)
	FileFor(ctx context.Context, id int64) (*store.Message, error)
	DeleteFile(ctx context.Context, id int64, requester string) (*store.Message, error)
}

// Attachments vets attachment descriptors sent by clients and deletes their
// blobs by public URL.
type Attachments interface {
	Resolve(ctx context.Context, url, name string) (*store.File, error)
	Remove(ctx context.Context, url string) error
}

// Option configures a Hub.
type Option func(*Hub)

// WithHistoryLimit sets how many messages a join replays.
func WithHistoryLimit(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.historyLimit = n
		}
	}
}

type hubOp struct {
	client   *Client
	register bool
}

// Hub coordinates connections, presence, room membership and message fan-out.
// Each registered client gets its own goroutine draining Commands, so one
// connection's commands run in order while connections interleave freely.
type Hub struct {
	rooms    RoomDirectory
	messages MessageLog
	files    Attachments
	logger   *zerolog.Logger

	historyLimit int

	presence *Presence
	members  *Membership
	clients  *xsync.MapOf[string, *Client]
	subs     *xsync.MapOf[string, *Room]

	ops  chan hubOp
	done chan struct{}
	wg   sync.WaitGroup
}

// NewHub creates a new chat hub instance. files may be nil, in which case
// messages with attachments are refused.
func NewHub(rooms RoomDirectory, msgs MessageLog, files Attachments, logger *zerolog.Logger, opts ...Option) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	h := &Hub{
		rooms:        rooms,
		messages:     msgs,
		files:        files,
		logger:       logger,
		historyLimit: messages.DefaultHistoryLimit,
		presence:     NewPresence(),
		members:      NewMembership(),
		clients:      xsync.NewMapOf[string, *Client](),
		subs:         xsync.NewMapOf[string, *Room](),
		ops:          make(chan hubOp, 64),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run processes registrations until ctx is cancelled, then stops every
// client session and waits for their disconnect cleanup.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	sessions := make(map[string]context.CancelFunc)
	for {
		select {
		case <-ctx.Done():
			for _, cancel := range sessions {
				cancel()
			}
			h.wg.Wait()
			return nil
		case op := <-h.ops:
			if op.register {
				if _, exists := sessions[op.client.ID]; exists {
					continue
				}
				sctx, cancel := context.WithCancel(ctx)
				sessions[op.client.ID] = cancel
				h.clients.Store(op.client.ID, op.client)
				h.wg.Add(1)
				go h.serve(sctx, op.client)
				continue
			}
			if cancel, ok := sessions[op.client.ID]; ok {
				delete(sessions, op.client.ID)
				cancel()
			}
		}
	}
}

// RegisterClient starts serving c.
func (h *Hub) RegisterClient(c *Client) error {
	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}
	select {
	case h.ops <- hubOp{client: c, register: true}:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

// UnregisterClient stops serving c and runs the disconnect cleanup.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.ops <- hubOp{client: c}:
	case <-h.done:
	}
}

// Presence exposes the presence registry.
func (h *Hub) Presence() *Presence { return h.presence }

// Membership exposes the room membership tracker.
func (h *Hub) Membership() *Membership { return h.members }

func (h *Hub) serve(ctx context.Context, c *Client) {
	defer h.wg.Done()
	defer h.disconnect(c)

	h.logger.Debug().Str("client_id", c.ID).Msg("client registered")
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-c.Commands:
			if cmd != nil {
				h.handle(ctx, c, cmd)
			}
		}
	}
}

func (h *Hub) handle(ctx context.Context, c *Client, cmd *Command) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error().
				Str("client_id", c.ID).
				Str("command", cmd.Kind.String()).
				Interface("panic", r).
				Msg("command handler panicked")
			h.fail(c, cmd, ErrStorage)
		}
	}()

	// A closing connection must not abort a command already in flight.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commandTimeout)
	defer cancel()

	var err error
	switch cmd.Kind {
	case CommandSetIdentity:
		err = h.setIdentity(c, cmd)
	case CommandListRooms:
		err = h.listRooms(ctx, c)
	case CommandJoinRoom:
		err = h.join(ctx, c, cmd)
	case CommandCreateRoom:
		err = h.create(ctx, c, cmd)
	case CommandLeaveRoom:
		err = h.leave(ctx, c, cmd)
	case CommandSendRoomMessage:
		err = h.sendMessage(ctx, c, cmd)
	case CommandTyping:
		err = h.typing(c, cmd, EventTyping)
	case CommandStopTyping:
		err = h.typing(c, cmd, EventStopTyping)
	case CommandMarkRead:
		err = h.markRead(ctx, c, cmd)
	case CommandDeleteMessage:
		err = h.deleteMessage(ctx, c, cmd)
	case CommandDeleteFile:
		err = h.deleteFile(ctx, c, cmd)
	case CommandDownloadFile:
		err = h.downloadFile(ctx, c, cmd)
	default:
		err = ErrBadRequest
	}

	if err != nil {
		h.fail(c, cmd, err)
	}
}

func (h *Hub) fail(c *Client, cmd *Command, err error) {
	ce := classify(err)
	ev := h.logger.Debug()
	if ce.Code == ErrCodeStorageUnavailable {
		ev = h.logger.Error()
	}
	ev.Err(err).
		Str("client_id", c.ID).
		Str("user", c.Name()).
		Str("command", cmd.Kind.String()).
		Str("code", ce.Code).
		Msg("command failed")
	h.send(c, &Event{Kind: EventError, Error: ce})
}

func requireName(c *Client) (string, error) {
	name := c.Name()
	if name == "" {
		return "", ErrAuthRequired
	}
	return name, nil
}

func (h *Hub) setIdentity(c *Client, cmd *Command) error {
	name := strings.TrimSpace(cmd.User)
	if name == "" || utf8.RuneCountInString(name) > MaxUsernameLength {
		return coreError(ErrCodeValidation, fmt.Sprintf("username must be 1-%d characters", MaxUsernameLength))
	}

	switch current := c.Name(); {
	case current == name:
		return nil
	case current != "":
		return ErrAlreadyIdentified
	}

	c.setName(name)
	first := h.presence.Bind(c.ID, name)
	h.logger.Info().
		Str("client_id", c.ID).
		Str("user", name).
		Bool("first_connection", first).
		Msg("user identified")
	return nil
}

// RoomSummaries lists rooms, most recently active first, with live counts.
func (h *Hub) RoomSummaries(ctx context.Context) ([]RoomSummary, error) {
	list, err := h.rooms.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RoomSummary, 0, len(list))
	for _, r := range list {
		out = append(out, RoomSummary{
			Name:         r.Name,
			Topic:        r.Topic,
			Count:        h.members.CountFor(r.Name),
			LastActivity: r.LastActivity,
		})
	}
	return out, nil
}

func (h *Hub) listRooms(ctx context.Context, c *Client) error {
	summaries, err := h.RoomSummaries(ctx)
	if err != nil {
		return err
	}
	h.send(c, &Event{Kind: EventRoomList, Rooms: summaries})
	return nil
}

func (h *Hub) join(ctx context.Context, c *Client, cmd *Command) error {
	user, err := requireName(c)
	if err != nil {
		return err
	}
	if rooms.Normalize(cmd.Room) == "" {
		return coreError(ErrCodeValidation, "room is required")
	}
	room, err := h.rooms.Find(ctx, cmd.Room)
	if err != nil {
		return err
	}

	h.enter(ctx, c, user, room)
	h.broadcastRoomList(ctx)
	return nil
}

func (h *Hub) create(ctx context.Context, c *Client, cmd *Command) error {
	user, err := requireName(c)
	if err != nil {
		return err
	}
	room, err := h.rooms.Create(ctx, cmd.Room, cmd.Topic, user)
	if err != nil {
		return err
	}
	h.logger.Info().Str("room", room.Name).Str("user", user).Msg("room created")

	h.enter(ctx, c, user, room)
	h.broadcastRoomList(ctx)
	return nil
}

// enter moves the connection and its user into room and replays history.
func (h *Hub) enter(ctx context.Context, c *Client, user string, room *store.Room) {
	previous, count := h.members.Join(room.Name, user)
	if err := h.rooms.AddParticipant(ctx, room.Name, user); err != nil {
		h.logger.Error().Err(err).Str("room", room.Name).Str("user", user).Msg("failed to record participant")
	}

	if old := c.swapRoom(room.Name); old != room.Name {
		if old != "" {
			h.room(old).RemoveClient(c)
		}
		h.room(room.Name).AddClient(c)
	}

	if previous != "" && previous != room.Name {
		h.broadcast(previous, &Event{
			Kind:  EventUserLeft,
			Room:  previous,
			User:  user,
			Count: h.members.CountFor(previous),
		}, "")
	}

	h.send(c, &Event{Kind: EventRoomJoined, Room: room.Name, Topic: room.Topic, Count: count})

	history, err := h.messages.History(ctx, room.Name, h.historyLimit, user)
	if err != nil {
		h.fail(c, &Command{Kind: CommandJoinRoom, Room: room.Name}, err)
	} else {
		msgs := make([]Message, 0, len(history))
		for _, m := range history {
			msgs = append(msgs, messageFromStore(m))
		}
		h.send(c, &Event{Kind: EventHistory, Room: room.Name, Messages: msgs})
	}

	if previous != room.Name {
		h.broadcast(room.Name, &Event{Kind: EventUserJoined, Room: room.Name, User: user, Count: count}, c.ID)
	}

	h.logger.Info().
		Str("client_id", c.ID).
		Str("user", user).
		Str("room", room.Name).
		Int("count", count).
		Msg("joined room")
}

func (h *Hub) leave(ctx context.Context, c *Client, cmd *Command) error {
	user, err := requireName(c)
	if err != nil {
		return err
	}
	current := c.Room()
	if current == "" {
		return ErrNotInRoom
	}
	if cmd.Room != "" && rooms.Normalize(cmd.Room) != current {
		return ErrNotInRoom
	}

	c.swapRoom("")
	h.room(current).RemoveClient(c)
	h.send(c, &Event{Kind: EventRoomLeft, Room: current})

	if h.members.Leave(current, user) {
		h.broadcast(current, &Event{
			Kind:  EventUserLeft,
			Room:  current,
			User:  user,
			Count: h.members.CountFor(current),
		}, "")
		h.broadcastRoomList(ctx)
	}
	return nil
}

func (h *Hub) sendMessage(ctx context.Context, c *Client, cmd *Command) error {
	user, err := requireName(c)
	if err != nil {
		return err
	}
	roomName := c.Room()
	if roomName == "" {
		return ErrNotInRoom
	}

	var file *store.File
	if cmd.Message.File != nil {
		if h.files == nil {
			return coreError(ErrCodeFileNotFound, "attachments are not accepted")
		}
		file, err = h.files.Resolve(ctx, cmd.Message.File.URL, cmd.Message.File.Name)
		if err != nil {
			return err
		}
	}

	r := h.room(roomName)
	r.send.Lock()
	defer r.send.Unlock()

	msg, err := h.messages.Append(ctx, roomName, user, cmd.Message.Text, file)
	if err != nil {
		return err
	}
	if err := h.rooms.Touch(ctx, roomName); err != nil {
		h.logger.Error().Err(err).Str("room", roomName).Msg("failed to touch room activity")
	}

	h.broadcastTo(r, &Event{
		Kind:    EventRoomMessage,
		Room:    roomName,
		User:    user,
		Message: messageFromStore(msg),
	}, "")
	return nil
}

func (h *Hub) typing(c *Client, cmd *Command, kind EventKind) error {
	user, err := requireName(c)
	if err != nil {
		return err
	}
	room := rooms.Normalize(cmd.Room)
	if room == "" {
		room = c.Room()
	}
	if room == "" {
		return ErrNotInRoom
	}

	h.broadcast(room, &Event{Kind: kind, Room: room, User: user}, c.ID)
	return nil
}

func (h *Hub) markRead(ctx context.Context, c *Client, cmd *Command) error {
	user, err := requireName(c)
	if err != nil {
		return err
	}
	msg, added, err := h.messages.MarkRead(ctx, cmd.MessageID, user)
	if err != nil {
		return err
	}
	if !added {
		return nil
	}

	ev := &Event{
		Kind:      EventMessageRead,
		Room:      msg.RoomName,
		MessageID: msg.ID,
		ReadBy:    append([]string(nil), msg.ReadBy...),
	}
	for _, id := range h.presence.ConnectionsFor(msg.Sender) {
		if target, ok := h.clients.Load(id); ok {
			h.send(target, ev)
		}
	}
	return nil
}

func (h *Hub) deleteMessage(ctx context.Context, c *Client, cmd *Command) error {
	user, err := requireName(c)
	if err != nil {
		return err
	}

	if !cmd.ForEveryone {
		msg, err := h.messages.DeleteForSelf(ctx, cmd.MessageID, user)
		if err != nil {
			return err
		}
		h.send(c, &Event{Kind: EventMessageHidden, Room: msg.RoomName, MessageID: msg.ID})
		return nil
	}

	msg, err := h.messages.DeleteForEveryone(ctx, cmd.MessageID, user)
	if err != nil {
		return err
	}
	if msg.File != nil && !msg.File.Deleted {
		h.removeBlob(ctx, msg.File.URL)
	}
	h.broadcast(msg.RoomName, &Event{Kind: EventMessageDeleted, Room: msg.RoomName, MessageID: msg.ID}, "")
	h.logger.Info().Int64("message_id", msg.ID).Str("room", msg.RoomName).Str("user", user).Msg("message deleted for everyone")
	return nil
}

func (h *Hub) deleteFile(ctx context.Context, c *Client, cmd *Command) error {
	user, err := requireName(c)
	if err != nil {
		return err
	}
	msg, err := h.messages.DeleteFile(ctx, cmd.MessageID, user)
	if err != nil {
		return err
	}
	h.removeBlob(ctx, msg.File.URL)
	h.broadcast(msg.RoomName, &Event{Kind: EventFileDeleted, Room: msg.RoomName, MessageID: msg.ID}, "")
	return nil
}

func (h *Hub) downloadFile(ctx context.Context, c *Client, cmd *Command) error {
	if _, err := requireName(c); err != nil {
		return err
	}
	msg, err := h.messages.FileFor(ctx, cmd.MessageID)
	if err != nil {
		return err
	}
	h.send(c, &Event{Kind: EventFileReady, Room: msg.RoomName, MessageID: msg.ID, File: fileFromStore(msg.File)})
	return nil
}

func (h *Hub) removeBlob(ctx context.Context, url string) {
	if h.files == nil {
		return
	}
	if err := h.files.Remove(ctx, url); err != nil {
		h.logger.Warn().Err(err).Str("url", url).Msg("failed to remove file blob")
	}
}

// disconnect runs once the client's session has stopped.
func (h *Hub) disconnect(c *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	h.clients.Delete(c.ID)
	if room := c.swapRoom(""); room != "" {
		h.room(room).RemoveClient(c)
	}

	user, offline := h.presence.Unbind(c.ID)
	h.logger.Debug().Str("client_id", c.ID).Str("user", user).Bool("offline", offline).Msg("client disconnected")
	if !offline {
		return
	}

	if room := h.members.LeaveAll(user); room != "" {
		h.broadcast(room, &Event{
			Kind:  EventUserLeft,
			Room:  room,
			User:  user,
			Count: h.members.CountFor(room),
		}, "")
	}
	h.broadcastRoomList(ctx)
}

// room returns the subscriber list of name, creating it on first use.
func (h *Hub) room(name string) *Room {
	r, _ := h.subs.LoadOrCompute(name, func() *Room { return NewRoom(name) })
	return r
}

func (h *Hub) send(c *Client, ev *Event) {
	if !c.deliver(ev) {
		h.logger.Warn().Str("client_id", c.ID).Str("event", ev.Kind.String()).Msg("dropping event for slow client")
	}
}

func (h *Hub) broadcast(room string, ev *Event, skip string) {
	if r, ok := h.subs.Load(room); ok {
		h.broadcastTo(r, ev, skip)
	}
}

func (h *Hub) broadcastTo(r *Room, ev *Event, skip string) {
	for _, id := range r.Broadcast(ev, skip) {
		h.logger.Warn().Str("client_id", id).Str("room", r.Name).Str("event", ev.Kind.String()).Msg("dropping event for slow client")
	}
}

func (h *Hub) broadcastRoomList(ctx context.Context) {
	summaries, err := h.RoomSummaries(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to build room list")
		return
	}
	ev := &Event{Kind: EventRoomList, Rooms: summaries}
	h.clients.Range(func(_ string, c *Client) bool {
		h.send(c, ev)
		return true
	})
}

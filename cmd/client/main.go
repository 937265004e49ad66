package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/roomchat/internal/proto"
)

type connFlags struct {
	addr  string
	user  string
	token string
	room  string
}

func main() {
	root := &cobra.Command{
		Use:           "roomchat-client",
		Short:         "Command line client for the roomchat WebSocket protocol",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var flags connFlags
	root.PersistentFlags().StringVar(&flags.addr, "addr", "ws://localhost:8080/ws", "WebSocket address")
	root.PersistentFlags().StringVar(&flags.user, "user", "cli-user", "username to announce with hello")
	root.PersistentFlags().StringVar(&flags.token, "token", "", "JWT from /api/login, overrides --user")
	root.PersistentFlags().StringVar(&flags.room, "room", "general", "room to join")

	root.AddCommand(newSmokeCmd(&flags), newChatCmd(&flags))

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "roomchat-client: %v\n", err)
		os.Exit(1)
	}
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func dialAndJoin(ctx context.Context, flags *connFlags) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, flags.addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	hello := proto.HelloData{User: flags.user, Token: flags.token, Protocol: proto.ProtocolVersion}
	if err := send(ctx, conn, proto.InboundTypeHello, hello); err != nil {
		conn.CloseNow()
		return nil, err
	}
	if err := send(ctx, conn, proto.InboundTypeJoin, proto.JoinData{Room: flags.room}); err != nil {
		conn.CloseNow()
		return nil, err
	}
	return conn, nil
}

func newSmokeCmd(flags *connFlags) *cobra.Command {
	var (
		text    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Join a room, send one message and wait for its echo",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			conn, err := dialAndJoin(ctx, flags)
			if err != nil {
				return err
			}
			defer conn.Close(websocket.StatusNormalClosure, "bye")

			if err := send(ctx, conn, proto.InboundTypeMsg, proto.MsgData{Text: text}); err != nil {
				return err
			}

			for {
				var f frame
				if err := wsjson.Read(ctx, conn, &f); err != nil {
					return fmt.Errorf("read: %w", err)
				}
				if f.Type == proto.OutboundTypeError && f.Error != nil {
					return fmt.Errorf("server error %s: %s", f.Error.Code, f.Error.Msg)
				}
				fmt.Printf("received event=%s\n", f.Event)
				if f.Event != "message" {
					continue
				}
				var msg proto.EventMessage
				if err := json.Unmarshal(f.Data, &msg); err != nil {
					return fmt.Errorf("decode message: %w", err)
				}
				if msg.Text == strings.TrimSpace(text) {
					fmt.Printf("ok: id=%d room=%s user=%s\n", msg.ID, msg.Room, msg.User)
					return nil
				}
			}
		},
	}

	cmd.Flags().StringVar(&text, "text", "hello from smoke test", "message text to send")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "total timeout for the run")
	return cmd
}

func newChatCmd(flags *connFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat. Lines starting with / are commands: /join, /create, /leave, /rooms, /read, /delete",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			conn, err := dialAndJoin(ctx, flags)
			if err != nil {
				return err
			}
			defer conn.Close(websocket.StatusNormalClosure, "bye")

			fmt.Printf("Connected to %s as %s. Ctrl+C to exit.\n", flags.addr, flags.user)

			go func() {
				defer cancel()
				printLoop(ctx, conn)
			}()
			return inputLoop(ctx, conn)
		},
	}
}

func printLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			fmt.Fprintf(os.Stderr, "read error: %v\n", err)
			return
		}
		fmt.Println(describe(f))
	}
}

func describe(f frame) string {
	if f.Type == proto.OutboundTypeError && f.Error != nil {
		return fmt.Sprintf("! %s: %s", f.Error.Code, f.Error.Msg)
	}

	switch f.Event {
	case "message":
		var msg proto.EventMessage
		if json.Unmarshal(f.Data, &msg) == nil {
			line := fmt.Sprintf("[%s #%d] %s: %s", msg.Room, msg.ID, msg.User, msg.Text)
			if msg.File != nil {
				line += fmt.Sprintf(" (file %s %s)", msg.File.Name, msg.File.URL)
			}
			return line
		}
	case "history":
		var h proto.EventHistory
		if json.Unmarshal(f.Data, &h) == nil {
			lines := make([]string, 0, len(h.Messages)+1)
			lines = append(lines, fmt.Sprintf("-- %d earlier messages in %s --", len(h.Messages), h.Room))
			for _, msg := range h.Messages {
				lines = append(lines, fmt.Sprintf("[%s #%d] %s: %s", msg.Room, msg.ID, msg.User, msg.Text))
			}
			return strings.Join(lines, "\n")
		}
	case "user_joined", "user_left":
		var ev proto.EventUserJoined
		if json.Unmarshal(f.Data, &ev) == nil {
			verb := "joined"
			if f.Event == "user_left" {
				verb = "left"
			}
			return fmt.Sprintf("[%s] %s %s (%d here)", ev.Room, ev.User, verb, ev.Count)
		}
	case "room_list":
		var list proto.EventRoomList
		if json.Unmarshal(f.Data, &list) == nil {
			names := make([]string, 0, len(list.Rooms))
			for _, r := range list.Rooms {
				names = append(names, fmt.Sprintf("%s(%d)", r.Name, r.Count))
			}
			return "rooms: " + strings.Join(names, " ")
		}
	}
	return fmt.Sprintf("event=%s data=%s", f.Event, f.Data)
}

func inputLoop(ctx context.Context, conn *websocket.Conn) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			typ, data, err := parseLine(line)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			if err := send(ctx, conn, typ, data); err != nil {
				return err
			}
		}
	}
}

func parseLine(line string) (string, any, error) {
	if !strings.HasPrefix(line, "/") {
		return proto.InboundTypeMsg, proto.MsgData{Text: line}, nil
	}

	cmd, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "join":
		return proto.InboundTypeJoin, proto.JoinData{Room: arg}, nil
	case "create":
		name, topic, _ := strings.Cut(arg, " ")
		return proto.InboundTypeCreateRoom, proto.CreateRoomData{Room: name, Topic: strings.TrimSpace(topic)}, nil
	case "leave":
		return proto.InboundTypeLeave, proto.JoinData{Room: arg}, nil
	case "rooms":
		return proto.InboundTypeListRooms, struct{}{}, nil
	case "read", "delete":
		var id int64
		if _, err := fmt.Sscan(arg, &id); err != nil {
			return "", nil, fmt.Errorf("/%s needs a message id", cmd)
		}
		if cmd == "read" {
			return proto.InboundTypeMarkRead, proto.MessageRefData{MessageID: id}, nil
		}
		return proto.InboundTypeDeleteMsg, proto.DeleteMsgData{MessageID: id, ForEveryone: true}, nil
	default:
		return "", nil, fmt.Errorf("unknown command /%s", cmd)
	}
}

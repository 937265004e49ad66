package http

import (
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/auth"
	"github.com/vovakirdan/roomchat/internal/blob"
	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/proto"
	"github.com/vovakirdan/roomchat/internal/service/files"
	"github.com/vovakirdan/roomchat/internal/service/messages"
	"github.com/vovakirdan/roomchat/internal/service/rooms"
	"github.com/vovakirdan/roomchat/internal/store/sqlite"
)

const testBaseURL = "http://chat.test"

type testEnv struct {
	ts      *httptest.Server
	handler stdhttp.Handler
	cfg     config.Config
	auth    *auth.Service
	rooms   *rooms.Service
	msgs    *messages.Service
	hub     *core.Hub
}

// newTestEnv serves the full router over an in-memory store seeded with
// general and random. mutate may adjust the config before the server is built.
func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.JWTSecret = "test-secret"
	cfg.PublicBaseURL = testBaseURL
	cfg.MaxUploadBytes = 1 << 20
	if mutate != nil {
		mutate(&cfg)
	}

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	disk, err := blob.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}

	roomSvc := rooms.New(st)
	if _, err := roomSvc.Seed(context.Background(), []rooms.Seed{
		{Name: "general", Topic: "General Chat"},
		{Name: "random", Topic: "Anything goes"},
	}); err != nil {
		t.Fatalf("seed rooms: %v", err)
	}
	msgSvc := messages.New(st)
	fileSvc := files.New(disk, cfg.PublicBaseURL, cfg.MaxUploadBytes)
	authSvc := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      time.Hour,
	})

	logger := zerolog.Nop()
	hub := core.NewHub(roomSvc, msgSvc, fileSvc, &logger)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(stopped)
	}()

	server := NewServer(Deps{
		Hub:      hub,
		Auth:     authSvc,
		Rooms:    roomSvc,
		Messages: msgSvc,
		Files:    fileSvc,
	}, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)

	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-stopped
		_ = st.Close()
	})

	return &testEnv{
		ts:      ts,
		handler: server.Handler,
		cfg:     cfg,
		auth:    authSvc,
		rooms:   roomSvc,
		msgs:    msgSvc,
		hub:     hub,
	}
}

type wsClient struct {
	t    *testing.T
	ctx  context.Context
	conn *websocket.Conn
}

func (e *testEnv) dial(t *testing.T) *wsClient {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })

	return &wsClient{t: t, ctx: ctx, conn: conn}
}

func (c *wsClient) send(typ string, data any) {
	c.t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		c.t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := wsjson.Write(c.ctx, c.conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		c.t.Fatalf("send %s: %v", typ, err)
	}
}

func (c *wsClient) hello(user string) {
	c.t.Helper()
	c.send(proto.InboundTypeHello, proto.HelloData{User: user, Protocol: proto.ProtocolVersion})
}

func (c *wsClient) join(room string) {
	c.t.Helper()
	c.send(proto.InboundTypeJoin, proto.JoinData{Room: room})
	c.expectEvent("room_joined", nil)
}

type rawOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func (c *wsClient) next() rawOutbound {
	c.t.Helper()

	var out rawOutbound
	if err := wsjson.Read(c.ctx, c.conn, &out); err != nil {
		c.t.Fatalf("read outbound: %v", err)
	}
	return out
}

// expectEvent skips unrelated frames until the named event arrives and
// decodes its data into v when v is non-nil.
func (c *wsClient) expectEvent(event string, v any) {
	c.t.Helper()

	for {
		out := c.next()
		if out.Type != proto.OutboundTypeEvent || out.Event != event {
			continue
		}
		if v != nil {
			if err := json.Unmarshal(out.Data, v); err != nil {
				c.t.Fatalf("decode %s: %v", event, err)
			}
		}
		return
	}
}

// expectError skips events until an error frame arrives and checks its code.
func (c *wsClient) expectError(code string) {
	c.t.Helper()

	for {
		out := c.next()
		if out.Type != proto.OutboundTypeError {
			continue
		}
		if out.Error == nil || out.Error.Code != code {
			c.t.Fatalf("expected error %q, got %+v", code, out.Error)
		}
		return
	}
}

// expectNoFrame fails if anything arrives within wait. A timed out read
// closes the connection, so this must be the last call on c.
func (c *wsClient) expectNoFrame(wait time.Duration) {
	c.t.Helper()

	ctx, cancel := context.WithTimeout(c.ctx, wait)
	defer cancel()

	var out rawOutbound
	if err := wsjson.Read(ctx, c.conn, &out); err == nil {
		c.t.Fatalf("unexpected frame %+v", out)
	}
}

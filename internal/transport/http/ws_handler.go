package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/auth"
	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub  *core.Hub
	auth *auth.Service
	cfg  *config.Config
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler. authService may be nil when
// tokens are never checked.
func NewWSHandler(hub *core.Hub, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, auth: authService, cfg: cfg, log: logger}
}

func (h *WSHandler) acceptOptions() *websocket.AcceptOptions {
	if len(h.cfg.AllowedOrigins) > 0 {
		return &websocket.AcceptOptions{OriginPatterns: h.cfg.AllowedOrigins}
	}
	return &websocket.AcceptOptions{InsecureSkipVerify: true}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, h.acceptOptions())
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()

	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	client := core.NewClient(uuid.NewString())
	if err := h.hub.RegisterClient(client); err != nil {
		conn.Close(websocket.StatusTryAgainLater, "server is shutting down")
		return
	}
	defer h.hub.UnregisterClient(client)

	logger := h.log.With().Str("client_id", client.ID).Logger()
	logger.Debug().Str("remote_addr", r.RemoteAddr).Msg("ws connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	limiter := newRateLimiter(h.cfg.RateLimitPerMinute)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, limiter, &logger)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client, &logger)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = "connection error"
			logger.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	logger.Debug().Str("user", client.Name()).Msg("ws disconnected")
	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, limiter *rateLimiter, logger *zerolog.Logger) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			if writeErr := wsjson.Write(ctx, conn, errorOutbound(badRequest("malformed envelope"))); writeErr != nil {
				return writeErr
			}
			continue
		}

		var (
			cmd  *core.Command
			perr *proto.Error
		)
		switch inbound.Type {
		case proto.InboundTypeHello:
			cmd, perr = h.hello(inbound)
		case proto.InboundTypeMsg:
			if !limiter.allow() {
				perr = &proto.Error{Code: core.ErrCodeRateLimited, Msg: "too many messages, slow down"}
				break
			}
			cmd, perr = inboundToCommand(inbound)
		default:
			cmd, perr = inboundToCommand(inbound)
		}

		if perr != nil {
			logger.Debug().Str("type", inbound.Type).Str("code", perr.Code).Msg("inbound rejected")
			if writeErr := wsjson.Write(ctx, conn, errorOutbound(perr)); writeErr != nil {
				return writeErr
			}
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// hello validates protocol version and, when present or required, the token.
// A valid token overrides the name the client asked for.
func (h *WSHandler) hello(inbound proto.Inbound) (*core.Command, *proto.Error) {
	var hello proto.HelloData
	if perr := decode(inbound.Data, &hello); perr != nil {
		return nil, perr
	}
	if hello.Protocol != 0 && hello.Protocol != proto.ProtocolVersion {
		return nil, &proto.Error{Code: core.ErrCodeUnsupportedVersion, Msg: "unsupported protocol version"}
	}

	user := hello.User
	if hello.Token == "" && h.cfg.JWTRequired {
		return nil, &proto.Error{Code: core.ErrCodeUnauthorized, Msg: "token is required"}
	}
	if hello.Token != "" {
		if h.auth == nil {
			return nil, &proto.Error{Code: core.ErrCodeUnauthorized, Msg: "token authentication is disabled"}
		}
		claims, err := h.auth.ValidateToken(hello.Token)
		if err != nil {
			h.log.Debug().Err(err).Msg("hello with invalid token")
			return nil, &proto.Error{Code: core.ErrCodeUnauthorized, Msg: "invalid token"}
		}
		user = claims.Username
	}

	return &core.Command{Kind: core.CommandSetIdentity, User: user}, nil
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, logger *zerolog.Logger) error {
	for {
		select {
		case event := <-client.Events:
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				logger.Debug().Err(err).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

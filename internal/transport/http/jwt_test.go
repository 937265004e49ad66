package http

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/proto"
)

func makeJWT(secret, aud, iss, name string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":      name,
		"username": name,
		"exp":      time.Now().Add(ttl).Unix(),
	}
	if aud != "" {
		claims["aud"] = aud
	}
	if iss != "" {
		claims["iss"] = iss
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func TestWebSocketJWTOverridesHelloName(t *testing.T) {
	env := newTestEnv(t, nil)

	session, err := env.auth.Register(context.Background(), "alice", "password123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	c := env.dial(t)
	c.send(proto.InboundTypeHello, proto.HelloData{User: "mallory", Token: session.Token, Protocol: proto.ProtocolVersion})
	c.join("general")
	c.send(proto.InboundTypeMsg, proto.MsgData{Text: "it's me"})

	var msg proto.EventMessage
	c.expectEvent("message", &msg)
	if msg.User != "alice" {
		t.Fatalf("expected token identity alice, got %q", msg.User)
	}
}

func TestWebSocketJWTRequired(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.JWTRequired = true
	})

	c := env.dial(t)
	c.hello("bob")
	c.expectError(core.ErrCodeUnauthorized)

	c.send(proto.InboundTypeJoin, proto.JoinData{Room: "general"})
	c.expectError(core.ErrCodeAuthRequired)

	token, err := makeJWT(env.cfg.JWTSecret, env.cfg.JWTAudience, env.cfg.JWTIssuer, "bob", time.Minute)
	if err != nil {
		t.Fatalf("make jwt: %v", err)
	}
	c.send(proto.InboundTypeHello, proto.HelloData{User: "bob", Token: token})
	c.join("general")
}

func TestWebSocketJWTRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t, nil)

	wrongSecret, _ := makeJWT("other-secret", env.cfg.JWTAudience, env.cfg.JWTIssuer, "eve", time.Minute)
	wrongAudience, _ := makeJWT(env.cfg.JWTSecret, "someone-else", env.cfg.JWTIssuer, "eve", time.Minute)
	expired, _ := makeJWT(env.cfg.JWTSecret, env.cfg.JWTAudience, env.cfg.JWTIssuer, "eve", -time.Minute)

	c := env.dial(t)
	for _, token := range []string{wrongSecret, wrongAudience, expired, "garbage"} {
		c.send(proto.InboundTypeHello, proto.HelloData{User: "eve", Token: token})
		c.expectError(core.ErrCodeUnauthorized)
	}
}

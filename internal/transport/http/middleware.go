package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/auth"
)

// Gin context keys filled in for requests that carry a valid session token.
const (
	ContextKeyUserID   = "user_id"
	ContextKeyUsername = "username"
)

var (
	errNoSession  = errors.New("missing authorization header")
	errBadSession = errors.New(`authorization header must be "Bearer <token>"`)
)

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errNoSession
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", errBadSession
	}
	return token, nil
}

// AuthMiddleware rejects requests without a valid session token.
func AuthMiddleware(authService *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return sessionMiddleware(authService, logger, true)
}

// OptionalAuthMiddleware lets anonymous requests through but still rejects
// a token that does not validate.
func OptionalAuthMiddleware(authService *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return sessionMiddleware(authService, logger, false)
}

func sessionMiddleware(authService *auth.Service, logger *zerolog.Logger, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if errors.Is(err, errNoSession) && !required {
			c.Next()
			return
		}
		if err != nil {
			logger.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("request without session")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			logger.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("rejected session token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyUsername, claims.Username)
		c.Next()
	}
}

// LoggerMiddleware writes one line per request. Server errors log at error,
// health probes at debug.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			ev = logger.Error()
		case c.Request.URL.Path == "/health":
			ev = logger.Debug()
		default:
			ev = logger.Info()
		}
		if user := c.GetString(ContextKeyUsername); user != "" {
			ev = ev.Str("user", user)
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}

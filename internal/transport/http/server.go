package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/auth"
	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/service/files"
	"github.com/vovakirdan/roomchat/internal/service/messages"
	"github.com/vovakirdan/roomchat/internal/service/rooms"
)

// Deps are the services exposed over HTTP and WebSocket.
type Deps struct {
	Hub      *core.Hub
	Auth     *auth.Service
	Rooms    *rooms.Service
	Messages *messages.Service
	Files    *files.Service
}

// NewServer builds the HTTP server: the /ws endpoint on a plain mux, the REST
// API on gin behind it.
func NewServer(deps Deps, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	if cfg.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = cfg.MaxUploadBytes
	}

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	apiHandlers := NewAPIHandlers(deps.Auth, logger)
	roomHandlers := NewRoomHandlers(deps.Hub, deps.Rooms, deps.Messages, logger)
	userHandlers := NewUserHandlers(deps.Hub, deps.Rooms, logger)
	fileHandlers := NewFileHandlers(deps.Files, logger)

	requireAuth := AuthMiddleware(deps.Auth, logger)

	api := router.Group("/api")
	{
		api.POST("/register", apiHandlers.Register)
		api.POST("/login", apiHandlers.Login)
		api.GET("/rooms", roomHandlers.ListRooms)
		api.GET("/rooms/:name/messages", requireAuth, roomHandlers.ListMessages)
		api.GET("/rooms/:name/members", userHandlers.RoomMembers)

		uploadAuth := OptionalAuthMiddleware(deps.Auth, logger)
		if cfg.JWTRequired {
			uploadAuth = requireAuth
		}
		api.POST("/upload", uploadAuth, fileHandlers.Upload)
	}
	router.GET("/files/:key", fileHandlers.Download)

	// gin refuses to hijack once a status is set, and Accept writes 101 first,
	// so the upgrade must get the raw ResponseWriter.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(deps.Hub, deps.Auth, cfg, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

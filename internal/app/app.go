package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/roomchat/internal/auth"
	"github.com/vovakirdan/roomchat/internal/blob"
	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/service/files"
	"github.com/vovakirdan/roomchat/internal/service/messages"
	"github.com/vovakirdan/roomchat/internal/service/rooms"
	"github.com/vovakirdan/roomchat/internal/store"
	"github.com/vovakirdan/roomchat/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/roomchat/internal/transport/http"
)

const tokenTTL = 24 * time.Hour

// App wires together storage, core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	blobs           blob.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init blob store: %w", err)
	}
	logger.Info().Str("backend", cfg.BlobBackend).Msg("blob store initialized")

	roomService := rooms.New(st)
	created, err := roomService.Seed(ctx, cfg.DefaultRooms)
	if err != nil {
		_ = blobs.Close()
		_ = st.Close()
		return nil, fmt.Errorf("seed rooms: %w", err)
	}
	if created > 0 {
		logger.Info().Int("rooms", created).Msg("default rooms created")
	}

	messageService := messages.New(st)
	fileService := files.New(blobs, cfg.PublicBaseURL, cfg.MaxUploadBytes)
	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      tokenTTL,
	})

	hub := core.NewHub(roomService, messageService, fileService, logger, core.WithHistoryLimit(cfg.HistoryLimit))
	server := transporthttp.NewServer(transporthttp.Deps{
		Hub:      hub,
		Auth:     authService,
		Rooms:    roomService,
		Messages: messageService,
		Files:    fileService,
	}, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		blobs:           blobs,
		log:             logger,
	}, nil
}

func openBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	switch strings.ToLower(cfg.BlobBackend) {
	case config.BlobBackendNATS:
		return blob.NewNATSStore(ctx, cfg.NATSURL, cfg.NATSBucket)
	default:
		return blob.NewDiskStore(cfg.UploadDir)
	}
}

// Run starts the hub and the HTTP server and blocks until ctx is cancelled
// or either of them fails. The server is drained before the hub stops.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()

	// Hijacked WebSocket connections outlive Shutdown; they end when connCtx does.
	connCtx, closeConns := context.WithCancel(context.Background())
	defer closeConns()
	a.server.BaseContext = func(net.Listener) context.Context { return connCtx }

	g, gctx := errgroup.WithContext(ctx)

	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		if err := a.hub.Run(hubCtx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error().Err(err).Msg("hub stopped with error")
		}
	}()

	g.Go(func() error {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		err := a.server.Shutdown(shutdownCtx)
		closeConns()

		stopHub()
		<-hubDone
		a.log.Info().Msg("hub stopped")
		return err
	})

	return g.Wait()
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.blobs != nil {
		if err := a.blobs.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close blob store")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}

package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/pairchat/internal/auth"
	"github.com/vovakirdan/pairchat/internal/config"
	"github.com/vovakirdan/pairchat/internal/core"
	"github.com/vovakirdan/pairchat/internal/media"
	"github.com/vovakirdan/pairchat/internal/store"
	"github.com/vovakirdan/pairchat/internal/store/badger"
	"github.com/vovakirdan/pairchat/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/pairchat/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	users           *sqlite.SQLiteStore
	messages        store.MessageStore
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	messages, err := openMessageStore(cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	storage, err := media.NewStorage(cfg.MediaDir, cfg.MediaURLPrefix, cfg.MaxImageBytes, logger)
	if err != nil {
		closeStores(st, messages, logger)
		return nil, fmt.Errorf("init media: %w", err)
	}

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	})

	hubLogger := logger.With().Str("component", "presence").Logger()
	hub := core.NewHub(&hubLogger)

	coreLogger := logger.With().Str("component", "core").Logger()
	server := transporthttp.NewServer(transporthttp.Services{
		Auth:          authService,
		Hub:           hub,
		Dispatcher:    core.NewDispatcher(messages, st, storage, hub, &coreLogger),
		Conversations: core.NewConversations(st, messages, hub, &coreLogger),
		MediaDir:      storage.Dir(),
	}, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		users:           st,
		messages:        messages,
		log:             logger,
	}, nil
}

// openMessageStore returns the SQLite store itself or a separate Badger store.
func openMessageStore(cfg *config.Config, st *sqlite.SQLiteStore, logger *zerolog.Logger) (store.MessageStore, error) {
	switch cfg.MessageBackend {
	case config.BackendBadger:
		ms, err := badger.Open(cfg.BadgerPath, logger)
		if err != nil {
			return nil, fmt.Errorf("init badger message store: %w", err)
		}
		logger.Info().Str("path", cfg.BadgerPath).Msg("badger message store opened")
		return ms, nil
	default:
		return st, nil
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go a.hub.Run(hubCtx)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		stopHub()
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the stores.
func (a *App) cleanup() {
	closeStores(a.users, a.messages, a.log)
}

func closeStores(users *sqlite.SQLiteStore, messages store.MessageStore, logger *zerolog.Logger) {
	if messages != nil && messages != store.MessageStore(users) {
		if err := messages.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close message store")
		}
	}
	if users != nil {
		if err := users.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close store")
		} else {
			logger.Info().Msg("store closed")
		}
	}
}

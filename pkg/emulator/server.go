package emulator

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"swisstransfer/pkg/log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const shutdownTimeout = 10

// Options configures the emulator.
type Options struct {
	StorageDir string
	DBPath     string
	// UploadHost is returned on registration. The request host is used when empty.
	UploadHost string
	// Now is the emulator clock. Defaults to time.Now.
	Now func() time.Time
}

// Server emulates the file-sharing service API over a local SQLite store.
type Server struct {
	store      *Store
	parts      partStore
	uploadHost string
	now        func() time.Time
	echo       *echo.Echo
}

// New opens the store and registers the API routes.
func New(opts Options) (*Server, error) {
	if err := os.MkdirAll(opts.StorageDir, dirPerm); err != nil {
		return nil, err
	}

	store, err := NewStore(opts.DBPath)
	if err != nil {
		return nil, err
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	srv := &Server{
		store:      store,
		parts:      partStore{dir: opts.StorageDir},
		uploadHost: opts.UploadHost,
		now:        func() time.Time { return opts.Now().UTC() },
		echo:       echo.New(),
	}
	srv.setupRoutes()
	return srv, nil
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until SIGINT or SIGTERM.
func (s *Server) Start(addr string) error {
	go func() {
		log.Info().
			Str("addr", addr).
			Str("storage_dir", s.parts.dir).
			Str("upload_host", s.uploadHost).
			Msg("Starting emulator")

		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server startup failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return s.Shutdown()
}

// Shutdown stops the HTTP server and closes the store.
func (s *Server) Shutdown() error {
	log.Info().Msg("Shutting down emulator...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout*time.Second)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
		return err
	}

	if err := s.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close store")
		return err
	}

	log.Info().Msg("Emulator stopped")
	return nil
}

// Close releases the store.
func (s *Server) Close() error {
	return s.store.Close()
}

func (s *Server) setupRoutes() {
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} ${status} ${method} ${path} (${latency_human})\n",
	}))
	s.echo.Use(middleware.Recover())

	api := s.echo.Group("/api")
	api.POST("/containers", s.createContainer)
	api.POST("/uploadChunk/:container/:file/:index/:last", s.uploadChunk)
	api.POST("/uploadComplete", s.uploadComplete)
	api.POST("/isPasswordValid", s.isPasswordValid)
	api.POST("/generateDownloadToken", s.generateDownloadToken)
	api.GET("/download/:link/:file", s.download)
}

// fail maps store errors to API statuses.
func (s *Server) fail(ctx echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrContainerNotFound), errors.Is(err, ErrFileNotFound), errors.Is(err, ErrLinkNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrWrongPassword), errors.Is(err, ErrInvalidToken):
		status = http.StatusUnauthorized
	case errors.Is(err, ErrQuotaExceeded):
		status = http.StatusForbidden
	case errors.Is(err, ErrLinkExpired):
		status = http.StatusGone
	case errors.Is(err, ErrContainerComplete), errors.Is(err, ErrNothingReceived):
		status = http.StatusConflict
	case errors.Is(err, ErrInvalidRequest):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", ctx.Path()).Msg("Request failed")
		return ctx.JSON(status, map[string]string{"error": "internal error"})
	}
	log.Debug().Err(err).Str("path", ctx.Path()).Int("status", status).Msg("Request rejected")
	return ctx.JSON(status, map[string]string{"error": err.Error()})
}

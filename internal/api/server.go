// Package api serves the boardsync HTTP and websocket surface.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/boardsync/internal/auth"
	"github.com/zulandar/boardsync/internal/broadcast"
	"github.com/zulandar/boardsync/internal/cache"
	"github.com/zulandar/boardsync/internal/realtime"
	"github.com/zulandar/boardsync/internal/reorder"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// Options holds the collaborators of a Server.
type Options struct {
	Executor *reorder.Executor
	Auth     auth.Resolver
	Hub      *realtime.Hub
	Cache    cache.Cache
	CacheTTL time.Duration
	Logger   *slog.Logger
	Tracer   trace.TracerProvider
	Service  string
}

// Server routes requests to the board, reorder and realtime packages.
type Server struct {
	db       *gorm.DB
	exec     *reorder.Executor
	auth     auth.Resolver
	hub      *realtime.Hub
	bc       *broadcast.Broadcaster
	cache    cache.Cache
	cacheTTL time.Duration
	log      *slog.Logger
	router   *gin.Engine
}

// New validates opts and builds the router.
func New(opts Options) (*Server, error) {
	if opts.Executor == nil {
		return nil, errors.New("api: executor is required")
	}
	if opts.Auth == nil {
		return nil, errors.New("api: auth resolver is required")
	}
	if opts.Hub == nil {
		return nil, errors.New("api: hub is required")
	}
	if opts.Cache == nil {
		opts.Cache = cache.None{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Service == "" {
		opts.Service = "boardsync"
	}

	s := &Server{
		db:       opts.Executor.DB(),
		exec:     opts.Executor,
		auth:     opts.Auth,
		hub:      opts.Hub,
		bc:       opts.Hub.Broadcaster(),
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		log:      opts.Logger,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	s.registerRoutes(router, opts.Tracer, opts.Service)
	s.router = router
	return s, nil
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on port until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, port int, out io.Writer) error {
	if port <= 0 {
		port = 8080
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("http shutdown", slog.String("error", err.Error()))
		}
	}()

	if out != nil {
		fmt.Fprintf(out, "boardsync listening on http://localhost:%d\n", port)
	}

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

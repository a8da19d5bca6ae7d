package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/boardsync/internal/auth"
	"github.com/zulandar/boardsync/internal/cache"
	"github.com/zulandar/boardsync/internal/logging"
	"github.com/zulandar/boardsync/internal/reorder"
	"github.com/zulandar/boardsync/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// registerRoutes sets up every route on the Gin router.
func (s *Server) registerRoutes(router *gin.Engine, tp trace.TracerProvider, service string) {
	router.Use(telemetry.Middleware(tp, service), s.requestLogger())

	router.GET("/healthz", s.handleHealth)
	router.GET("/ws", auth.Middleware(s.auth), s.handleWebsocket)

	api := router.Group("/api", auth.Middleware(s.auth))
	cached := cache.Middleware(s.cache, s.cacheTTL)

	// Moves.
	api.POST("/cards/move", s.handleMove(reorder.KindCard))
	api.POST("/lists/move", s.handleMove(reorder.KindList))
	api.POST("/boards/move", s.handleMove(reorder.KindBoard))

	// Projects.
	api.GET("/projects", cached, s.handleListProjects)
	api.POST("/projects", s.handleCreateProject)
	api.GET("/projects/:id/boards", s.handleListBoards)
	api.POST("/projects/:id/boards", s.handleCreateBoard)

	// Boards. Board reads are order-sensitive and never cached, and neither
	// is the board listing above.
	api.GET("/boards/:id", s.handleGetBoard)
	api.DELETE("/boards/:id", s.handleDeleteBoard)
	api.POST("/boards/:id/lists", s.handleCreateList)

	// Lists.
	api.PATCH("/lists/:id", s.handleRenameList)
	api.DELETE("/lists/:id", s.handleDeleteList)
	api.POST("/lists/:id/cards", s.handleCreateCard)

	// Cards.
	api.GET("/cards/:id", cached, s.handleGetCard)
	api.PATCH("/cards/:id", s.handleUpdateCard)
	api.DELETE("/cards/:id", s.handleDeleteCard)
}

// requestLogger attaches a request-scoped logger to the context and logs
// each completed request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		log := s.log.With(
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
		)
		c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), log))
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		log.Log(c.Request.Context(), level, "request",
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		logging.FromContext(c.Request.Context()).Warn("health check failed", logging.Err(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleWebsocket(c *gin.Context) {
	id, _ := auth.FromContext(c)
	s.hub.Serve(c.Writer, c.Request, id)
}

// paramID parses the :id path parameter, answering 400 when malformed.
func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

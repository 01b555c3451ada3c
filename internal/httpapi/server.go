package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"shotdeck/internal/config"
	"shotdeck/internal/events"
	"shotdeck/internal/logging"
	"shotdeck/internal/media"
	"shotdeck/internal/prompts"
	"shotdeck/internal/studio"
)

// StatusFunc reports runtime diagnostics for /api/status.
type StatusFunc func(ctx context.Context) any

// Deps are the services the API serves.
type Deps struct {
	Studio  *studio.Service
	Prompts *prompts.Service
	Hub     *events.Hub
	Media   *media.Store
	Status  StatusFunc
	Logger  *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	cfg      *config.Config
	studio   *studio.Service
	prompts  *prompts.Service
	hub      *events.Hub
	media    *media.Store
	status   StatusFunc
	logger   *slog.Logger
	auth     *authenticator
	upgrader websocket.Upgrader
	engine   *gin.Engine

	listener net.Listener
	server   *http.Server
}

// New builds the router. It does not listen.
func New(cfg *config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if deps.Hub == nil {
		deps.Hub = events.NewHub(0)
	}
	s := &Server{
		cfg:     cfg,
		studio:  deps.Studio,
		prompts: deps.Prompts,
		hub:     deps.Hub,
		media:   deps.Media,
		status:  deps.Status,
		logger:  logging.NewComponentLogger(logger, "api-server"),
		auth:    newAuthenticator(cfg.Server),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestContext(), s.accessLog(), s.cors())
	s.routes(engine)
	s.engine = engine
	return s
}

// Handler returns the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured bind address.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.cfg.Server.Bind)
	if bind == "" {
		return errors.New("server bind address not configured")
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      pollMaxWait + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) routes(engine *gin.Engine) {
	if s.media != nil {
		engine.Static(s.media.Prefix(), s.media.Root())
	}

	api := engine.Group("/api")
	api.GET("/health", s.handleHealth)

	authed := api.Group("", s.authenticate())
	authed.GET("/status", s.handleStatus)

	authed.GET("/events", s.handleEventsSocket)
	authed.GET("/events/poll", s.handleEventsPoll)

	authed.GET("/projects", s.listProjects)
	authed.POST("/projects", s.createProject)
	authed.GET("/projects/:projectId", s.getProject)
	authed.PATCH("/projects/:projectId", s.updateProject)
	authed.DELETE("/projects/:projectId", s.deleteProject)
	authed.GET("/projects/:projectId/shots", s.listShots)
	authed.GET("/projects/:projectId/generations", s.listGenerations)
	authed.GET("/projects/:projectId/tasks", s.listTasks)
	authed.GET("/projects/:projectId/tasks/counts", s.taskCounts)
	authed.POST("/projects/:projectId/tasks/cancel-pending", s.cancelPendingTasks)

	authed.POST("/shots", s.createShot)
	authed.GET("/shots/:shotId", s.getShot)
	authed.PATCH("/shots/:shotId", s.renameShot)
	authed.DELETE("/shots/:shotId", s.deleteShot)
	authed.POST("/shots/:shotId/generations", s.addShotGeneration)
	authed.DELETE("/shots/:shotId/generations/:entryId", s.removeShotGeneration)
	authed.PUT("/shots/:shotId/order", s.reorderShot)
	authed.POST("/shots/:shotId/duplicate", s.duplicateShot)

	authed.POST("/generations", s.createGeneration)
	authed.GET("/generations/:generationId", s.getGeneration)
	authed.DELETE("/generations/:generationId", s.deleteGeneration)

	authed.POST("/tasks", s.createTask)
	authed.GET("/tasks/:taskId", s.getTask)
	authed.POST("/tasks/:taskId/cancel", s.cancelTask)
	authed.POST("/tasks/:taskId/retry", s.retryTask)

	authed.GET("/workspace", s.getWorkspace)
	authed.PUT("/workspace/project", s.selectProject)
	authed.PUT("/workspace/shot", s.setCurrentShot)
	authed.POST("/workspace/panes/:pane", s.setPane)

	authed.GET("/apikeys", s.listAPIKeys)
	authed.PUT("/apikeys/:provider", s.setAPIKey)
	authed.DELETE("/apikeys/:provider", s.deleteAPIKey)

	authed.POST("/prompts/generate", s.generatePrompts)
	authed.POST("/prompts/edit", s.editPrompt)
	authed.POST("/prompts/summarize", s.summarizePrompt)
}

// Package webui exposes the chat controller to local frontends over HTTP
// and WebSocket: session CRUD, agent roster, message submission, and a
// per-session push stream relaying task and title updates in the backend's
// frame format.
package webui

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"hive/internal/chat"
	"hive/internal/logging"
	"hive/internal/types"
)

// ServerConfig configures the gateway listener.
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	EnableCORS   bool          `json:"enable_cors"`
	Debug        bool          `json:"debug"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// DefaultServerConfig returns the default gateway configuration.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:         "localhost",
		Port:         8090,
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the local gateway in front of a chat controller.
type Server struct {
	controller *chat.Controller
	engine     *gin.Engine
	httpServer *http.Server
	upgrader   websocket.Upgrader
	logger     logging.Logger
	startTime  time.Time

	streamMu sync.RWMutex
	streams  map[string]*streamConn
}

// NewServer constructs the gateway and registers it as the controller's
// task/title observer.
func NewServer(controller *chat.Controller, config *ServerConfig, logger logging.Logger) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	if config.Debug {
		engine.Use(gin.Logger())
	}
	if config.EnableCORS {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Requested-With"}
		corsConfig.AllowWebSockets = true
		engine.Use(cors.New(corsConfig))
	}

	s := &Server{
		controller: controller,
		engine:     engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:    logging.OrNop(logger),
		startTime: time.Now(),
		streams:   make(map[string]*streamConn),
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      engine,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	controller.SetObserver(s.relayTasks)
	controller.SetTitleObserver(s.relayTitle)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.engine.Group("/api")

	api.GET("/health", s.handleHealth)
	api.GET("/agents", s.handleAgents)
	api.PUT("/agents/:id/enabled", s.handleAgentToggle)

	sessions := api.Group("/sessions")
	{
		sessions.GET("", s.handleListSessions)
		sessions.POST("", s.handleCreateSession)
		sessions.GET("/:id", s.handleGetSession)
		sessions.DELETE("/:id", s.handleDeleteSession)
		sessions.PUT("/:id/title", s.handleRenameSession)
		sessions.POST("/:id/messages", s.handleSendMessage)
	}

	api.GET("/sessions/:id/stream", s.handleStream)
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("gateway listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway listen: %w", err)
	}
	return nil
}

// Stop shuts the gateway down, closing every push stream.
func (s *Server) Stop() error {
	s.closeAllStreams()
	s.controller.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("gateway shutdown: %w", err)
	}
	s.logger.Info("gateway stopped")
	return nil
}

// relayTasks forwards a task snapshot to the stream attached to its session.
func (s *Server) relayTasks(sessionID string, tasks []types.AgentTask) {
	s.streamMu.RLock()
	stream := s.streams[sessionID]
	s.streamMu.RUnlock()
	if stream == nil {
		return
	}
	stream.send(types.MultiTaskUpdate{
		Type:      types.FrameMultiTaskUpdate,
		SessionID: sessionID,
		Tasks:     tasks,
	})
}

// relayTitle forwards a title change to the session's stream.
func (s *Server) relayTitle(sessionID, title string) {
	s.streamMu.RLock()
	stream := s.streams[sessionID]
	s.streamMu.RUnlock()
	if stream == nil {
		return
	}
	stream.send(types.SessionTitleUpdate{
		Type:      types.FrameSessionTitleUpdate,
		SessionID: sessionID,
		Title:     title,
	})
}

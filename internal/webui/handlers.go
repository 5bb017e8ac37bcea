package webui

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hive/internal/chat"
)

// APIResponse is the standard envelope for gateway responses.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, APIResponse{Success: false, Error: message})
}

// HealthResponse reports gateway liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

func (s *Server) handleHealth(c *gin.Context) {
	ok(c, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleAgents(c *gin.Context) {
	agents := s.controller.LoadAgents(c.Request.Context())
	ok(c, gin.H{"agents": agents})
}

type agentToggleRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleAgentToggle(c *gin.Context) {
	var req agentToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid toggle payload")
		return
	}
	if !s.controller.SetAgentEnabled(c.Param("id"), req.Enabled) {
		fail(c, http.StatusNotFound, "unknown agent")
		return
	}
	ok(c, gin.H{"id": c.Param("id"), "enabled": req.Enabled})
}

func (s *Server) handleListSessions(c *gin.Context) {
	store := s.controller.Store()
	ok(c, gin.H{
		"sessions":         store.Sessions(),
		"currentSessionId": store.CurrentSessionID(),
	})
}

type createSessionRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	_ = c.ShouldBindJSON(&req) // empty body means default title
	id := s.controller.NewSession(req.Title)
	session, _ := s.controller.Store().Session(id)
	ok(c, session)
}

func (s *Server) handleGetSession(c *gin.Context) {
	session, found := s.controller.Store().Session(c.Param("id"))
	if !found {
		fail(c, http.StatusNotFound, "session not found")
		return
	}
	ok(c, session)
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	id := c.Param("id")
	s.closeStream(id)
	s.controller.DeleteSession(id)
	ok(c, gin.H{
		"deleted":          id,
		"currentSessionId": s.controller.Store().CurrentSessionID(),
	})
}

type renameSessionRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleRenameSession(c *gin.Context) {
	var req renameSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Title == "" {
		fail(c, http.StatusBadRequest, "title required")
		return
	}
	if !s.controller.Store().RenameSession(c.Param("id"), req.Title) {
		fail(c, http.StatusNotFound, "session not found")
		return
	}
	ok(c, gin.H{"id": c.Param("id"), "title": req.Title})
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

// handleSendMessage submits a query against the session and persists the
// assistant message immediately (the gateway has no typing animation).
func (s *Server) handleSendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" {
		fail(c, http.StatusBadRequest, "message required")
		return
	}

	id := c.Param("id")
	if !s.controller.SwitchSession(id) {
		fail(c, http.StatusNotFound, "session not found")
		return
	}

	result, err := s.controller.Submit(c.Request.Context(), req.Message)
	if err != nil {
		if err == chat.ErrSuperseded {
			fail(c, http.StatusConflict, "query superseded")
			return
		}
		fail(c, http.StatusBadGateway, err.Error())
		return
	}

	message := result.Persist()
	rendered := s.controller.Pipeline().Process(result.Response)
	charts := make([]gin.H, 0, len(rendered.Charts))
	for _, chartPayload := range rendered.Charts {
		charts = append(charts, gin.H{
			"type":    chartPayload.Type,
			"title":   chartPayload.Title,
			"dataset": chartPayload.Dataset(),
		})
	}

	ok(c, gin.H{
		"message":     message,
		"displayText": rendered.Text,
		"charts":      charts,
		"live":        result.Live,
		"agentTasks":  result.Tasks,
	})
}

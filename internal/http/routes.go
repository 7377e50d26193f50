package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wellness-chat/pkg"
)

// registerRoutes sets up the session store and completion endpoints.
func (s *Server) registerRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.router.Group("/api")
	api.GET("/sessions/:id", s.handleGetSession)
	api.PUT("/sessions/:id", s.handleSaveSession)
	api.POST("/sessions/:id/messages", s.handleSaveMessage)
	api.DELETE("/sessions/:id", s.handleEndSession)
	api.POST("/completions", s.handleComplete)
}

// handleGetSession returns the stored transcript, empty for unknown ids.
func (s *Server) handleGetSession(c *gin.Context) {
	id := pkg.SessionID(c.Param("id"))
	msgs, err := s.Backend.GetSession(c.Request.Context(), id)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "get session", id, err)
		return
	}
	c.JSON(http.StatusOK, pkg.SessionPayload{Messages: msgs})
}

// handleSaveSession overwrites the transcript of a session.
func (s *Server) handleSaveSession(c *gin.Context) {
	id := pkg.SessionID(c.Param("id"))
	var payload pkg.SessionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		s.badRequest(c, err)
		return
	}
	for _, m := range payload.Messages {
		if err := validateMessage(m); err != nil {
			s.badRequest(c, err)
			return
		}
	}
	if err := s.Backend.SaveSession(c.Request.Context(), id, payload.Messages); err != nil {
		s.fail(c, http.StatusInternalServerError, "save session", id, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleSaveMessage appends one message record.
func (s *Server) handleSaveMessage(c *gin.Context) {
	id := pkg.SessionID(c.Param("id"))
	var m pkg.Message
	if err := c.ShouldBindJSON(&m); err != nil {
		s.badRequest(c, err)
		return
	}
	if err := validateMessage(m); err != nil {
		s.badRequest(c, err)
		return
	}
	if err := s.Backend.SaveMessage(c.Request.Context(), id, m); err != nil {
		s.fail(c, http.StatusInternalServerError, "save message", id, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleEndSession purges every record of a session.
func (s *Server) handleEndSession(c *gin.Context) {
	id := pkg.SessionID(c.Param("id"))
	if err := s.Backend.EndSession(c.Request.Context(), id); err != nil {
		s.fail(c, http.StatusInternalServerError, "end session", id, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleComplete runs one completion.  Provider failures map to 502 so the
// client can tell them apart from malformed requests.
func (s *Server) handleComplete(c *gin.Context) {
	var req pkg.CompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		s.badRequest(c, errors.New("prompt is required"))
		return
	}
	text, err := s.Backend.Complete(c.Request.Context(), req.Prompt, req.History)
	if err != nil {
		s.fail(c, http.StatusBadGateway, "complete", "", err)
		return
	}
	c.JSON(http.StatusOK, pkg.CompletionResponse{Text: text})
}

func validateMessage(m pkg.Message) error {
	if m.ID == "" {
		return errors.New("message id is required")
	}
	if m.Role != pkg.RoleUser && m.Role != pkg.RoleAssistant {
		return errors.New("message role must be user or assistant")
	}
	return nil
}

func (s *Server) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, pkg.ErrorResponse{Error: err.Error()})
}

func (s *Server) fail(c *gin.Context, status int, op string, id pkg.SessionID, err error) {
	s.Log.Error(op+" failed", zap.String("session_id", string(id)), zap.Error(err))
	c.JSON(status, pkg.ErrorResponse{Error: op + " failed"})
}

package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/energizer-project/ottdadmin/internal/admin"
	"github.com/energizer-project/ottdadmin/internal/game"
	"github.com/energizer-project/ottdadmin/internal/protocol"
)

const rconTimeout = 10 * time.Second

type chatRequest struct {
	Scope   string `json:"scope"` // global, company or private
	ID      uint32 `json:"id"`
	Message string `json:"message" binding:"required"`
}

type externalChatRequest struct {
	Source  string `json:"source" binding:"required"`
	Colour  uint16 `json:"colour"`
	User    string `json:"user" binding:"required"`
	Message string `json:"message" binding:"required"`
}

type rconRequest struct {
	Command string `json:"command" binding:"required"`
}

type gameScriptRequest struct {
	JSON string `json:"json" binding:"required"`
}

type pollRequest struct {
	Type string  `json:"type" binding:"required"`
	ID   *uint32 `json:"id"`
}

// handleChat sends a chat message to everyone, a company or one client.
func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if hasNUL(req.Message) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message must not contain NUL bytes"})
		return
	}

	ctx := c.Request.Context()
	var err error
	switch strings.ToLower(req.Scope) {
	case "", "global":
		err = s.Controller.SendGlobal(ctx, req.Message)
	case "company":
		err = s.Controller.SendCompany(ctx, req.Message, req.ID)
	case "private":
		err = s.Controller.SendPrivate(ctx, req.Message, req.ID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "scope must be global, company or private"})
		return
	}
	if err != nil {
		s.sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

// handleExternalChat relays a message from another chat service.
func (s *Server) handleExternalChat(c *gin.Context) {
	var req externalChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if hasNUL(req.Source, req.User, req.Message) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fields must not contain NUL bytes"})
		return
	}

	if err := s.Controller.SendExternalChat(c.Request.Context(), req.Source, req.Colour, req.User, req.Message); err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

// handleRcon runs a console command and returns its output.
func (s *Server) handleRcon(c *gin.Context) {
	var req rconRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if hasNUL(req.Command) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "command must not contain NUL bytes"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), rconTimeout)
	defer cancel()

	lines, err := s.Rcon.Run(ctx, s.Controller, req.Command)
	switch {
	case errors.Is(err, game.ErrRconBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "no answer from server"})
		return
	case err != nil:
		s.sendError(c, err)
		return
	}

	s.logger.Info().Str("command", req.Command).Int("lines", len(lines)).Msg("rcon executed")
	c.JSON(http.StatusOK, gin.H{
		"command": req.Command,
		"output":  lines,
	})
}

// handleGameScript passes JSON to the running GameScript.
func (s *Server) handleGameScript(c *gin.Context) {
	var req gameScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if hasNUL(req.JSON) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "json must not contain NUL bytes"})
		return
	}

	if err := s.Controller.SendGameScript(c.Request.Context(), req.JSON); err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

// handlePoll requests one update of the given type.
func (s *Server) handlePoll(c *gin.Context) {
	var req pollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := protocol.ParseUpdateType(req.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d1 := protocol.PollAll
	if req.ID != nil {
		d1 = *req.ID
	}

	if err := s.Controller.Poll(c.Request.Context(), u, d1); err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "requested"})
}

// sendError maps session errors to HTTP statuses.
func (s *Server) sendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, admin.ErrNotConnected), errors.Is(err, admin.ErrTransportClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "not connected to the server"})
	case errors.Is(err, admin.ErrInvalidFrequency):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("send failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

func hasNUL(fields ...string) bool {
	for _, f := range fields {
		if strings.IndexByte(f, 0) >= 0 {
			return true
		}
	}
	return false
}

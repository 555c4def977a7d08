package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/energizer-project/ottdadmin/internal/config"
	"github.com/energizer-project/ottdadmin/internal/events"
)

// handleGetConfig returns the current configuration with secrets hidden.
func (s *Server) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.Config.Redacted())
}

// handleSetSubscriptions replaces the configured subscriptions, saves them
// and applies them to the live session when one is connected.
func (s *Server) handleSetSubscriptions(c *gin.Context) {
	var subs []config.Subscription
	if err := c.ShouldBindJSON(&subs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for i, sub := range subs {
		if _, _, err := sub.Resolve(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "index": i})
			return
		}
	}

	s.Config.SetSubscriptions(subs)
	if err := s.Config.Save(); err != nil {
		s.logger.Error().Err(err).Msg("failed to save config")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save config"})
		return
	}

	applied := 0
	for _, sub := range subs {
		u, f, _ := sub.Resolve()
		if err := s.Controller.Subscribe(c.Request.Context(), u, f); err != nil {
			break
		}
		applied++
	}

	s.Bus.Emit(context.Background(), events.Event{
		Type:   events.EventConfigChanged,
		Source: "api",
		Payload: events.ConfigChangedPayload{
			Section: "subscriptions",
			Value:   subs,
		},
	})

	s.logger.Info().Int("count", len(subs)).Int("applied", applied).Msg("subscriptions updated")
	c.JSON(http.StatusOK, gin.H{
		"status":        "updated",
		"subscriptions": subs,
		"applied":       applied,
	})
}

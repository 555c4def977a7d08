package api

import (
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/energizer-project/ottdadmin/internal/db"
	"github.com/energizer-project/ottdadmin/internal/util"
)

// handleStatus returns the session state and the mirrored game.
func (s *Server) handleStatus(c *gin.Context) {
	snap := s.State.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"session":       s.Controller.State().String(),
		"online":        snap.Online,
		"server":        snap.Server,
		"date":          snap.Date,
		"client_count":  snap.ClientCount,
		"company_count": len(snap.Companies),
		"last_pong":     snap.LastPong,
		"updated_at":    snap.UpdatedAt,
		"subscriptions": s.Config.GetSubscriptions(),
		"process":       util.GetProcessStats(),
	})
}

// handleHost returns host system information.
func (s *Server) handleHost(c *gin.Context) {
	resp := gin.H{"system": util.GetSystemInfo()}

	if mem, err := util.GetMemoryUsage(); err == nil {
		resp["memory"] = mem
	}
	if s.Config.Journal.Enabled {
		if usage, err := util.GetDiskUsage(filepath.Dir(s.Config.Journal.Path)); err == nil {
			resp["journal_disk"] = usage
		}
	}

	c.JSON(http.StatusOK, resp)
}

// handleClients returns all known clients.
func (s *Server) handleClients(c *gin.Context) {
	clients := s.State.Clients()
	c.JSON(http.StatusOK, gin.H{
		"clients": clients,
		"total":   len(clients),
	})
}

// handleClient returns one client.
func (s *Server) handleClient(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client id"})
		return
	}

	client, ok := s.State.Client(uint32(id))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
		return
	}
	c.JSON(http.StatusOK, client)
}

// handleCompanies returns all known companies.
func (s *Server) handleCompanies(c *gin.Context) {
	companies := s.State.Companies()
	c.JSON(http.StatusOK, gin.H{
		"companies": companies,
		"total":     len(companies),
	})
}

// handleCompany returns one company.
func (s *Server) handleCompany(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 8)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company id"})
		return
	}

	company, ok := s.State.Company(uint8(id))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "company not found"})
		return
	}
	c.JSON(http.StatusOK, company)
}

// handleJournal returns journal lines filtered by kind, client, age and text.
func (s *Server) handleJournal(c *gin.Context) {
	if s.Journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal is disabled"})
		return
	}

	q := db.Query{
		Kind:   db.Kind(c.Query("kind")),
		Search: c.Query("q"),
	}
	if v := c.Query("client"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client"})
			return
		}
		q.ClientID = uint32(id)
	}
	if v := c.Query("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since, expected a duration like 2h"})
			return
		}
		q.Since = time.Now().Add(-d)
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
			return
		}
		q.Limit = n
	}

	entries, err := s.Journal.Recent(c.Request.Context(), q)
	if err != nil {
		s.logger.Error().Err(err).Msg("journal query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "journal query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"total":   len(entries),
	})
}

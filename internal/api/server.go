// Package api implements the REST API for ottdadmin: server status, clients,
// companies, the journal, and chat and rcon control of the connected server.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/energizer-project/ottdadmin/internal/admin"
	"github.com/energizer-project/ottdadmin/internal/config"
	"github.com/energizer-project/ottdadmin/internal/db"
	"github.com/energizer-project/ottdadmin/internal/events"
	"github.com/energizer-project/ottdadmin/internal/game"
	"github.com/energizer-project/ottdadmin/internal/protocol"
	"github.com/energizer-project/ottdadmin/internal/util"
)

// Version is reported by the ping endpoint.
var Version = "dev"

// Controller is the session-facing side of the API.
type Controller interface {
	State() admin.State
	Subscribe(ctx context.Context, u protocol.UpdateType, f protocol.UpdateFrequency) error
	Poll(ctx context.Context, u protocol.UpdateType, d1 uint32) error
	SendRcon(ctx context.Context, command string) error
	SendGlobal(ctx context.Context, message string) error
	SendCompany(ctx context.Context, message string, companyID uint32) error
	SendPrivate(ctx context.Context, message string, clientID uint32) error
	SendGameScript(ctx context.Context, json string) error
	SendExternalChat(ctx context.Context, source string, colour uint16, user, message string) error
}

// JournalReader reads journal lines.
type JournalReader interface {
	Recent(ctx context.Context, q db.Query) ([]db.Entry, error)
}

// Deps are the components the API serves from. Journal may be nil when the
// journal is disabled.
type Deps struct {
	Config     *config.Config
	Bus        *events.EventBus
	State      *game.State
	Controller Controller
	Rcon       *game.RconRunner
	Journal    JournalReader
}

// Server is the REST API server.
type Server struct {
	Deps

	cfg        config.APIConfig
	logger     zerolog.Logger
	httpServer *http.Server
	router     *gin.Engine
}

// NewServer creates a new API server.
func NewServer(deps Deps) *Server {
	if deps.Config.Logging.Level == "debug" || deps.Config.Logging.Level == "trace" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		Deps:   deps,
		cfg:    deps.Config.API,
		logger: util.ComponentLogger("api"),
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := s.cfg.Addr()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("API server error: %w", err)
	}

	s.logger.Info().Str("addr", addr).Msg("REST API server starting")

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server error: %w", err)
	}
	return nil
}

// buildRouter creates the Gin router with all routes and middleware.
func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLogger(s.logger))
	router.Use(SecurityHeaders())

	allowedOrigins := s.cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Must be false when AllowOrigins is "*"
		MaxAge:           12 * time.Hour,
	}))

	router.Use(NewRateLimiter(s.cfg.RateLimitRPS).Middleware())

	public := router.Group("/api/public")
	{
		public.GET("/ping", s.handlePing)
	}

	protected := router.Group("/api")
	protected.Use(RequireToken(s.cfg.Token))
	{
		protected.GET("/status", s.handleStatus)
		protected.GET("/host", s.handleHost)
		protected.GET("/clients", s.handleClients)
		protected.GET("/clients/:id", s.handleClient)
		protected.GET("/companies", s.handleCompanies)
		protected.GET("/companies/:id", s.handleCompany)
		protected.GET("/journal", s.handleJournal)

		protected.POST("/chat", s.handleChat)
		protected.POST("/chat/external", s.handleExternalChat)
		protected.POST("/rcon", s.handleRcon)
		protected.POST("/gamescript", s.handleGameScript)
		protected.POST("/poll", s.handlePoll)

		protected.GET("/config", s.handleGetConfig)
		protected.PUT("/config/subscriptions", s.handleSetSubscriptions)
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "ottdadmin API is running"})
	})

	return router
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

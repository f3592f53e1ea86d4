// Package server is the Baantlo web gateway: session-gated pages, preference
// endpoints and the authenticated API proxy.
package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/auth"
	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/config"
	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/models"
	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/routegate"
	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/session"
	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/upstream"
)

// Server represents the HTTP server
type Server struct {
	router      *gin.Engine
	db          *gorm.DB
	config      *config.Config
	logger      zerolog.Logger
	validator   *validator.Validate
	upstream    *upstream.Client
	upstreamURL *url.URL
	sessions    *scs.SessionManager
	resolver    *session.Resolver
	sweeper     *session.Sweeper
	gate        *routegate.Gate
	authLimiter *AttemptLimiter
	version     string
}

// New creates a new server instance
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	upstreamURL, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil || upstreamURL.Scheme == "" || upstreamURL.Host == "" {
		return nil, fmt.Errorf("invalid UPSTREAM_API_URL %q", cfg.Upstream.BaseURL)
	}

	// Route table: built in, or overridden from YAML
	table := routegate.DefaultTable()
	if cfg.Routes.File != "" {
		table, err = routegate.LoadTable(cfg.Routes.File)
		if err != nil {
			return nil, err
		}
		zlog.Info().Str("file", cfg.Routes.File).Msg("Loaded route table")
	}

	// Session storage
	var db *gorm.DB
	if cfg.Session.Store == session.StoreSQLite {
		db, err = models.OpenDatabase(cfg.Database.URL, zlog)
		if err != nil {
			return nil, err
		}
	}
	store, err := session.NewStore(cfg.Session.Store, db)
	if err != nil {
		return nil, err
	}
	sessions := session.NewManager(cfg.Session, store)

	var sweeper *session.Sweeper
	if db != nil && cfg.Session.SweepSchedule != "" {
		sweeper, err = session.StartSweeper(db, cfg.Session.SweepSchedule, zlog)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Server.PublicOrigin == "" {
		zlog.Warn().
			Bool("trust_proxy_headers", cfg.Server.TrustProxyHeaders).
			Msg("PUBLIC_ORIGIN not set - redirect URLs are derived from the request Host header")
	}

	client := upstream.New(cfg.Upstream.BaseURL, cfg.Upstream.Timeout)
	parser := auth.NewTokenParser(cfg.Upstream.JWTSecret)
	if !parser.Verifies() {
		zlog.Warn().Msg("UPSTREAM_JWT_SECRET not set - access token claims are decoded without verification")
	}

	server := &Server{
		db:          db,
		config:      cfg,
		logger:      zlog,
		validator:   newValidator(),
		upstream:    client,
		upstreamURL: upstreamURL,
		sessions:    sessions,
		resolver:    session.NewResolver(sessions, client, parser, zlog),
		sweeper:     sweeper,
		gate:        routegate.New(table, routegate.DefaultLanding),
		authLimiter: NewAttemptLimiter(cfg.Server.AuthRateLimit, cfg.Server.AuthRateBurst),
		version:     version,
	}

	if err := server.setupRouter(); err != nil {
		return nil, err
	}

	return server, nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() error {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	if err := s.loadTemplates(); err != nil {
		return err
	}

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(securityHeadersMiddleware())

	// Health check endpoint (no session)
	s.router.GET("/health", s.healthCheck)

	// Everything below carries the browser session and passes the route gate
	app := s.router.Group("")
	app.Use(session.LoadAndSave(s.sessions, s.logger))
	app.Use(s.gateMiddleware())

	app.GET("/", s.index)

	// Auth pages
	limited := throttleAttempts(s.authLimiter, s.logger)
	app.GET("/login", s.loginPage)
	app.POST("/login", limited, s.login)
	app.GET("/register", s.registerPage)
	app.POST("/register", limited, s.register)
	app.POST("/logout", s.logout)
	app.GET("/forgot-password", s.forgotPasswordPage)
	app.POST("/forgot-password", limited, s.forgotPassword)
	app.GET("/reset-password", s.resetPasswordPage)
	app.POST("/reset-password", limited, s.resetPassword)
	app.GET("/verify-email", s.verifyEmail)

	// Pages
	app.GET("/dashboard", s.dashboardPage)
	app.GET("/groups", s.groupsPage)
	app.GET("/groups/:id", s.groupPage)
	app.GET("/expenses", s.expensesPage)
	app.GET("/settlements", s.settlementsPage)
	app.GET("/notifications", s.notificationsPage)
	app.GET("/settings", s.settingsPage)
	app.POST("/settings", s.updateSettings)
	app.GET("/admin/dashboard", s.adminDashboardPage)

	// Preferences
	app.GET("/preferences", s.getPreferences)
	app.PUT("/preferences/:kind", s.setPreference)

	// API proxy
	api := app.Group("/api")
	api.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.Server.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	api.Use(APISessionRequired(s.logger))
	{
		api.Any("/*path", s.proxyAPI(s.newReverseProxy()))
	}

	return nil
}

// Handler exposes the router for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "baantlo-web",
		"version":   s.version,
	})
}

// Start starts the HTTP server and blocks until SIGINT/SIGTERM
func (s *Server) Start() error {
	port := ":" + s.config.Server.Port

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              port,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.config.Upstream.Timeout + 15*time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Str("port", port).Str("upstream", s.config.Upstream.BaseURL).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		s.logger.Error().Err(err).Msg("HTTP server error")
		s.Close(context.Background())
		return err
	case <-sigChan:
	}
	s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	s.logger.Info().Msg("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	s.Close(shutdownCtx)
	s.logger.Info().Msg("Server shutdown complete")
	return nil
}

// Close stops background work and closes the session database
func (s *Server) Close(ctx context.Context) {
	if s.sweeper != nil {
		s.sweeper.Stop(ctx)
	}

	if s.db != nil {
		s.logger.Info().Msg("Closing database connection...")
		if err := models.CloseDatabase(s.db); err != nil {
			s.logger.Error().Err(err).Msg("Error closing database")
		} else {
			s.logger.Info().Msg("Database closed successfully")
		}
	}
}

package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/auth"
	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/routegate"
)

const requestIDHeader = "X-Request-ID"

var ErrNoSession = errors.New("no session")

func setSession(c *gin.Context, sessionData *auth.SessionData) {
	c.Set("session", sessionData)
}

// GetSessionData returns the session resolved by the gate for this request
func GetSessionData(c *gin.Context) (*auth.SessionData, bool) {
	session, exists := c.Get("session")
	if !exists {
		return nil, false
	}

	sessionData, ok := session.(*auth.SessionData)
	return sessionData, ok && sessionData != nil
}

func respondWithError(c *gin.Context, log zerolog.Logger, statusCode int, err error, message string) {
	log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg(message)
	c.JSON(statusCode, gin.H{"error": message})
	c.Abort()
}

// loggingMiddleware assigns a request ID and writes one access log line per
// request
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = ulid.Make().String()
		}
		c.Set("request_id", requestID)
		c.Header(requestIDHeader, requestID)

		c.Next()

		duration := time.Since(start)

		event := s.logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = s.logger.Error()
		}
		event.
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// securityHeadersMiddleware adds baseline browser security headers
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

// gateMiddleware resolves the session and applies the route gate. A session
// that cannot be resolved is logged and treated as absent.
func (s *Server) gateMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionData, err := s.resolver.Resolve(c.Request.Context())
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("path", c.Request.URL.Path).
				Msg("Session resolution failed, continuing without session")
			sessionData = nil
		}
		if sessionData != nil {
			setSession(c, sessionData)
		}

		decision := s.gate.Decide(routegate.Request{
			Origin:   s.origin(c),
			Path:     c.Request.URL.Path,
			RawQuery: c.Request.URL.RawQuery,
		}, sessionData)

		if decision.Action != routegate.Allow {
			s.logger.Debug().
				Str("path", c.Request.URL.Path).
				Str("class", decision.Class.String()).
				Str("action", decision.Action.String()).
				Msg("Route gate redirect")
			c.Redirect(http.StatusTemporaryRedirect, decision.Location)
			c.Abort()
			return
		}

		c.Next()
	}
}

// APISessionRequired rejects proxied API calls without a session
func APISessionRequired(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetSessionData(c); !ok {
			respondWithError(c, log, http.StatusUnauthorized, ErrNoSession, "Unauthorized")
			return
		}
		c.Next()
	}
}

// origin returns the public origin used for absolute redirects
func (s *Server) origin(c *gin.Context) string {
	if s.config.Server.PublicOrigin != "" {
		return s.config.Server.PublicOrigin
	}

	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	host := c.Request.Host

	// Forwarded headers are client-controlled unless a proxy in front rewrites them
	if s.config.Server.TrustProxyHeaders {
		if fwd := c.GetHeader("X-Forwarded-Proto"); fwd == "http" || fwd == "https" {
			scheme = fwd
		}
		if fwd := c.GetHeader("X-Forwarded-Host"); fwd != "" && !strings.ContainsAny(fwd, "/\\@, ") {
			host = fwd
		}
	}

	return scheme + "://" + host
}

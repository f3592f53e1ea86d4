package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// HTTP listener and public origin used to build redirect URLs
	Server ServerConfig

	// Upstream Baantlo API
	Upstream UpstreamConfig

	// Browser session configuration
	Session SessionConfig

	// Database Configuration (session persistence when Session.Store is "sqlite")
	Database DatabaseConfig

	// Route gate configuration
	Routes RoutesConfig

	// Logging Configuration
	Logging LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port               string
	PublicOrigin       string   // e.g. https://app.baantlo.com, empty = derive from request
	TrustProxyHeaders  bool     // honour X-Forwarded-Proto/Host when deriving the origin
	CORSAllowedOrigins []string // origins allowed to call /api/*
	AuthRateLimit      float64  // auth form posts per second per IP
	AuthRateBurst      int
}

// UpstreamConfig holds the backend API configuration
type UpstreamConfig struct {
	BaseURL   string
	Timeout   time.Duration
	JWTSecret string // optional, verifies upstream access tokens when set
}

// SessionConfig holds session cookie and storage configuration
type SessionConfig struct {
	Store         string // memory, sqlite
	Lifetime      time.Duration
	CookieName    string
	CookieSecure  bool
	SweepSchedule string // cron expression for expired session cleanup
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// RoutesConfig points at an optional YAML route table
type RoutesConfig struct {
	File string
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	upstreamTimeout, err := durationEnv("UPSTREAM_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	sessionLifetime, err := durationEnv("SESSION_LIFETIME", 14*24*time.Hour)
	if err != nil {
		return nil, err
	}

	cookieSecure, err := boolEnv("SESSION_COOKIE_SECURE", false)
	if err != nil {
		return nil, err
	}

	trustProxy, err := boolEnv("TRUST_PROXY_HEADERS", false)
	if err != nil {
		return nil, err
	}

	rateLimit, err := floatEnv("AUTH_RATE_LIMIT", 0.2)
	if err != nil {
		return nil, err
	}

	rateBurst, err := intEnv("AUTH_RATE_BURST", 10)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               stringEnv("PORT", "3000"),
			PublicOrigin:       strings.TrimRight(os.Getenv("PUBLIC_ORIGIN"), "/"),
			TrustProxyHeaders:  trustProxy,
			CORSAllowedOrigins: listEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AuthRateLimit:      rateLimit,
			AuthRateBurst:      rateBurst,
		},
		Upstream: UpstreamConfig{
			BaseURL:   strings.TrimRight(stringEnv("UPSTREAM_API_URL", "http://localhost:8000"), "/"),
			Timeout:   upstreamTimeout,
			JWTSecret: os.Getenv("UPSTREAM_JWT_SECRET"),
		},
		Session: SessionConfig{
			Store:         strings.ToLower(stringEnv("SESSION_STORE", "memory")),
			Lifetime:      sessionLifetime,
			CookieName:    stringEnv("SESSION_COOKIE_NAME", "baantlo_session"),
			CookieSecure:  cookieSecure,
			SweepSchedule: stringEnv("SESSION_SWEEP_SCHEDULE", "@every 10m"),
		},
		Database: DatabaseConfig{
			URL: stringEnv("DATABASE_URL", "baantlo-web.sqlite"),
		},
		Routes: RoutesConfig{
			File: os.Getenv("ROUTES_FILE"),
		},
		Logging: LoggingConfig{
			Level:  stringEnv("LOG_LEVEL", "info"),
			Format: stringEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that have no sensible fallback
func (c *Config) Validate() error {
	switch c.Session.Store {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("invalid SESSION_STORE %q (expected memory or sqlite)", c.Session.Store)
	}

	if c.Server.PublicOrigin != "" {
		u, err := url.Parse(c.Server.PublicOrigin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || (u.Path != "" && u.Path != "/") {
			return fmt.Errorf("invalid PUBLIC_ORIGIN %q (expected scheme://host)", c.Server.PublicOrigin)
		}
	}

	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("UPSTREAM_API_URL is required")
	}

	if c.Session.Lifetime <= 0 {
		return fmt.Errorf("SESSION_LIFETIME must be positive")
	}

	return nil
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func listEnv(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

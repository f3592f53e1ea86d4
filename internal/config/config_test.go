package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "http://localhost:8000", cfg.Upstream.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, "baantlo_session", cfg.Session.CookieName)
	assert.Equal(t, 14*24*time.Hour, cfg.Session.Lifetime)
	assert.Equal(t, "@every 10m", cfg.Session.SweepSchedule)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Empty(t, cfg.Server.PublicOrigin)
	assert.False(t, cfg.Server.TrustProxyHeaders)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("PUBLIC_ORIGIN", "https://app.baantlo.com/")
	t.Setenv("UPSTREAM_API_URL", "https://api.baantlo.com/")
	t.Setenv("UPSTREAM_TIMEOUT", "3s")
	t.Setenv("SESSION_STORE", "SQLite")
	t.Setenv("SESSION_LIFETIME", "2h")
	t.Setenv("SESSION_COOKIE_SECURE", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("AUTH_RATE_BURST", "3")
	t.Setenv("TRUST_PROXY_HEADERS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "https://app.baantlo.com", cfg.Server.PublicOrigin)
	assert.Equal(t, "https://api.baantlo.com", cfg.Upstream.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, "sqlite", cfg.Session.Store)
	assert.Equal(t, 2*time.Hour, cfg.Session.Lifetime)
	assert.True(t, cfg.Session.CookieSecure)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, 3, cfg.Server.AuthRateBurst)
	assert.True(t, cfg.Server.TrustProxyHeaders)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad duration", key: "UPSTREAM_TIMEOUT", value: "soon"},
		{name: "bad bool", key: "SESSION_COOKIE_SECURE", value: "maybe"},
		{name: "bad store", key: "SESSION_STORE", value: "redis"},
		{name: "negative lifetime", key: "SESSION_LIFETIME", value: "-1h"},
		{name: "bad burst", key: "AUTH_RATE_BURST", value: "ten"},
		{name: "origin without scheme", key: "PUBLIC_ORIGIN", value: "app.baantlo.com"},
		{name: "origin with path", key: "PUBLIC_ORIGIN", value: "https://app.baantlo.com/web"},
		{name: "bad trust flag", key: "TRUST_PROXY_HEADERS", value: "sometimes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
		})
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir from Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/routegate"
)

func defaultGate() *routegate.Gate {
	return routegate.New(routegate.DefaultTable(), routegate.DefaultLanding)
}

func TestCheckRoute(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		role     string
		contains []string
	}{
		{
			name:     "anonymous on protected path",
			path:     "/groups/abc?tab=1",
			contains: []string{"protected", "redirect-to-login", "http://localhost:3000/login?callbackUrl=http%3A%2F%2Flocalhost%3A3000%2Fgroups%2Fabc%3Ftab%3D1"},
		},
		{
			name:     "basic user on admin path",
			path:     "/admin/dashboard",
			role:     "BASIC_USER",
			contains: []string{"admin", "redirect-to-default", "http://localhost:3000/dashboard"},
		},
		{
			name:     "admin on login page",
			path:     "/login",
			role:     "PLATFORM_ADMIN",
			contains: []string{"public-auth", "redirect-to-default", "http://localhost:3000/admin/dashboard"},
		},
		{
			name:     "anonymous on unclassified path",
			path:     "/about",
			contains: []string{"other", "allow"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, runCheckRoute(&out, defaultGate(), tt.path, tt.role, "http://localhost:3000/"))
			for _, want := range tt.contains {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}

func TestCheckRoute_AllowHasNoLocation(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runCheckRoute(&out, defaultGate(), "/dashboard", "BASIC_USER", "http://localhost:3000"))
	assert.NotContains(t, out.String(), "LOCATION")
}

func TestCheckRoute_RejectsRelativePath(t *testing.T) {
	var out bytes.Buffer
	err := runCheckRoute(&out, defaultGate(), "groups", "", "http://localhost:3000")
	assert.Error(t, err)
}

func TestCheckRouteCmd_WithRoutesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("protected_prefixes:\n  - /wallet\n"), 0o600))

	cmd := NewCheckRouteCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"/wallet/topup", "--routes", path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "protected")
	assert.Contains(t, out.String(), "redirect-to-login")
}

func TestRoutes_RoundTripsAsRoutesFile(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runRoutes(&out, routegate.DefaultTable()))

	var spec routegate.TableSpec
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &spec))
	assert.Contains(t, spec.PublicAuthPaths, "/login")
	assert.Contains(t, spec.ProtectedPrefixes, "/groups")
	assert.Equal(t, []string{"/admin"}, spec.AdminPrefixes)
}

func TestPreferencesCmd(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runPreferences(&out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, out.String(), "theme_mode")
	assert.Contains(t, out.String(), "default, tangerine, neo-brutalism, soft-pop")
	assert.Contains(t, out.String(), "365d")
}

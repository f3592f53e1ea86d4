package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/auth"
	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/config"
	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/routegate"
)

const testOrigin = "https://app.baantlo.test"

// fakeBackend is a minimal stand-in for the Baantlo API
type fakeBackend struct {
	t *testing.T

	mu           sync.Mutex
	revoked      []string
	rejectTokens bool
	proxied      *http.Request
	proxiedBody  string
}

func (f *fakeBackend) token(email string) string {
	roles := []string{auth.RoleBasicUser}
	if strings.HasPrefix(email, "admin@") {
		roles = []string{auth.RolePlatformAdmin}
	}
	claims := auth.AccessClaims{
		Roles: roles,
		Type:  "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-" + strings.Split(email, "@")[0],
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	require.NoError(f.t, err)
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	authed := strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") && !f.rejectTokens

	switch {
	case r.URL.Path == "/api/v1/auth/login":
		var body struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch body.Password {
		case "hunter22":
			writeJSON(w, http.StatusOK, map[string]any{
				"action": "issue_tokens",
				"email":  body.Email,
				"session": map[string]any{
					"access_token":  f.token(body.Email),
					"refresh_token": "refresh-" + body.Email,
					"expires_in":    900,
					"user":          map[string]any{"id": "user-1", "email": body.Email, "display_name": "Ana"},
				},
			})
		case "unverified":
			writeJSON(w, http.StatusOK, map[string]any{"action": "verify_email", "email": body.Email})
		default:
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "invalid_credentials"})
		}
	case r.URL.Path == "/api/v1/auth/revoke":
		f.revoked = append(f.revoked, r.URL.Query().Get("refresh_token"))
		writeJSON(w, http.StatusOK, map[string]any{"revoked": true})
	case r.URL.Path == "/api/v1/auth/validate-reset-token":
		var body struct{ Token string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, map[string]any{"valid": body.Token == "good-token"})
	case r.URL.Path == "/api/v1/currencies":
		writeJSON(w, http.StatusOK, []map[string]string{{"code": "INR", "name": "Indian Rupee", "symbol": "₹"}})
	case !authed:
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "token_invalid"})
	case r.URL.Path == "/api/v1/dashboard/stats":
		writeJSON(w, http.StatusOK, map[string]any{"total_groups": 2, "net_balance": 150.5})
	case r.URL.Path == "/api/v1/admin/dashboard":
		writeJSON(w, http.StatusOK, map[string]any{"total_users": 40})
	case r.URL.Path == "/api/v1/groups":
		writeJSON(w, http.StatusOK, map[string]any{"items": []map[string]any{
			{"group_id": "g1", "name": "Goa Trip", "base_currency": "INR", "unread_count": 3},
		}})
	case r.URL.Path == "/api/v1/groups/invites/incoming":
		writeJSON(w, http.StatusOK, map[string]any{"items": []map[string]any{
			{"id": "i1", "group_name": "Flatmates", "inviter_name": "Bo", "status": "pending"},
		}})
	case r.URL.Path == "/api/v1/friends/invites":
		writeJSON(w, http.StatusOK, map[string]any{"items": []map[string]any{}})
	case strings.HasPrefix(r.URL.Path, "/api/v1/proxied/"):
		f.proxied = r.Clone(context.Background())
		b, _ := io.ReadAll(r.Body)
		f.proxiedBody = string(b)
		w.Header().Set("Set-Cookie", "backend=1")
		writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "not_found"})
	}
}

// browser replays cookies between requests like a user agent would
type browser struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
}

func (b *browser) do(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	b.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, c := range b.cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	b.handler.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return w
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(http.MethodGet, path, nil, "")
}

func (b *browser) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	return b.do(http.MethodPost, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

func (b *browser) putJSON(path, body string) *httptest.ResponseRecorder {
	return b.do(http.MethodPut, path, strings.NewReader(body), "application/json")
}

func (b *browser) login(email string) {
	b.t.Helper()
	w := b.postForm("/login", url.Values{"email": {email}, "password": {"hunter22"}})
	require.Equal(b.t, http.StatusSeeOther, w.Code, w.Body.String())
	require.Contains(b.t, b.cookies, "baantlo_session")
}

func newTestServer(t *testing.T) (*Server, *fakeBackend, *browser) {
	t.Helper()

	backend := &fakeBackend{t: t}
	up := httptest.NewServer(backend)
	t.Cleanup(up.Close)

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:               "0",
			PublicOrigin:       testOrigin,
			CORSAllowedOrigins: []string{testOrigin},
			AuthRateLimit:      1000,
			AuthRateBurst:      1000,
		},
		Upstream: config.UpstreamConfig{BaseURL: up.URL, Timeout: 5 * time.Second},
		Session: config.SessionConfig{
			Store:      "memory",
			Lifetime:   time.Hour,
			CookieName: "baantlo_session",
		},
	}

	srv, err := New(cfg, zerolog.Nop(), "test")
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close(context.Background()) })

	return srv, backend, &browser{t: t, handler: srv.Handler(), cookies: map[string]*http.Cookie{}}
}

func TestHealth(t *testing.T) {
	_, _, b := newTestServer(t)

	w := b.get("/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"online"`)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestGate_AnonymousRedirectsToLogin(t *testing.T) {
	_, _, b := newTestServer(t)

	tests := []struct {
		path     string
		callback string
	}{
		{"/groups?tab=active", testOrigin + "/groups?tab=active"},
		{"/groups/g1", testOrigin + "/groups/g1"},
		{"/admin/dashboard", testOrigin + "/admin/dashboard"},
		{"/settings", testOrigin + "/settings"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := b.get(tt.path)
			require.Equal(t, http.StatusTemporaryRedirect, w.Code)
			want := testOrigin + "/login?callbackUrl=" + url.QueryEscape(tt.callback)
			assert.Equal(t, want, w.Header().Get("Location"))
		})
	}
}

func TestGate_AnonymousAllowedOnAuthPages(t *testing.T) {
	_, _, b := newTestServer(t)

	for _, path := range []string{"/login", "/register", "/forgot-password"} {
		w := b.get(path)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestLogin_RedirectsToSameOriginCallback(t *testing.T) {
	_, _, b := newTestServer(t)

	w := b.postForm("/login", url.Values{
		"email":       {"ana@example.com"},
		"password":    {"hunter22"},
		"callbackUrl": {testOrigin + "/groups?tab=active"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/groups?tab=active", w.Header().Get("Location"))

	cookie := b.cookies["baantlo_session"]
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	w = b.get("/groups")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Goa Trip")
	assert.Contains(t, w.Body.String(), `href="/groups/g1"`)
}

func TestLogin_ForeignCallbackFallsBackToLanding(t *testing.T) {
	_, _, b := newTestServer(t)

	w := b.postForm("/login", url.Values{
		"email":       {"ana@example.com"},
		"password":    {"hunter22"},
		"callbackUrl": {"https://evil.example/steal"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))
}

func TestLogin_AdminLandsOnAdminDashboard(t *testing.T) {
	_, _, b := newTestServer(t)

	w := b.postForm("/login", url.Values{"email": {"admin@example.com"}, "password": {"hunter22"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/admin/dashboard", w.Header().Get("Location"))

	w = b.get("/admin/dashboard")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Total users")

	// authenticated users are bounced off the auth pages
	w = b.get("/login")
	require.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, testOrigin+"/admin/dashboard", w.Header().Get("Location"))
}

func TestGate_NonAdminOnAdminPath(t *testing.T) {
	_, _, b := newTestServer(t)
	b.login("ana@example.com")

	w := b.get("/admin/dashboard")
	require.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, testOrigin+"/dashboard", w.Header().Get("Location"))

	w = b.get("/register")
	require.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, testOrigin+"/dashboard", w.Header().Get("Location"))

	w = b.get("/dashboard")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Welcome, Ana")
	assert.Contains(t, w.Body.String(), "Total groups")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	_, _, b := newTestServer(t)

	w := b.postForm("/login", url.Values{"email": {"ana@example.com"}, "password": {"nope"}})
	require.Equal(t, http.StatusSeeOther, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/login", loc.Path)
	assert.Contains(t, loc.Query().Get("error"), "Invalid email or password")
	assert.Equal(t, "ana@example.com", loc.Query().Get("email"))
	assert.NotContains(t, b.cookies, "baantlo_session")

	w = b.get(loc.String())
	assert.Contains(t, w.Body.String(), `role="alert"`)
}

func TestLogin_ValidationError(t *testing.T) {
	_, _, b := newTestServer(t)

	w := b.postForm("/login", url.Values{"email": {"not-an-email"}, "password": {"x"}})
	require.Equal(t, http.StatusSeeOther, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "Enter a valid email address.", loc.Query().Get("error"))
}

func TestLogin_VerificationRequired(t *testing.T) {
	_, _, b := newTestServer(t)

	w := b.postForm("/login", url.Values{"email": {"ana@example.com"}, "password": {"unverified"}})
	require.Equal(t, http.StatusSeeOther, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, msgVerifyEmail, loc.Query().Get("message"))
	assert.NotContains(t, b.cookies, "baantlo_session")

	w = b.postForm("/login", url.Values{
		"email":       {"ana@example.com"},
		"password":    {"unverified"},
		"callbackUrl": {testOrigin + "/groups/g1"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code)
	loc, err = url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, testOrigin+"/groups/g1", loc.Query().Get("callbackUrl"))
}

func TestProtectedPrefixesAreServed(t *testing.T) {
	_, _, b := newTestServer(t)
	b.login("ana@example.com")

	for _, prefix := range routegate.DefaultSpec().ProtectedPrefixes {
		t.Run(prefix, func(t *testing.T) {
			w := b.get(prefix)
			assert.Equal(t, http.StatusOK, w.Code, "gated path %s has no page", prefix)
		})
	}
}

func TestLogout(t *testing.T) {
	_, backend, b := newTestServer(t)
	b.login("ana@example.com")

	w := b.postForm("/logout", nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/login"))
	assert.Equal(t, []string{"refresh-ana@example.com"}, backend.revoked)
	assert.NotContains(t, b.cookies, "baantlo_session")

	w = b.get("/dashboard")
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
}

func TestPage_UpstreamRejectsTokenEndsSession(t *testing.T) {
	_, backend, b := newTestServer(t)
	b.login("ana@example.com")

	backend.mu.Lock()
	backend.rejectTokens = true
	backend.mu.Unlock()

	w := b.get("/expenses?page=2")
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, testOrigin+"/login?callbackUrl="+url.QueryEscape(testOrigin+"/expenses?page=2"), w.Header().Get("Location"))
	assert.NotContains(t, b.cookies, "baantlo_session")
}

func TestNotificationsPage(t *testing.T) {
	_, _, b := newTestServer(t)
	b.login("ana@example.com")

	w := b.get("/notifications")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Notifications (1)")
	assert.Contains(t, body, "Flatmates")
	assert.Contains(t, body, "No pending friend invites.")
}

func TestTokenPages_RequireToken(t *testing.T) {
	_, _, b := newTestServer(t)

	w := b.get("/reset-password")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = b.get("/reset-password?token=bad%20token")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = b.get("/verify-email")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = b.get("/reset-password?token=good-token")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="token" value="good-token"`)

	w = b.get("/reset-password?token=stale-token")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "invalid or has expired")
	assert.NotContains(t, w.Body.String(), `name="password"`)
}

func TestPreferences(t *testing.T) {
	_, _, b := newTestServer(t)

	w := b.get("/preferences")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"theme":"system","theme-variant":"default","layout":"centered"}`, w.Body.String())

	w = b.putJSON("/preferences/theme", `{"value":"dark"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, b.cookies, "theme_mode")
	assert.Equal(t, "dark", b.cookies["theme_mode"].Value)
	assert.Equal(t, 365*24*60*60, b.cookies["theme_mode"].MaxAge)

	w = b.putJSON("/preferences/theme-variant", `{"value":"purple"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "soft-pop")
	assert.NotContains(t, b.cookies, "theme_variant")

	w = b.putJSON("/preferences/font", `{"value":"serif"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = b.putJSON("/preferences/layout", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = b.get("/preferences")
	assert.JSONEq(t, `{"theme":"dark","theme-variant":"default","layout":"centered"}`, w.Body.String())
}

func TestSettingsForm(t *testing.T) {
	_, _, b := newTestServer(t)
	b.login("ana@example.com")

	w := b.get("/settings")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `value="system" checked`)
	assert.Contains(t, w.Body.String(), "INR")

	w = b.postForm("/settings", url.Values{"theme": {"light"}, "layout": {"sideways"}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotContains(t, b.cookies, "theme_mode", "no cookie written when any field is invalid")

	w = b.postForm("/settings", url.Values{"theme": {"light"}, "layout": {"full-width"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "light", b.cookies["theme_mode"].Value)
	assert.Equal(t, "full-width", b.cookies["content_layout"].Value)

	w = b.get("/settings")
	assert.Contains(t, w.Body.String(), `data-layout="full-width"`)
}

func TestAPIProxy(t *testing.T) {
	_, backend, b := newTestServer(t)

	w := b.get("/api/proxied/thing")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())

	b.login("ana@example.com")

	w = b.do(http.MethodPost, "/api/proxied/thing?x=1", strings.NewReader(`{"a":1}`), "application/json")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	assert.NotContains(t, b.cookies, "backend", "backend cookies are stripped")

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.NotNil(t, backend.proxied)
	assert.Equal(t, "/api/v1/proxied/thing", backend.proxied.URL.Path)
	assert.Equal(t, "1", backend.proxied.URL.Query().Get("x"))
	assert.True(t, strings.HasPrefix(backend.proxied.Header.Get("Authorization"), "Bearer ey"))
	assert.Empty(t, backend.proxied.Header.Get("Cookie"))
	assert.Equal(t, `{"a":1}`, backend.proxiedBody)
}

func TestAPIProxy_CORSPreflight(t *testing.T) {
	_, _, b := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/groups", nil)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	b.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, testOrigin, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestSafeCallback(t *testing.T) {
	srv, _, _ := newTestServer(t)

	tests := []struct {
		raw  string
		want string
	}{
		{"", ""},
		{"/groups", "/groups"},
		{"/groups?x=1", "/groups?x=1"},
		{testOrigin + "/settlements?page=2", "/settlements?page=2"},
		{"https://evil.example/groups", ""},
		{"http://app.baantlo.test/groups", ""},
		{"//evil.example/x", ""},
		{"groups", ""},
		{"/login", ""},
		{"javascript:alert(1)", ""},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.raw), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := newTestContext(w)
			assert.Equal(t, tt.want, srv.safeCallback(c, tt.raw))
		})
	}
}

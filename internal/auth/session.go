package auth

import (
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// Platform roles issued by the upstream API
const (
	RolePlatformAdmin = "PLATFORM_ADMIN"
	RoleBasicUser     = "BASIC_USER"
)

// SessionData represents the authenticated session for a browser request.
// It is created on login, read by the route gate on every request and only
// rewritten when tokens are refreshed.
type SessionData struct {
	UserID          string    `json:"user_id"`
	Email           string    `json:"email"`
	DisplayName     string    `json:"display_name"`
	Role            string    `json:"role"`
	Roles           []string  `json:"roles"`
	Permissions     []string  `json:"permissions"`
	AccessToken     string    `json:"-"`
	RefreshToken    string    `json:"-"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

// HasRole reports whether role is the primary role or part of the role list
func (s *SessionData) HasRole(role string) bool {
	if s == nil {
		return false
	}
	if s.Role == role {
		return true
	}
	return mapset.NewThreadUnsafeSet(s.Roles...).Contains(role)
}

// IsAdmin reports whether the session carries the platform admin role
func (s *SessionData) IsAdmin() bool {
	return s.HasRole(RolePlatformAdmin)
}

// AccessExpired reports whether the access token is expired at now, allowing
// for skew. A zero expiry never expires.
func (s *SessionData) AccessExpired(now time.Time, skew time.Duration) bool {
	if s.AccessExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(s.AccessExpiresAt)
}

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alexedwards/scs/v2"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/auth"
	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/upstream"
)

// RefreshSkew is how early an access token is treated as expired
const RefreshSkew = 30 * time.Second

// rotationGrace is how long a rotated refresh token keeps resolving to the
// session it was exchanged for
const rotationGrace = 30 * time.Second

const dataKey = "auth"

var (
	ErrUndecodable    = errors.New("session data has unexpected type")
	ErrSessionExpired = errors.New("session access token expired without refresh token")
	ErrNoTokens       = errors.New("auth response carries no tokens")
)

// Refresher exchanges a refresh token for a new token pair
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*upstream.AuthResponse, error)
}

// Resolver reads and writes the authenticated session of a request. The
// request context must have passed through LoadAndSave.
type Resolver struct {
	sm        *scs.SessionManager
	refresher Refresher
	parser    *auth.TokenParser
	logger    zerolog.Logger
	now       func() time.Time

	flight singleflight.Group

	mu      sync.Mutex
	rotated map[string]rotation
}

type rotation struct {
	data auth.SessionData
	at   time.Time
}

// NewResolver creates a resolver. refresher may be nil, in which case expired
// sessions are dropped instead of refreshed.
func NewResolver(sm *scs.SessionManager, refresher Refresher, parser *auth.TokenParser, logger zerolog.Logger) *Resolver {
	return &Resolver{
		sm:        sm,
		refresher: refresher,
		parser:    parser,
		logger:    logger,
		now:       time.Now,
		rotated:   make(map[string]rotation),
	}
}

// Manager returns the underlying session manager
func (r *Resolver) Manager() *scs.SessionManager {
	return r.sm
}

// Resolve returns the session for ctx, or nil when there is none. An error
// means a session existed but could not be used; it has been destroyed and
// callers treat the request as anonymous.
func (r *Resolver) Resolve(ctx context.Context) (*auth.SessionData, error) {
	v := r.sm.Get(ctx, dataKey)
	if v == nil {
		return nil, nil
	}

	data, ok := v.(auth.SessionData)
	if !ok {
		r.destroy(ctx)
		return nil, fmt.Errorf("%w: %T", ErrUndecodable, v)
	}

	if !data.AccessExpired(r.now(), RefreshSkew) {
		return &data, nil
	}

	if data.RefreshToken == "" || r.refresher == nil {
		r.destroy(ctx)
		return nil, ErrSessionExpired
	}

	refreshed, err := r.refresh(ctx, data)
	if err != nil {
		if current, ok := r.reload(ctx, data.RefreshToken); ok {
			r.sm.Put(ctx, dataKey, *current)
			return current, nil
		}
		r.destroy(ctx)
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}

	r.sm.Put(ctx, dataKey, *refreshed)
	r.logger.Debug().Str("user_id", refreshed.UserID).Msg("Refreshed access token")
	return refreshed, nil
}

// refresh exchanges prev's refresh token once, however many requests of the
// same session ask for it at the same time. Refresh tokens are single use, so
// a token rotated moments ago resolves to the session it produced.
func (r *Resolver) refresh(ctx context.Context, prev auth.SessionData) (*auth.SessionData, error) {
	if data, ok := r.rotatedFrom(prev.RefreshToken); ok {
		return data, nil
	}

	v, err, shared := r.flight.Do(prev.RefreshToken, func() (any, error) {
		if data, ok := r.rotatedFrom(prev.RefreshToken); ok {
			return data, nil
		}

		resp, err := r.refresher.Refresh(context.WithoutCancel(ctx), prev.RefreshToken)
		if err != nil {
			return nil, err
		}

		data, err := r.build(resp, &prev)
		if err != nil {
			return nil, err
		}

		r.remember(prev.RefreshToken, *data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		r.logger.Debug().Msg("Joined in-flight token refresh")
	}
	data := *v.(*auth.SessionData)
	return &data, nil
}

func (r *Resolver) rotatedFrom(refreshToken string) (*auth.SessionData, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rot, ok := r.rotated[refreshToken]
	if !ok || r.now().Sub(rot.at) > rotationGrace {
		return nil, false
	}
	data := rot.data
	return &data, true
}

func (r *Resolver) remember(refreshToken string, data auth.SessionData) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for token, rot := range r.rotated {
		if now.Sub(rot.at) > rotationGrace {
			delete(r.rotated, token)
		}
	}
	r.rotated[refreshToken] = rotation{data: data, at: now}
}

// reload reads the session as currently stored, bypassing the copy loaded
// with the request. It reports a usable session only when another request
// has already rotated the stale refresh token.
func (r *Resolver) reload(ctx context.Context, stale string) (*auth.SessionData, bool) {
	token := r.sm.Token(ctx)
	if token == "" {
		return nil, false
	}

	b, found, err := r.sm.Store.Find(token)
	if err != nil || !found {
		return nil, false
	}

	_, values, err := r.sm.Codec.Decode(b)
	if err != nil {
		return nil, false
	}

	data, ok := values[dataKey].(auth.SessionData)
	if !ok || data.RefreshToken == "" || data.RefreshToken == stale || data.AccessExpired(r.now(), RefreshSkew) {
		return nil, false
	}
	return &data, true
}

// Establish stores a new session from a token-issuing auth response. The
// session token is renewed to prevent fixation.
func (r *Resolver) Establish(ctx context.Context, resp *upstream.AuthResponse) (*auth.SessionData, error) {
	data, err := r.build(resp, nil)
	if err != nil {
		return nil, err
	}

	if err := r.sm.RenewToken(ctx); err != nil {
		return nil, fmt.Errorf("failed to renew session token: %w", err)
	}

	r.sm.Put(ctx, dataKey, *data)
	return data, nil
}

// Destroy removes the session and expires its cookie
func (r *Resolver) Destroy(ctx context.Context) error {
	return r.sm.Destroy(ctx)
}

func (r *Resolver) destroy(ctx context.Context) {
	if err := r.sm.Destroy(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to destroy session")
	}
}

// build derives session data from issued tokens. prev carries user fields
// forward when a refresh response omits them.
func (r *Resolver) build(resp *upstream.AuthResponse, prev *auth.SessionData) (*auth.SessionData, error) {
	if resp == nil || !resp.TokensIssued() {
		return nil, ErrNoTokens
	}
	tokens := resp.Session
	user := tokens.User

	data := &auth.SessionData{
		UserID:       user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		Role:         user.Role,
		Roles:        user.Roles,
		Permissions:  user.Permissions,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}

	claims, err := r.parser.Parse(tokens.AccessToken)
	if err != nil {
		if r.parser.Verifies() {
			return nil, fmt.Errorf("invalid access token: %w", err)
		}
		r.logger.Debug().Err(err).Msg("Could not decode access token claims")
	}

	if claims != nil {
		if data.UserID == "" {
			data.UserID = claims.Subject
		}
		data.Roles = mapset.Sorted(mapset.NewThreadUnsafeSet(append(data.Roles, claims.Roles...)...))
		if len(data.Permissions) == 0 {
			data.Permissions = claims.Permissions
		}
		data.AccessExpiresAt = claims.Expiry()
	}

	if data.AccessExpiresAt.IsZero() && tokens.ExpiresIn > 0 {
		data.AccessExpiresAt = r.now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
	}

	if prev != nil {
		if data.UserID == "" {
			data.UserID = prev.UserID
		}
		if data.Email == "" {
			data.Email = prev.Email
		}
		if data.DisplayName == "" {
			data.DisplayName = prev.DisplayName
		}
		if data.Role == "" && len(data.Roles) == 0 {
			data.Role = prev.Role
			data.Roles = prev.Roles
		}
		if data.RefreshToken == "" {
			data.RefreshToken = prev.RefreshToken
		}
	}

	if data.Role == "" && len(data.Roles) > 0 {
		data.Role = data.Roles[0]
		if mapset.NewThreadUnsafeSet(data.Roles...).Contains(auth.RolePlatformAdmin) {
			data.Role = auth.RolePlatformAdmin
		}
	}

	return data, nil
}

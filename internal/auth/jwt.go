package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNotAccessToken = errors.New("token is not an access token")

// AccessClaims represents the claims of an upstream access token
type AccessClaims struct {
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	Type        string   `json:"type"`
	jwt.RegisteredClaims
}

// TokenParser reads upstream access tokens. With a secret it verifies the
// HS256 signature and expiry; without one it only decodes the claims and
// leaves verification to the upstream API.
type TokenParser struct {
	secret []byte
}

// NewTokenParser creates a parser for the given shared secret (may be empty)
func NewTokenParser(secret string) *TokenParser {
	return &TokenParser{secret: []byte(secret)}
}

// Verifies reports whether the parser checks signatures
func (p *TokenParser) Verifies() bool {
	return len(p.secret) > 0
}

// Parse decodes an access token and returns its claims
func (p *TokenParser) Parse(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}

	if p.Verifies() {
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			// Validate signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return p.secret, nil
		}, jwt.WithExpirationRequired())
		if err != nil {
			return nil, fmt.Errorf("failed to parse token: %w", err)
		}
		if !token.Valid {
			return nil, fmt.Errorf("invalid token")
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
			return nil, fmt.Errorf("failed to decode token: %w", err)
		}
	}

	if claims.Type != "" && claims.Type != "access" {
		return nil, ErrNotAccessToken
	}

	return claims, nil
}

// Expiry returns the token expiry or the zero time when absent
func (c *AccessClaims) Expiry() time.Time {
	if c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}

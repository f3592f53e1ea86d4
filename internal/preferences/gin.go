package preferences

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CookieStore adapts a gin request/response pair to Store. Values written
// during the request are visible to later reads in the same request.
type CookieStore struct {
	c       *gin.Context
	secure  bool
	written map[string]string
}

// NewCookieStore wraps c. Secure marks written cookies Secure.
func NewCookieStore(c *gin.Context, secure bool) *CookieStore {
	return &CookieStore{c: c, secure: secure, written: map[string]string{}}
}

func (s *CookieStore) Get(name string) (string, bool) {
	if v, ok := s.written[name]; ok {
		return v, true
	}
	v, err := s.c.Cookie(name)
	if err != nil {
		return "", false
	}
	return v, true
}

// Set writes a cookie readable by client scripts, so themes apply before
// hydration.
func (s *CookieStore) Set(name, value string, opts CookieOptions) {
	s.c.SetSameSite(http.SameSiteLaxMode)
	s.c.SetCookie(name, value, opts.MaxAge, opts.Path, "", s.secure, false)
	s.written[name] = value
}

package session

import (
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// LoadAndSave loads the session named by the request cookie into the request
// context and commits it before the response headers are written. A session
// that fails to load is replaced by a fresh one.
func LoadAndSave(sm *scs.SessionManager, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string
		if cookie, err := c.Request.Cookie(sm.Cookie.Name); err == nil {
			token = cookie.Value
		}

		ctx, err := sm.Load(c.Request.Context(), token)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to load session, starting a new one")
			ctx, err = sm.Load(c.Request.Context(), "")
			if err != nil {
				logger.Error().Err(err).Msg("Failed to initialise session")
				c.AbortWithStatus(500)
				return
			}
		}
		c.Request = c.Request.WithContext(ctx)
		c.Header("Vary", "Cookie")

		sw := &sessionWriter{ResponseWriter: c.Writer, c: c, sm: sm, logger: logger}
		c.Writer = sw

		c.Next()

		sw.commit()
	}
}

// sessionWriter commits the session on the first header or body write
type sessionWriter struct {
	gin.ResponseWriter
	c         *gin.Context
	sm        *scs.SessionManager
	logger    zerolog.Logger
	committed bool
}

func (w *sessionWriter) commit() {
	if w.committed {
		return
	}
	w.committed = true

	ctx := w.c.Request.Context()
	switch w.sm.Status(ctx) {
	case scs.Modified:
		token, expiry, err := w.sm.Commit(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("Failed to commit session")
			return
		}
		w.sm.WriteSessionCookie(ctx, w.ResponseWriter, token, expiry)
	case scs.Destroyed:
		w.sm.WriteSessionCookie(ctx, w.ResponseWriter, "", time.Time{})
	}
}

func (w *sessionWriter) WriteHeader(code int) {
	w.commit()
	w.ResponseWriter.WriteHeader(code)
}

func (w *sessionWriter) WriteHeaderNow() {
	w.commit()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) WriteString(s string) (int, error) {
	w.commit()
	return w.ResponseWriter.WriteString(s)
}

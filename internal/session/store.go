// Package session owns the browser session: the scs manager and its storage,
// the gin load/commit middleware and the resolver that turns a stored session
// into auth.SessionData for the route gate.
package session

import (
	"encoding/gob"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"gorm.io/gorm"

	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/auth"
	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/config"
	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/models"
)

// Store backends
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

func init() {
	gob.Register(auth.SessionData{})
}

// NewManager creates the scs session manager for cfg on top of store
func NewManager(cfg config.SessionConfig, store scs.Store) *scs.SessionManager {
	sm := scs.New()
	sm.Store = store
	sm.Lifetime = cfg.Lifetime
	sm.Cookie.Name = cfg.CookieName
	sm.Cookie.HttpOnly = true
	sm.Cookie.Path = "/"
	sm.Cookie.Persist = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = cfg.CookieSecure
	return sm
}

// NewStore returns the scs store for the configured backend. db is only used
// (and required) for the sqlite backend.
func NewStore(backend string, db *gorm.DB) (scs.Store, error) {
	switch backend {
	case StoreMemory:
		return memstore.New(), nil
	case StoreSQLite:
		if db == nil {
			return nil, errors.New("sqlite session store requires a database")
		}
		return NewGormStore(db), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", backend)
	}
}

// GormStore is an scs.Store persisting sessions through gorm
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore creates a store over db. The sessions table must exist.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

// Find returns the data for a live session token
func (s *GormStore) Find(token string) ([]byte, bool, error) {
	row, err := models.FindSession(s.db, token, s.now())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to find session: %w", err)
	}
	return row.Data, true, nil
}

// Commit adds or replaces the session data for token
func (s *GormStore) Commit(token string, b []byte, expiry time.Time) error {
	if err := models.UpsertSession(s.db, token, b, expiry); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

// Delete removes the session for token
func (s *GormStore) Delete(token string) error {
	if err := models.DeleteSession(s.db, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

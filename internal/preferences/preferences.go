// Package preferences persists enumerated UI settings in single-value cookies.
package preferences

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// ErrInvalidPreference is wrapped by every ValidationError
var ErrInvalidPreference = errors.New("invalid preference value")

// ValidationError is returned when a value is outside the allow-list
type ValidationError struct {
	Preference string
	Value      string
	Allowed    []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %q is not one of [%s]", e.Preference, e.Value, strings.Join(e.Allowed, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidPreference
}

// CookieOptions are the attributes applied when a preference is written
type CookieOptions struct {
	MaxAge int // seconds
	Path   string
}

// Store is the cookie capability a preference reads from and writes to
type Store interface {
	Get(name string) (string, bool)
	Set(name, value string, opts CookieOptions)
}

// Preference is one enumerated cookie-backed setting
type Preference struct {
	Kind       string
	CookieName string
	Default    string
	MaxAge     time.Duration
	allowed    mapset.Set[string]
	order      []string
}

// New builds a preference. The default must be part of allowed.
func New(kind, cookieName string, allowed []string, def string, maxAge time.Duration) (*Preference, error) {
	if len(allowed) == 0 {
		return nil, fmt.Errorf("preference %s: empty allow-list", kind)
	}

	set := mapset.NewSet(allowed...)
	if !set.Contains(def) {
		return nil, fmt.Errorf("preference %s: default %q not in allow-list", kind, def)
	}

	return &Preference{
		Kind:       kind,
		CookieName: cookieName,
		Default:    def,
		MaxAge:     maxAge,
		allowed:    set,
		order:      append([]string(nil), allowed...),
	}, nil
}

// MustNew is New for package level definitions
func MustNew(kind, cookieName string, allowed []string, def string, maxAge time.Duration) *Preference {
	p, err := New(kind, cookieName, allowed, def, maxAge)
	if err != nil {
		panic(err)
	}
	return p
}

// Allowed returns the allow-list in declaration order
func (p *Preference) Allowed() []string {
	return append([]string(nil), p.order...)
}

// Valid reports whether value is in the allow-list
func (p *Preference) Valid(value string) bool {
	return p.allowed.Contains(value)
}

// Get returns the stored value, or the default when the cookie is missing or
// holds a value outside the allow-list.
func (p *Preference) Get(store Store) string {
	if store == nil {
		return p.Default
	}
	v, ok := store.Get(p.CookieName)
	if !ok || !p.Valid(v) {
		return p.Default
	}
	return v
}

// Validate returns a *ValidationError when value is outside the allow-list
func (p *Preference) Validate(value string) error {
	if !p.Valid(value) {
		return &ValidationError{Preference: p.Kind, Value: value, Allowed: p.Allowed()}
	}
	return nil
}

// Set validates value and writes it. Invalid values leave the store untouched.
func (p *Preference) Set(store Store, value string) error {
	if err := p.Validate(value); err != nil {
		return err
	}

	store.Set(p.CookieName, value, CookieOptions{
		MaxAge: int(p.MaxAge / time.Second),
		Path:   "/",
	})
	return nil
}
